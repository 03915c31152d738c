package reconcile

import "errors"

var (
	// ErrNotStarted is returned before Init or after Dispose.
	ErrNotStarted = errors.New("reconcile store not running")
	// ErrAlreadyStarted is returned by a second Init.
	ErrAlreadyStarted = errors.New("reconcile store already started")
	// ErrCatalogNotRequested is returned by WaitCatalog before EnsureAllCities.
	ErrCatalogNotRequested = errors.New("catalog hydration not requested")
)
