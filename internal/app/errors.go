package service

import "errors"

var (
	// ErrUnknownCity is returned when a key is in neither the view nor the
	// catalog.
	ErrUnknownCity = errors.New("unknown city")
	// ErrNotRunning is returned by Session methods before Start.
	ErrNotRunning = errors.New("session not running")
)
