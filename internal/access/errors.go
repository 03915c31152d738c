package access

import "errors"

// Sentinel errors for claim resolution.
var (
	ErrNoResolver   = errors.New("no claim resolver configured")
	ErrInvalidToken = errors.New("invalid credential token")
)
