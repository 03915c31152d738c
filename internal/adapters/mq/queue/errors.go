package queue

import "errors"

// ErrClosed is returned when publishing to a closed queue.
var ErrClosed = errors.New("queue closed")
