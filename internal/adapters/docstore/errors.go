package docstore

import "errors"

// Sentinel errors specific to the store adapters. Write failures are reported
// with the kinds from errkind.
var (
	ErrClosed     = errors.New("document store closed")
	ErrEmptyID    = errors.New("document id is empty")
	ErrEmptyPatch = errors.New("patch writes no fields")
	ErrBatchSize  = errors.New("batch exceeds the commit limit")
)

// MaxBatchOps is the largest number of operations accepted by Commit.
const MaxBatchOps = 400
