// Package checkpoint persists the ingestion resume offset.
package checkpoint

import (
	"context"
	"errors"

	"github.com/okian/globepins/internal/domain/model"
)

// DefaultKey is the fixed key the offset is stored under.
const DefaultKey = "globepins:csv_import_checkpoint"

// ErrCorrupt is returned when a stored checkpoint cannot be decoded.
var ErrCorrupt = errors.New("checkpoint is corrupt")

// Store holds at most one checkpoint.
type Store interface {
	// Load returns the checkpoint and whether one exists.
	Load(ctx context.Context) (model.Checkpoint, bool, error)
	Save(ctx context.Context, cp model.Checkpoint) error
	Clear(ctx context.Context) error
}
