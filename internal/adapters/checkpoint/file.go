package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/globepins/internal/domain/model"
)

// File stores the checkpoint as a small JSON document on local disk so it
// survives restarts.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a store writing to path.
func NewFile(path string) *File { return &File{path: path} }

func (f *File) Load(ctx context.Context) (model.Checkpoint, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Checkpoint{}, false, nil
	}
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("checkpoint: read %s: %w", f.path, err)
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil || cp.NextRowOffset < 0 {
		return model.Checkpoint{}, false, fmt.Errorf("%w: %s", ErrCorrupt, f.path)
	}
	return cp, true, nil
}

// Save writes through a temporary file and a rename so a crash never leaves
// a truncated checkpoint behind.
func (f *File) Save(ctx context.Context, cp model.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("checkpoint: temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("checkpoint: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checkpoint: remove: %w", err)
	}
	return nil
}
