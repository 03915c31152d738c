package checkpoint

import (
	"context"
	"sync"

	"github.com/okian/globepins/internal/domain/model"
)

// Memory keeps the checkpoint for the life of the process.
type Memory struct {
	mu  sync.Mutex
	cp  model.Checkpoint
	set bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (model.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cp, m.set, nil
}

func (m *Memory) Save(ctx context.Context, cp model.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp, m.set = cp, true
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp, m.set = model.Checkpoint{}, false
	return nil
}
