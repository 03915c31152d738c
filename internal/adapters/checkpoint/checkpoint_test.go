package checkpoint_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/globepins/internal/adapters/checkpoint"
	"github.com/okian/globepins/internal/domain/model"
)

func exercise(t *testing.T, s checkpoint.Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, model.Checkpoint{NextRowOffset: 400}))
	cp, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 400, cp.NextRowOffset)

	require.NoError(t, s.Save(ctx, model.Checkpoint{NextRowOffset: 600}))
	cp, _, _ = s.Load(ctx)
	assert.Equal(t, 600, cp.NextRowOffset)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exercise(t, checkpoint.NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	exercise(t, checkpoint.NewFile(path))
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, ok, err := checkpoint.NewFile(path).Load(context.Background())
	assert.False(t, ok)
	assert.True(t, errors.Is(err, checkpoint.ErrCorrupt))
}

// TestRedis runs against a real server when GLOBEPINS_TEST_REDIS_ADDR is set.
func TestRedis(t *testing.T) {
	addr := os.Getenv("GLOBEPINS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GLOBEPINS_TEST_REDIS_ADDR not set")
	}
	client, err := checkpoint.OpenRedis(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	exercise(t, checkpoint.NewRedis(client, "globepins:test:"+t.Name()))
}
