package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/okian/globepins/internal/domain/model"
)

// Redis stores the offset as an integer string under a single key.
type Redis struct {
	client redis.Cmdable
	key    string
}

// NewRedis returns a store using client. An empty key selects DefaultKey.
func NewRedis(client redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

// OpenRedis creates a client for addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("checkpoint: redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Load(ctx context.Context) (model.Checkpoint, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return model.Checkpoint{}, false, nil
	}
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("checkpoint: redis get: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return model.Checkpoint{}, false, fmt.Errorf("%w: %q", ErrCorrupt, raw)
	}
	return model.Checkpoint{NextRowOffset: n}, true, nil
}

func (r *Redis) Save(ctx context.Context, cp model.Checkpoint) error {
	if err := r.client.Set(ctx, r.key, strconv.Itoa(cp.NextRowOffset), 0).Err(); err != nil {
		return fmt.Errorf("checkpoint: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("checkpoint: redis del: %w", err)
	}
	return nil
}
