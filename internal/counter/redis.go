package counter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the sequence in a single Redis key.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis sets key to start unless it already exists.
func NewRedis(ctx context.Context, client *redis.Client, key string, start int64) (*Redis, error) {
	if err := client.SetNX(ctx, key, start, 0).Err(); err != nil {
		return nil, fmt.Errorf("seed counter %q: %w", key, err)
	}
	return &Redis{client: client, key: key}, nil
}

// Next runs INCR, which is atomic across all clients.
func (c *Redis) Next(ctx context.Context) (uint64, error) {
	value, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return uint64(value), nil
}
