package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomszi/quotefeed/internal/config"
	"github.com/tomszi/quotefeed/internal/model"
)

// ErrNoTick is returned when no cached tick exists for an instrument.
var ErrNoTick = errors.New("no cached tick")

// LatestCache keeps the most recent tick per instrument in Redis under
// latest:<id> keys, so other processes can read current values without
// touching the upstream providers.
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLatestCache connects to Redis and verifies it with a ping.
func NewLatestCache(ctx context.Context, cfg config.RedisConfig) (*LatestCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &LatestCache{client: client, ttl: cfg.TTL}, nil
}

// Set stores a tick as the latest for its instrument.
func (c *LatestCache) Set(ctx context.Context, tick model.MarketTick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}
	if err := c.client.Set(ctx, latestKey(tick.InstrumentID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set latest tick: %w", err)
	}
	return nil
}

// Get returns the latest cached tick for an instrument, or ErrNoTick.
func (c *LatestCache) Get(ctx context.Context, id string) (model.MarketTick, error) {
	data, err := c.client.Get(ctx, latestKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.MarketTick{}, ErrNoTick
	}
	if err != nil {
		return model.MarketTick{}, fmt.Errorf("get latest tick: %w", err)
	}

	var tick model.MarketTick
	if err := json.Unmarshal(data, &tick); err != nil {
		return model.MarketTick{}, fmt.Errorf("unmarshal tick: %w", err)
	}
	return tick, nil
}

// Ping verifies the connection is healthy.
func (c *LatestCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *LatestCache) Close() error {
	return c.client.Close()
}

func latestKey(id string) string {
	return "latest:" + id
}
