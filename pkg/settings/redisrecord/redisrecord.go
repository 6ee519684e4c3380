// Package redisrecord stores the restaurant settings record in Redis.
package redisrecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tablepos/pkg/settings"
)

// DefaultKey is the well-known record name.
const DefaultKey = "restaurant_config"

// Client is the subset of redis.Cmdable a Record uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Record implements settings.Record on a single Redis string key.
type Record struct {
	client Client
	key    string
}

// New returns a Record under key, or DefaultKey when key is empty.
func New(client Client, key string) *Record {
	if key == "" {
		key = DefaultKey
	}
	return &Record{client: client, key: key}
}

// Load implements settings.Record.
func (r *Record) Load(ctx context.Context, into *settings.Settings) error {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return settings.ErrNoRecord
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, into); err != nil {
		return fmt.Errorf("decode %s: %w", r.key, err)
	}
	return nil
}

// Save implements settings.Record.
func (r *Record) Save(ctx context.Context, s settings.Settings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, b, 0).Err()
}
