// Package session keeps logged-in staff sessions in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tablepos/pkg/apperr"
)

// ErrNotFound means the session id is unknown or expired.
var ErrNotFound = apperr.New(apperr.KindUnauthorized, "session: not found")

const keyPrefix = "session:"

// Session identifies a staff member across requests.
type Session struct {
	ID        string    `json:"-"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Client is the subset of redis.Cmdable a Store uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store creates and resolves sessions.
type Store struct {
	client Client
	ttl    time.Duration
}

// New returns a Store whose sessions live for ttl.
func New(client Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// TTL is how long a new session lives.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create opens a session for username.
func (s *Store) Create(ctx context.Context, username string, roles []string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		Username:  username,
		Roles:     roles,
		ExpiresAt: time.Now().Add(s.ttl).UTC(),
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, keyPrefix+sess.ID, b, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Lookup resolves a session id.
func (s *Store) Lookup(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	b, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	sess.ID = id
	return sess, nil
}

// Delete ends a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
