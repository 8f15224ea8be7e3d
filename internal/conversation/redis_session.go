package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wvdi-ph/drivebot/internal/leads"
)

const sessionKeyPrefix = "chat_session:"

// RedisStore keeps sessions in Redis with a key TTL, for deployments running
// more than one API instance. Expiry is handled by Redis itself, so Sweep is
// a no-op.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("conversation: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// GetOrCreate loads the session for id, or mints and stores a new one when id
// is empty or the key is gone.
func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		raw, err := s.client.Get(ctx, sessionKey(id)).Result()
		switch {
		case err == nil:
			var session Session
			if jsonErr := json.Unmarshal([]byte(raw), &session); jsonErr == nil {
				return &session, nil
			}
			// Corrupt payload; fall through and mint a fresh session.
		case !errors.Is(err, redis.Nil):
			return nil, fmt.Errorf("conversation: load session: %w", err)
		}
	}

	session := &Session{
		ID:        NewSessionID(),
		Lead:      leads.NewLead(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Put stores the session with the remaining TTL measured from CreatedAt, so
// rewrites do not extend a session's life.
func (s *RedisStore) Put(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("conversation: marshal session: %w", err)
	}

	remaining := s.ttl - time.Since(session.CreatedAt)
	if remaining <= 0 {
		remaining = time.Second
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), data, remaining).Err(); err != nil {
		return fmt.Errorf("conversation: store session: %w", err)
	}
	return nil
}

// Sweep is a no-op; Redis expires keys on its own.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
