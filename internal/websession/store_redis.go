package websession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planadmin/internal/redis"
)

const redisSessionPrefix = "session:"

// RedisStore keeps sessions as JSON documents that expire with the session.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load returns the live session with id.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var sess Session
	if err := s.client.GetJSON(ctx, redisSessionPrefix+id, &sess); err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	if sess.Values == nil {
		sess.Values = make(map[string]json.RawMessage)
	}
	sess.ID = id
	return &sess, nil
}

// Save writes the session with a TTL matching its expiry.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id required")
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	if err := s.client.SetJSON(ctx, redisSessionPrefix+sess.ID, sess, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.modified = false
	return nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisSessionPrefix+id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
