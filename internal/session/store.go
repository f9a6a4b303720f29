package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "sess:"

// redisClient captures the subset of redis.Client behavior the store uses,
// allowing in-memory fakes in tests.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Store reads and writes Session documents in Redis, keyed by chat and user.
type Store struct {
	client redisClient
	ttl    time.Duration
}

// NewStore constructs a session store with the given session lifetime.
func NewStore(client redisClient, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

// Key renders the Redis key for a chat+user pair.
func Key(chatID int64, userID int64) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, chatID, userID)
}

// Get loads the session for the given chat+user pair. A missing key yields a
// fresh empty session, not an error.
func (s *Store) Get(ctx context.Context, chatID, userID int64) (*Session, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, Key(chatID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// A corrupt session is unrecoverable state; start over rather than
		// wedging the chat.
		return &Session{}, nil
	}

	return &sess, nil
}

// Put persists the session, refreshing its TTL.
func (s *Store) Put(ctx context.Context, chatID, userID int64, sess *Session) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if sess == nil {
		return errors.New("session is required")
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, Key(chatID, userID), string(raw), s.ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	return nil
}

// Delete removes the session entirely.
func (s *Store) Delete(ctx context.Context, chatID, userID int64) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if err := s.client.Del(ctx, Key(chatID, userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Ping verifies Redis connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	return nil
}

func (s *Store) check(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("session store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
