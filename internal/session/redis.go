package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// RedisStore keeps sessions as JSON documents whose TTL equals the idle timeout,
// so Redis performs eviction.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
	now     func() time.Time
}

func NewRedisStore(client *redis.Client, timeout time.Duration, now func() time.Time) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, timeout: timeout, now: now}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	return r.Update(ctx, id, func(*Session) {})
}

// Update runs fn inside an optimistic WATCH transaction and retries on contention.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*Session)) (*Session, error) {
	key := sessionKey(id)
	var out *Session

	txf := func(tx *redis.Tx) error {
		now := r.now()
		s, err := r.load(ctx, tx, id, now)
		if err != nil {
			return err
		}
		fn(s)
		s.ID = id
		s.LastActivity = now
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("session: failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.timeout)
			return nil
		})
		if err != nil {
			return err
		}
		out = s
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("session: failed to persist session: %w", err)
	}
	return nil, fmt.Errorf("session: update of %s contended %d times", id, maxUpdateRetries)
}

func (r *RedisStore) load(ctx context.Context, tx *redis.Tx, id string, now time.Time) (*Session, error) {
	data, err := tx.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return newSession(id, now), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: failed to load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	if IsExpired(&s, now, r.timeout) {
		return newSession(id, now), nil
	}
	return &s, nil
}

func (r *RedisStore) AppendMessage(ctx context.Context, id, role, text string) error {
	_, err := r.Update(ctx, id, func(s *Session) {
		s.appendMessage(role, text, r.now())
	})
	return err
}

func (r *RedisStore) End(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("session: failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies connectivity at startup.
func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Lookup reads the stored session without touching its TTL.
func (r *RedisStore) Lookup(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: failed to load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	if IsExpired(&s, r.now(), r.timeout) {
		return nil, ErrNotFound
	}
	return &s, nil
}
