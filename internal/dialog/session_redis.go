package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	lockKeyPrefix    = "session:lock:"

	// Idle contexts expire after a day so abandoned flows do not pile up.
	sessionTTL = 24 * time.Hour
	// Lock TTL bounds how long a crashed turn can wedge a sender.
	lockTTL = 30 * time.Second
)

// RedisSessionStore keeps dialogue contexts in Redis so the bot can run
// more than one replica behind the webhook.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func sessionKey(sender string) string {
	return sessionKeyPrefix + sender
}

func lockKey(sender string) string {
	return lockKeyPrefix + sender
}

func (s *RedisSessionStore) Get(ctx context.Context, sender string) (*SessionContext, error) {
	data, err := s.rdb.Get(ctx, sessionKey(sender)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var sc SessionContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &sc, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, sc *SessionContext) error {
	if sc == nil || sc.Sender == "" {
		return fmt.Errorf("session: sender required")
	}
	sc.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	return s.rdb.Set(ctx, sessionKey(sc.Sender), data, sessionTTL).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, sender string) error {
	return s.rdb.Del(ctx, sessionKey(sender)).Err()
}

func (s *RedisSessionStore) TryLock(ctx context.Context, sender string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, lockKey(sender), "1", lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("session: lock: %w", err)
	}
	return ok, nil
}

func (s *RedisSessionStore) Unlock(ctx context.Context, sender string) error {
	return s.rdb.Del(ctx, lockKey(sender)).Err()
}
