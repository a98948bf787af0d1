package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"carrental/internal/app/middleware"
)

const (
	resultKeyPrefix = "idem:result:"
	lockKeyPrefix   = "idem:lock:"
	defaultLockTTL  = 5 * time.Minute
)

// IdempotencyStore keeps command results in Redis and guards in-flight task
// ids with SETNX so a redelivered task is not run twice at the same time.
type IdempotencyStore struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl, lockTTL: defaultLockTTL}
}

type record struct {
	Payload    []byte    `json:"payload,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, resultKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: key, Payload: rec.Payload, Error: rec.Error, OccurredAt: rec.OccurredAt}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	raw, err := json.Marshal(record{Payload: rec.Payload, Error: rec.Error, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, resultKeyPrefix+rec.Key, raw, s.ttl).Err()
}

// TryLock reports whether the caller now owns key.
func (s *IdempotencyStore) TryLock(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, lockKeyPrefix+key, 1, s.lockTTL).Result()
}

func (s *IdempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockKeyPrefix+key).Err()
}

func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var (
	_ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
	_ middleware.KeyLocker        = (*IdempotencyStore)(nil)
)
