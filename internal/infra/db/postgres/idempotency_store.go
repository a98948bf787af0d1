package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"carrental/internal/app/middleware"
)

// IdempotencyStore keeps command outcomes in the idempotency_records table.
// Key locks are session advisory locks, so a crashed holder releases its keys
// when its connection drops.
type IdempotencyStore struct {
	db  *sql.DB
	ttl time.Duration

	mu   sync.Mutex
	held map[string]*sql.Conn
}

// NewIdempotencyStore keeps records for ttl; zero keeps them forever.
func NewIdempotencyStore(db *sql.DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttl: ttl, held: make(map[string]*sql.Conn)}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec := middleware.IdempotencyRecord{Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, error, occurred_at FROM idempotency_records
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`, key,
	).Scan(&rec.Payload, &rec.Error, &rec.OccurredAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return middleware.IdempotencyRecord{}, false, nil
	case err != nil:
		return middleware.IdempotencyRecord{}, false, err
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	var expires sql.NullTime
	if s.ttl > 0 {
		expires = sql.NullTime{Time: rec.OccurredAt.Add(s.ttl), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, payload, error, occurred_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			payload = EXCLUDED.payload,
			error = EXCLUDED.error,
			occurred_at = EXCLUDED.occurred_at,
			expires_at = EXCLUDED.expires_at`,
		rec.Key, rec.Payload, rec.Error, rec.OccurredAt, expires)
	return err
}

// TryLock takes a session advisory lock on key. The connection stays pinned
// until Unlock.
func (s *IdempotencyStore) TryLock(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[key]; ok {
		return false, nil
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&ok); err != nil {
		conn.Close()
		return false, err
	}
	if !ok {
		conn.Close()
		return false, nil
	}
	s.held[key] = conn
	return true, nil
}

func (s *IdempotencyStore) Unlock(ctx context.Context, key string) error {
	s.mu.Lock()
	conn, ok := s.held[key]
	delete(s.held, key)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	defer conn.Close()
	_, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key)
	return err
}

var (
	_ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
	_ middleware.KeyLocker        = (*IdempotencyStore)(nil)
)
