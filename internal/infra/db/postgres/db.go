package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"carrental/internal/domain/rental"
)

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	name    TEXT PRIMARY KEY,
	version BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS car_types (
	company         TEXT NOT NULL REFERENCES companies(name) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	seats           INT NOT NULL,
	smoking_allowed BOOLEAN NOT NULL DEFAULT FALSE,
	trunk_space     DOUBLE PRECISION NOT NULL DEFAULT 0,
	price_cents     BIGINT NOT NULL,
	currency        CHAR(3) NOT NULL,
	PRIMARY KEY (company, name)
);
CREATE TABLE IF NOT EXISTS cars (
	company  TEXT NOT NULL REFERENCES companies(name) ON DELETE CASCADE,
	id       BIGINT NOT NULL,
	car_type TEXT NOT NULL,
	version  BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (company, id)
);
CREATE TABLE IF NOT EXISTS reservations (
	id          TEXT PRIMARY KEY,
	company     TEXT NOT NULL,
	car_id      BIGINT NOT NULL,
	renter      TEXT NOT NULL,
	car_type    TEXT NOT NULL,
	start_at    TIMESTAMPTZ NOT NULL,
	end_at      TIMESTAMPTZ NOT NULL,
	price_cents BIGINT NOT NULL,
	currency    CHAR(3) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	FOREIGN KEY (company, car_id) REFERENCES cars(company, id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS reservations_renter_idx ON reservations (renter);
CREATE INDEX IF NOT EXISTS reservations_car_idx ON reservations (company, car_id);
CREATE TABLE IF NOT EXISTS outbox (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	payload         BYTEA NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL,
	aggregate       TEXT NOT NULL,
	headers         JSONB NOT NULL DEFAULT '{}',
	state           TEXT NOT NULL,
	attempts        INT NOT NULL DEFAULT 0,
	next_attempt_at TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	claimed_by      TEXT,
	claimed_at      TIMESTAMPTZ,
	sent_at         TIMESTAMPTZ,
	last_error      TEXT
);
CREATE INDEX IF NOT EXISTS outbox_due_idx ON outbox (state, next_attempt_at);
CREATE TABLE IF NOT EXISTS idempotency_records (
	key         TEXT PRIMARY KEY,
	payload     BYTEA,
	error       TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ
);
`

// Open connects through lib/pq and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Serialization failures and deadlocks are retryable conflicts.
var conflictCodes = map[pq.ErrorCode]bool{
	"40001": true,
	"40P01": true,
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && conflictCodes[pqErr.Code] {
		return fmt.Errorf("%w: %v", rental.ErrTransactionConflict, err)
	}
	return err
}
