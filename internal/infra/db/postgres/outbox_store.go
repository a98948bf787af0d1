package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	appoutbox "carrental/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// OutboxStore is the relay side of the outbox table. Claims skip rows locked
// by other relays, so several relay processes can share the table.
type OutboxStore struct {
	DB *sql.DB
}

func (s OutboxStore) Claim(ctx context.Context, workerID string) (*appoutbox.Message, error) {
	row := s.DB.QueryRowContext(ctx, `
		UPDATE outbox SET state = $1, claimed_by = $2, claimed_at = now()
		WHERE id = (
			SELECT id FROM outbox
			WHERE state = ANY($3) AND next_attempt_at <= now()
			ORDER BY next_attempt_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		stateClaimed, workerID, pq.Array([]string{stateNew, stateFailed}))

	var (
		msg     appoutbox.Message
		headers []byte
	)
	err := row.Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &headers, &msg.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	msg.Headers = map[string]string{}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &msg.Headers); err != nil {
			return nil, err
		}
	}
	msg.OccurredAt = msg.OccurredAt.UTC()
	return &msg, nil
}

func (s OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE outbox SET state = $1, sent_at = now() WHERE id = $2`, stateSent, id)
	return err
}

func (s OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE outbox SET state = $1, next_attempt_at = $2, last_error = $3, attempts = attempts + 1
		WHERE id = $4`, stateFailed, next, errMsg, id)
	return err
}

var _ appoutbox.Store = OutboxStore{}
