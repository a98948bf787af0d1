package scylla

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"carrental/internal/app/policies"
)

var errNoSession = errors.New("scylla session not initialized")

// Store keeps renter notifications partitioned by renter, newest first.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
	now     func() time.Time
}

func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	return &Store{session: session, logger: logger, now: time.Now}
}

func (s *Store) Notify(ctx context.Context, renter, message string) error {
	if s.session == nil {
		return errNoSession
	}
	now := s.now().UTC()
	err := s.session.
		Query(`INSERT INTO notifications (renter, id, message, created_at) VALUES (?, ?, ?, ?)`,
			renter, gocql.UUIDFromTime(now), message, now).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
	if err != nil && s.logger != nil {
		s.logger.Error("store notification failed", "renter", renter, "error", err)
	}
	return err
}

func (s *Store) Notifications(ctx context.Context, renter string) ([]policies.Notification, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	iter := s.session.
		Query(`SELECT message, created_at FROM notifications WHERE renter = ?`, renter).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	out := make([]policies.Notification, 0)
	var (
		message   string
		createdAt time.Time
	)
	for iter.Scan(&message, &createdAt) {
		out = append(out, policies.Notification{Renter: renter, Message: message, CreatedAt: createdAt.UTC()})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.session == nil {
		return errNoSession
	}
	return s.session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Exec()
}

var (
	_ policies.NotificationSink   = (*Store)(nil)
	_ policies.NotificationReader = (*Store)(nil)
)
