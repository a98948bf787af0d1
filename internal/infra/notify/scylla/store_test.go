package scylla

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"carrental/internal/infra/config"
)

func getSession(t *testing.T) *gocql.Session {
	hosts := os.Getenv("SCYLLA_HOSTS")
	if hosts == "" {
		t.Skip("SCYLLA_HOSTS not set")
	}
	cfg := config.Config{
		ScyllaHosts:       strings.Split(hosts, ","),
		ScyllaKeyspace:    "carrental_test",
		ScyllaConsistency: gocql.One,
		ScyllaTimeout:     5 * time.Second,
		ScyllaReplication: 1,
	}
	session, err := NewSession(context.Background(), cfg, nil)
	if err != nil {
		t.Skipf("Scylla not available: %v", err)
	}
	t.Cleanup(session.Close)
	return session
}

func TestStore_NotificationsNewestFirst(t *testing.T) {
	session := getSession(t)
	store := NewStore(session, nil)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	renter := "renter-" + uuid.NewString()
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		if err := store.Notify(ctx, renter, msg); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	got, err := store.Notifications(ctx, renter)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Message != "third" || got[2].Message != "first" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[0].CreatedAt.Equal(base.Add(3 * time.Second)) {
		t.Errorf("unexpected timestamp %v", got[0].CreatedAt)
	}
}

func TestStore_NoSession(t *testing.T) {
	store := NewStore(nil, nil)
	if err := store.Notify(context.Background(), "r", "m"); err == nil {
		t.Error("expected error without session")
	}
	if _, err := store.Notifications(context.Background(), "r"); err == nil {
		t.Error("expected error without session")
	}
}
