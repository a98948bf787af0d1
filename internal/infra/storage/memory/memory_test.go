package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carrental/internal/app/middleware"
	appoutbox "carrental/internal/app/outbox"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/money"
)

func newHertz(t *testing.T) *Store {
	t.Helper()
	store := NewStore(nil)
	company, err := rental.NewCompany("Hertz", []rental.CarType{{Name: "Compact", Seats: 4, PricePerDay: money.Must(5000, "EUR")}})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RegisterCompany(context.Background(), company, []*rental.Car{rental.NewCar("Hertz", "Compact", 1)}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return store
}

func TestUnit_ScopeAndReadOnly(t *testing.T) {
	store := newHertz(t)
	ctx := context.Background()

	unit, err := store.Begin(ctx, uow.TxOptions{Company: "Hertz", ReadOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	cars, err := unit.Rentals().CarsOfType(ctx, "Hertz", "Compact")
	if err != nil || len(cars) != 1 {
		t.Fatalf("expected one car, got %d (%v)", len(cars), err)
	}
	if err := unit.Rentals().SaveCar(ctx, cars[0]); !errors.Is(err, uow.ErrReadOnly) {
		t.Errorf("expected read-only error, got %v", err)
	}
	if _, err := unit.Rentals().Company(ctx, "Avis"); !errors.Is(err, uow.ErrOutOfScope) {
		t.Errorf("expected out-of-scope error, got %v", err)
	}
	_ = unit.Rollback(ctx)

	if _, err := store.Begin(ctx, uow.TxOptions{}); !errors.Is(err, uow.ErrCompanyRequired) {
		t.Errorf("expected company required, got %v", err)
	}
}

func TestUnit_RollbackDiscardsAndReleasesLock(t *testing.T) {
	store := newHertz(t)
	ctx := context.Background()

	unit, err := store.Begin(ctx, uow.TxOptions{Company: "Hertz"})
	if err != nil {
		t.Fatal(err)
	}
	if err := unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "reservation.confirmed"}); err != nil {
		t.Fatal(err)
	}
	if err := unit.Rollback(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(store.Outbox().Pending()); n != 0 {
		t.Errorf("rolled back events must not reach the outbox, got %d", n)
	}

	// the writer lock is free again
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	next, err := store.Begin(waitCtx, uow.TxOptions{Company: "Hertz"})
	if err != nil {
		t.Fatalf("expected lock to be released: %v", err)
	}
	if err := next.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := next.Commit(ctx); !errors.Is(err, uow.ErrUnitClosed) {
		t.Errorf("expected closed unit, got %v", err)
	}
}

func TestUnit_WriterLockHonoursContext(t *testing.T) {
	store := newHertz(t)
	ctx := context.Background()

	held, err := store.Begin(ctx, uow.TxOptions{Company: "Hertz"})
	if err != nil {
		t.Fatal(err)
	}
	defer held.Rollback(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := store.Begin(waitCtx, uow.TxOptions{Company: "Hertz"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestOutbox_ClaimOrderAndRetry(t *testing.T) {
	ctx := context.Background()
	box := NewOutbox()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	box.now = func() time.Time { return base }

	_ = box.Add(ctx, appoutbox.EventRecord{ID: "b", OccurredAt: base.Add(time.Second)})
	_ = box.Add(ctx, appoutbox.EventRecord{ID: "a", OccurredAt: base})

	msg, err := box.Claim(ctx, "w1")
	if err != nil || msg == nil || msg.ID != "a" {
		t.Fatalf("expected oldest record a, got %+v (%v)", msg, err)
	}
	if err := box.MarkFailed(ctx, "a", base.Add(time.Minute), "broker down"); err != nil {
		t.Fatal(err)
	}
	msg, _ = box.Claim(ctx, "w1")
	if msg == nil || msg.ID != "b" {
		t.Fatalf("expected b while a backs off, got %+v", msg)
	}
	_ = box.MarkSent(ctx, "b")

	box.now = func() time.Time { return base.Add(2 * time.Minute) }
	msg, _ = box.Claim(ctx, "w1")
	if msg == nil || msg.ID != "a" || msg.Attempts != 1 {
		t.Fatalf("expected a to be retried once, got %+v", msg)
	}
}

func TestIdempotencyStore_Expires(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)
	_ = store.Save(ctx, middleware.IdempotencyRecord{Key: "fresh", OccurredAt: time.Now()})
	_ = store.Save(ctx, middleware.IdempotencyRecord{Key: "stale", OccurredAt: time.Now().Add(-time.Hour)})

	if _, ok, _ := store.Get(ctx, "fresh"); !ok {
		t.Error("expected fresh record")
	}
	if _, ok, _ := store.Get(ctx, "stale"); ok {
		t.Error("expected stale record to expire")
	}
}

func TestIdempotencyStore_TryLockConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.TryLock(ctx, "task-1"); ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 lock owner, got %d", successCount.Load())
	}
	if ok, _ := store.TryLock(ctx, "task-2"); !ok {
		t.Error("expected an unrelated key to be free")
	}
	if err := store.Unlock(ctx, "task-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.TryLock(ctx, "task-1"); !ok {
		t.Error("expected lock to be free after unlock")
	}
}

func TestNotifications_NewestFirst(t *testing.T) {
	ctx := context.Background()
	inbox := NewNotifications()
	_ = inbox.Notify(ctx, "alice", "first")
	_ = inbox.Notify(ctx, "alice", "second")
	_ = inbox.Notify(ctx, "bob", "other")

	got, err := inbox.Notifications(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Message != "second" || got[1].Message != "first" {
		t.Errorf("unexpected order %+v", got)
	}
}
