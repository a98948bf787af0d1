package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"carrental/internal/app/commands"
	"carrental/internal/app/dto"
	notificationsapp "carrental/internal/app/handlers/notifications"
	quotesapp "carrental/internal/app/handlers/quotes"
	reservationsapp "carrental/internal/app/handlers/reservations"
	"carrental/internal/app/queries"
	"carrental/internal/domain/rental"
	"carrental/internal/infra/config"
)

const testFixtures = `[
  {"name": "Hertz", "car_types": [
    {"name": "Compact", "seats": 4, "trunk_space": 250, "price_per_day_cents": 4500, "currency": "EUR", "count": 1}
  ]}
]`

func testConfig(t *testing.T, dispatch string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "companies.json")
	if err := os.WriteFile(path, []byte(testFixtures), 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	return config.Config{
		Env:                "test",
		HTTPAddr:           ":0",
		Storage:            config.StorageMemory,
		Dispatch:           dispatch,
		DispatchWorkers:    1,
		DispatchQueueSize:  4,
		IdempotencyTTL:     time.Hour,
		OutboxPollInterval: 10 * time.Millisecond,
		RetryBackoff:       []time.Duration{time.Millisecond},
		Selection:          config.SelectionFirst,
		FixturesPath:       path,
	}
}

func testApplication(t *testing.T, dispatch string) *application {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := buildApplication(ctx, testConfig(t, dispatch), logger)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	t.Cleanup(app.close)
	if err := app.loadFixtures(ctx); err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	return app
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestApplication_SubmitInline(t *testing.T) {
	app := testApplication(t, config.DispatchInline)
	ctx := context.Background()

	quote, err := commands.Dispatch[quotesapp.CreateQuoteCommand, dto.Quote](ctx, app.commands, quotesapp.CreateQuoteCommand{
		Renter: "alice", Company: "Hertz", CarType: "Compact", Start: day(1), End: day(4),
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	submit := reservationsapp.SubmitQuotesCommand{Renter: "alice", Quotes: []dto.Quote{quote}, IdempotencyKeyV: "task-1"}
	res, err := commands.Dispatch[reservationsapp.SubmitQuotesCommand, *reservationsapp.SubmitQuotesResult](ctx, app.commands, submit)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.TaskID != "task-1" {
		t.Errorf("expected task id task-1, got %q", res.TaskID)
	}

	// a repeated submission replays and does not confirm again
	if _, err := commands.Dispatch[reservationsapp.SubmitQuotesCommand, *reservationsapp.SubmitQuotesResult](ctx, app.commands, submit); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	got, err := queries.Ask[reservationsapp.RenterReservationsQuery, dto.RenterReservations](ctx, app.queries, reservationsapp.RenterReservationsQuery{Renter: "alice"})
	if err != nil {
		t.Fatalf("reservations: %v", err)
	}
	if got.Count != 1 || !got.HasReservations {
		t.Fatalf("expected one reservation, got %+v", got)
	}

	notes, err := queries.Ask[notificationsapp.RenterNotificationsQuery, []dto.Notification](ctx, app.queries, notificationsapp.RenterNotificationsQuery{Renter: "alice"})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Message != reservationsapp.SuccessMessage(1) {
		t.Errorf("expected one success notification, got %+v", notes)
	}
}

func TestApplication_ConcurrentDuplicateTask(t *testing.T) {
	app := testApplication(t, config.DispatchInline)
	ctx := context.Background()

	quote, err := commands.Dispatch[quotesapp.CreateQuoteCommand, dto.Quote](ctx, app.commands, quotesapp.CreateQuoteCommand{
		Renter: "carol", Company: "Hertz", CarType: "Compact", Start: day(20), End: day(22),
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	q, err := quote.ToDomain()
	if err != nil {
		t.Fatal(err)
	}
	cmd := reservationsapp.ConfirmQuotesCommand{TaskID: "dup-task", Renter: "carol", Quotes: []rental.Quote{q}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := commands.Dispatch[reservationsapp.ConfirmQuotesCommand, *reservationsapp.ConfirmQuotesResult](ctx, app.commands, cmd); err != nil {
				t.Errorf("confirm: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := queries.Ask[reservationsapp.RenterReservationsQuery, dto.RenterReservations](ctx, app.queries, reservationsapp.RenterReservationsQuery{Renter: "carol"})
	if err != nil {
		t.Fatalf("reservations: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("expected one reservation, got %d", got.Count)
	}
	notes, err := queries.Ask[notificationsapp.RenterNotificationsQuery, []dto.Notification](ctx, app.queries, notificationsapp.RenterNotificationsQuery{Renter: "carol"})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("expected one notification, got %+v", notes)
	}
}

func TestApplication_SubmitMemoryPool(t *testing.T) {
	app := testApplication(t, config.DispatchMemory)
	app.pool.Start()
	ctx := context.Background()

	quote, err := commands.Dispatch[quotesapp.CreateQuoteCommand, dto.Quote](ctx, app.commands, quotesapp.CreateQuoteCommand{
		Renter: "bob", Company: "Hertz", CarType: "Compact", Start: day(10), End: day(12),
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if _, err := commands.Dispatch[reservationsapp.SubmitQuotesCommand, *reservationsapp.SubmitQuotesResult](ctx, app.commands, reservationsapp.SubmitQuotesCommand{
		Renter: "bob", Quotes: []dto.Quote{quote},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := queries.Ask[reservationsapp.RenterReservationsQuery, dto.RenterReservations](ctx, app.queries, reservationsapp.RenterReservationsQuery{Renter: "bob"})
		if err != nil {
			t.Fatalf("reservations: %v", err)
		}
		if got.Count == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("reservation not confirmed by worker pool")
}

func TestApplication_Selector(t *testing.T) {
	app := &application{cfg: config.Config{Selection: config.SelectionFirst}}
	if _, ok := app.selector().(rental.FirstSelector); !ok {
		t.Errorf("expected FirstSelector, got %T", app.selector())
	}
	app.cfg.Selection = config.SelectionRandom
	if _, ok := app.selector().(rental.RandomSelector); !ok {
		t.Errorf("expected RandomSelector, got %T", app.selector())
	}
}
