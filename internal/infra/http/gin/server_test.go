package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"carrental/internal/app/commands"
	"carrental/internal/app/confirmation"
	"carrental/internal/app/dto"
	catalogapp "carrental/internal/app/handlers/catalog"
	notificationsapp "carrental/internal/app/handlers/notifications"
	quotesapp "carrental/internal/app/handlers/quotes"
	reservationsapp "carrental/internal/app/handlers/reservations"
	"carrental/internal/app/middleware"
	"carrental/internal/app/outbox"
	"carrental/internal/app/policies"
	"carrental/internal/app/queries"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/money"
	"carrental/internal/infra/obs"
	"carrental/internal/infra/storage/memory"
)

var monday = time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

type queuedDispatcher struct {
	tasks []policies.ConfirmTask
}

func (d *queuedDispatcher) Dispatch(ctx context.Context, task policies.ConfirmTask) error {
	d.tasks = append(d.tasks, task)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *queuedDispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := memory.NewStore(nil)
	company, err := rental.NewCompany("Hertz", []rental.CarType{
		{Name: "Compact", Seats: 4, TrunkSpace: 250, PricePerDay: money.Must(5000, "EUR")},
		{Name: "Van", Seats: 9, TrunkSpace: 900, PricePerDay: money.Must(12000, "EUR")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RegisterCompany(ctx, company, []*rental.Car{
		rental.NewCar("Hertz", "Compact", 1),
		rental.NewCar("Hertz", "Van", 2),
	}); err != nil {
		t.Fatal(err)
	}

	runner := uow.Runner{Factory: store}
	engine := &confirmation.ReservationEngine{Selector: rental.FirstSelector{}, Encoder: outbox.JSONEventEncoder{}}
	inbox := memory.NewNotifications()
	dispatcher := &queuedDispatcher{}

	cmdBus := commands.NewInMemoryBus()
	commands.Register[quotesapp.CreateQuoteCommand, dto.Quote](cmdBus, &quotesapp.CreateQuoteHandler{Runner: runner})
	commands.Register[reservationsapp.ConfirmQuotesCommand, *reservationsapp.ConfirmQuotesResult](cmdBus, &reservationsapp.ConfirmQuotesHandler{
		Coordinator: &confirmation.Coordinator{Runner: runner, Engine: engine},
		Notifier:    inbox,
	})
	commands.Register[reservationsapp.SubmitQuotesCommand, *reservationsapp.SubmitQuotesResult](cmdBus, &reservationsapp.SubmitQuotesHandler{Dispatcher: dispatcher})
	commands.Register[reservationsapp.CancelReservationCommand, *reservationsapp.CancelReservationResult](cmdBus, &reservationsapp.CancelReservationHandler{Engine: engine})

	queryBus := queries.NewInMemoryBus()
	queries.Register[reservationsapp.RenterReservationsQuery, dto.RenterReservations](queryBus, &reservationsapp.RenterReservationsHandler{Catalog: store})
	queries.Register[catalogapp.ListCompaniesQuery, []string](queryBus, &catalogapp.ListCompaniesHandler{Catalog: store})
	queries.Register[catalogapp.CarTypesQuery, []dto.CarType](queryBus, &catalogapp.CarTypesHandler{Runner: runner})
	queries.Register[catalogapp.AvailableCarTypesQuery, []dto.CarType](queryBus, &catalogapp.AvailableCarTypesHandler{Runner: runner})
	queries.Register[catalogapp.FleetQuery, dto.Fleet](queryBus, &catalogapp.FleetHandler{Runner: runner})
	queries.Register[notificationsapp.RenterNotificationsQuery, []dto.Notification](queryBus, &notificationsapp.RenterNotificationsHandler{Reader: inbox})

	cmds := middleware.ChainCommands(cmdBus,
		middleware.Validation(),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil, reservationsapp.IsFinal),
		middleware.Transaction(runner),
	)
	qs := middleware.ChainQueries(queryBus, middleware.QueryValidation())

	router := NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Quotes:        QuoteHandler{Commands: cmds},
		Reservations:  ReservationHandler{Commands: cmds, Queries: qs},
		Catalog:       CatalogHandler{Queries: qs},
		Notifications: NotificationHandler{Queries: qs},
	})
	return router, dispatcher
}

func do(t *testing.T, router http.Handler, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func createQuote(t *testing.T, router http.Handler, renter, carType string, from, to int) dto.Quote {
	t.Helper()
	var q dto.Quote
	code := do(t, router, http.MethodPost, "/api/v1/quotes", createQuoteRequest{
		Renter: renter, Company: "Hertz", CarType: carType,
		Start: monday.AddDate(0, 0, from), End: monday.AddDate(0, 0, to),
	}, &q)
	if code != http.StatusOK {
		t.Fatalf("create quote: status %d", code)
	}
	return q
}

func TestQuoteConfirmCancelFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	q := createQuote(t, router, "alice", "Compact", 0, 2)
	if q.Price.AmountCents != 10000 {
		t.Errorf("expected 100.00, got %d cents", q.Price.AmountCents)
	}

	var confirmed reservationsapp.ConfirmQuotesResult
	if code := do(t, router, http.MethodPost, "/api/v1/reservations", confirmQuotesRequest{Renter: "alice", Quotes: []dto.Quote{q}}, &confirmed); code != http.StatusCreated {
		t.Fatalf("confirm: status %d", code)
	}
	if len(confirmed.Reservations) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(confirmed.Reservations))
	}

	var mine dto.RenterReservations
	do(t, router, http.MethodGet, "/api/v1/renters/alice/reservations", nil, &mine)
	if mine.Count != 1 || !mine.HasReservations {
		t.Errorf("unexpected renter reservations %+v", mine)
	}

	var errBody map[string]any
	if code := do(t, router, http.MethodPost, "/api/v1/quotes", createQuoteRequest{
		Renter: "bob", Company: "Hertz", CarType: "Compact", Start: monday, End: monday.AddDate(0, 0, 1),
	}, &errBody); code != http.StatusConflict {
		t.Errorf("expected 409 for a fully booked type, got %d", code)
	}

	path := fmt.Sprintf("/api/v1/companies/Hertz/reservations/%s", confirmed.Reservations[0].ID)
	if code := do(t, router, http.MethodDelete, path, nil, nil); code != http.StatusOK {
		t.Fatalf("cancel: status %d", code)
	}
	if code := do(t, router, http.MethodDelete, path, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for a cancelled reservation, got %d", code)
	}
	createQuote(t, router, "bob", "Compact", 0, 1)

	var inbox struct {
		Notifications []dto.Notification `json:"notifications"`
	}
	do(t, router, http.MethodGet, "/api/v1/renters/alice/notifications", nil, &inbox)
	if len(inbox.Notifications) != 1 || inbox.Notifications[0].Message != "1 quote(s) successfully confirmed" {
		t.Errorf("unexpected notifications %+v", inbox.Notifications)
	}
}

func TestConfirm_BatchFailureIsConflict(t *testing.T) {
	router, _ := newTestRouter(t)
	a := createQuote(t, router, "alice", "Van", 0, 2)
	b := createQuote(t, router, "alice", "Van", 1, 3)

	var body map[string]any
	code := do(t, router, http.MethodPost, "/api/v1/reservations", confirmQuotesRequest{Renter: "alice", Quotes: []dto.Quote{a, b}}, &body)
	if code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if body["company"] != "Hertz" {
		t.Errorf("expected failing company in body, got %v", body)
	}
	var mine dto.RenterReservations
	do(t, router, http.MethodGet, "/api/v1/renters/alice/reservations", nil, &mine)
	if mine.Count != 0 {
		t.Errorf("expected no reservations, got %d", mine.Count)
	}
}

func TestConfirm_RejectsClientPrice(t *testing.T) {
	router, _ := newTestRouter(t)
	q := createQuote(t, router, "alice", "Compact", 0, 3)
	q.Price.AmountCents = 1

	var body map[string]any
	code := do(t, router, http.MethodPost, "/api/v1/reservations", confirmQuotesRequest{Renter: "alice", Quotes: []dto.Quote{q}}, &body)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	var mine dto.RenterReservations
	do(t, router, http.MethodGet, "/api/v1/renters/alice/reservations", nil, &mine)
	if mine.Count != 0 {
		t.Errorf("expected no reservations, got %d", mine.Count)
	}
}

func TestSubmit_Accepted(t *testing.T) {
	router, dispatcher := newTestRouter(t)
	q := createQuote(t, router, "alice", "Compact", 0, 1)

	var res reservationsapp.SubmitQuotesResult
	if code := do(t, router, http.MethodPost, "/api/v1/confirmations", confirmQuotesRequest{Renter: "alice", Quotes: []dto.Quote{q}}, &res); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if res.TaskID == "" || len(dispatcher.tasks) != 1 || dispatcher.tasks[0].TaskID != res.TaskID {
		t.Errorf("unexpected dispatch state %+v / %+v", res, dispatcher.tasks)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	var companies struct {
		Companies []string `json:"companies"`
	}
	do(t, router, http.MethodGet, "/api/v1/companies", nil, &companies)
	if len(companies.Companies) != 1 || companies.Companies[0] != "Hertz" {
		t.Errorf("unexpected companies %v", companies.Companies)
	}

	var types struct {
		CarTypes []dto.CarType `json:"car_types"`
	}
	do(t, router, http.MethodGet, "/api/v1/companies/Hertz/car-types", nil, &types)
	if len(types.CarTypes) != 2 || types.CarTypes[0].Name != "Compact" {
		t.Errorf("unexpected car types %+v", types.CarTypes)
	}

	var fleet dto.Fleet
	do(t, router, http.MethodGet, "/api/v1/companies/Hertz/fleet?car_type=Van", nil, &fleet)
	if fleet.Count != 1 || fleet.CarIDs[0] != 2 {
		t.Errorf("unexpected fleet %+v", fleet)
	}

	cases := []struct {
		path string
		want int
	}{
		{"/api/v1/companies/Sixt/car-types", http.StatusNotFound},
		{"/api/v1/companies/Hertz/fleet?car_type=Bus", http.StatusNotFound},
		{"/api/v1/companies/Hertz/available-car-types?start=2026-09-07T09:00:00Z", http.StatusBadRequest},
		{"/api/v1/companies/Hertz/available-car-types?start=2026-09-08T09:00:00Z&end=2026-09-07T09:00:00Z", http.StatusBadRequest},
		{"/api/v1/companies/Hertz/available-car-types?start=2026-09-07T09:00:00Z&end=2026-09-08T09:00:00Z", http.StatusOK},
	}
	for _, tc := range cases {
		if code := do(t, router, http.MethodGet, tc.path, nil, nil); code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.want, code)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{rental.ErrInvalidInterval, http.StatusBadRequest},
		{fmt.Errorf("x: %w", rental.ErrCompanyNotFound), http.StatusNotFound},
		{rental.ErrNoAvailability, http.StatusConflict},
		{&rental.BatchError{Company: "Avis", Err: rental.ErrCompanyNotFound}, http.StatusConflict},
		{policies.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
