package rental

import (
	"errors"
	"math"
	"testing"
	"time"

	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/money"
)

var day0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func span(fromDay, toDay int) daterange.DateRange {
	return daterange.DateRange{Start: day0.AddDate(0, 0, fromDay), End: day0.AddDate(0, 0, toDay)}
}

func reservation(id string, r daterange.DateRange) Reservation {
	q := Quote{Renter: "alice", Company: "Hertz", CarType: "Compact", Range: r, Price: money.Must(100, "EUR")}
	return NewReservation(ReservationID(id), q, 0, day0)
}

func TestCar_ReserveRejectsOverlap(t *testing.T) {
	car := NewCar("Hertz", "Compact", 1)
	if err := car.Reserve(reservation("r1", span(0, 3))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := car.Reserve(reservation("r2", span(2, 4))); !errors.Is(err, ErrOverlappingReservation) {
		t.Fatalf("expected ErrOverlappingReservation, got %v", err)
	}
	if err := car.Reserve(reservation("r3", span(3, 5))); err != nil {
		t.Fatalf("adjacent reservation must be accepted: %v", err)
	}
	if len(car.Reservations) != 2 {
		t.Errorf("expected 2 reservations, got %d", len(car.Reservations))
	}
	if car.Reservations[0].CarID != 1 {
		t.Errorf("reservation must carry the car id, got %d", car.Reservations[0].CarID)
	}
	if got := len(car.PendingEvents()); got != 2 {
		t.Errorf("expected 2 confirmed events, got %d", got)
	}
}

func TestCar_ReleaseIsIdempotent(t *testing.T) {
	car := NewCar("Hertz", "Compact", 1)
	_ = car.Reserve(reservation("r1", span(0, 3)))
	car.ClearEvents()

	if _, ok := car.Release("r1", day0); !ok {
		t.Fatal("expected reservation to be released")
	}
	if _, ok := car.Release("r1", day0); ok {
		t.Fatal("second release must be a no-op")
	}
	if !car.IsAvailable(span(0, 3)) {
		t.Error("released interval must be available again")
	}
	events := car.PendingEvents()
	if len(events) != 1 || events[0].EventName() != "reservation.cancelled" {
		t.Errorf("expected one cancelled event, got %v", events)
	}
}

func TestCar_CloneIsIndependent(t *testing.T) {
	car := NewCar("Hertz", "Compact", 1)
	_ = car.Reserve(reservation("r1", span(0, 3)))
	clone := car.Clone()
	_ = clone.Reserve(reservation("r2", span(5, 6)))
	if len(car.Reservations) != 1 {
		t.Errorf("original mutated through clone: %d reservations", len(car.Reservations))
	}
	if len(clone.PendingEvents()) != 1 {
		t.Errorf("clone must start without pending events")
	}
}

func TestAvailableCars_ExcludesOverlapsAndOtherTypes(t *testing.T) {
	busy := NewCar("Hertz", "Compact", 3)
	_ = busy.Reserve(reservation("r1", span(1, 2)))
	free := NewCar("Hertz", "Compact", 2)
	touching := NewCar("Hertz", "Compact", 1)
	_ = touching.Reserve(reservation("r2", span(0, 1)))
	other := NewCar("Hertz", "SUV", 4)

	got := AvailableCars([]*Car{busy, free, other, touching}, "Compact", span(1, 3))
	if len(got) != 2 {
		t.Fatalf("expected 2 cars, got %d", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("expected cars ordered by id [1 2], got [%d %d]", got[0].ID, got[1].ID)
	}
}

func TestAvailableCarTypes(t *testing.T) {
	company, err := NewCompany("Hertz", []CarType{
		{Name: "SUV", Seats: 5, PricePerDay: money.Must(8000, "EUR")},
		{Name: "Compact", Seats: 4, PricePerDay: money.Must(5000, "EUR")},
		{Name: "Van", Seats: 9, PricePerDay: money.Must(9000, "EUR")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	suv := NewCar("Hertz", "SUV", 1)
	_ = suv.Reserve(reservation("r1", span(0, 5)))
	compact := NewCar("Hertz", "Compact", 2)

	got := AvailableCarTypes(company, []*Car{suv, compact}, span(1, 2))
	if len(got) != 1 || got[0].Name != "Compact" {
		t.Errorf("expected only Compact, got %v", got)
	}
}

func TestNewCompany_Validates(t *testing.T) {
	price := money.Must(5000, "EUR")
	if _, err := NewCompany(" ", nil); !errors.Is(err, ErrInvalidCompany) {
		t.Errorf("expected ErrInvalidCompany, got %v", err)
	}
	_, err := NewCompany("Hertz", []CarType{
		{Name: "Compact", Seats: 4, PricePerDay: price},
		{Name: "Compact", Seats: 4, PricePerDay: price},
	})
	if !errors.Is(err, ErrInvalidCompany) {
		t.Errorf("expected duplicate type rejection, got %v", err)
	}
	_, err = NewCompany("Hertz", []CarType{{Company: "Avis", Name: "Compact", Seats: 4, PricePerDay: price}})
	if !errors.Is(err, ErrInvalidCompany) {
		t.Errorf("expected foreign type rejection, got %v", err)
	}
	_, err = NewCompany("Hertz", []CarType{{Name: "Compact", PricePerDay: price}})
	if !errors.Is(err, ErrInvalidCarType) {
		t.Errorf("expected ErrInvalidCarType, got %v", err)
	}
}

func TestDailyRate_ChargesStartedDays(t *testing.T) {
	ct := CarType{Name: "Compact", PricePerDay: money.Must(5000, "EUR")}
	dr := daterange.DateRange{Start: day0, End: day0.Add(36 * time.Hour)}
	got, err := (DailyRate{}).Price(ct, dr)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 10000 {
		t.Errorf("expected 10000 for a day and a half, got %d", got.Amount)
	}
	longer := daterange.DateRange{Start: day0, End: day0.Add(72 * time.Hour)}
	more, err := (DailyRate{}).Price(ct, longer)
	if err != nil {
		t.Fatal(err)
	}
	if more.Amount < got.Amount {
		t.Error("price must not decrease for a longer interval")
	}
}

func TestDailyRate_RejectsOverflowingInterval(t *testing.T) {
	ct := CarType{Name: "Compact", PricePerDay: money.Must(math.MaxInt64/1000, "EUR")}
	dr := daterange.DateRange{Start: day0, End: day0.AddDate(5, 0, 0)}
	_, err := (DailyRate{}).Price(ct, dr)
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestBatchError_MatchesBothKinds(t *testing.T) {
	cause := ErrNoAvailability
	var err error = &BatchError{Quotes: 3, Company: "Avis", Err: cause}
	if !errors.Is(err, ErrBatchConfirmationFailed) {
		t.Error("expected ErrBatchConfirmationFailed")
	}
	if !errors.Is(err, ErrNoAvailability) {
		t.Error("expected the group cause to be unwrapped")
	}
	be, ok := AsBatchError(err)
	if !ok || be.Detail() != cause.Error() {
		t.Errorf("unexpected batch error detail: %v", be)
	}
}

func TestSelectors(t *testing.T) {
	cars := []*Car{NewCar("Hertz", "Compact", 1), NewCar("Hertz", "Compact", 2)}
	if got := (FirstSelector{}).Select(cars); got.ID != 1 {
		t.Errorf("expected first car, got %d", got.ID)
	}
	if (FirstSelector{}).Select(nil) != nil || (RandomSelector{}).Select(nil) != nil {
		t.Error("selectors must return nil for an empty list")
	}
	for i := 0; i < 20; i++ {
		if got := (RandomSelector{}).Select(cars); got != cars[0] && got != cars[1] {
			t.Fatalf("random selector returned a foreign car")
		}
	}
}
