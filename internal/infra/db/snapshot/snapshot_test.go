package snapshot

import (
	"context"
	"errors"
	"testing"

	appoutbox "carrental/internal/app/outbox"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/money"
)

func loader(calls *int) LoadFunc {
	return func(ctx context.Context) (*Aggregate, error) {
		*calls++
		company, err := rental.NewCompany("Hertz", []rental.CarType{{Name: "Compact", Seats: 4, PricePerDay: money.Must(100, "EUR")}})
		if err != nil {
			return nil, err
		}
		return &Aggregate{
			Company: company,
			Version: 7,
			Cars:    []*rental.Car{rental.NewCar("Hertz", "Compact", 2), rental.NewCar("Hertz", "Compact", 1)},
		}, nil
	}
}

func TestUnit_LoadsOnceAndStages(t *testing.T) {
	ctx := context.Background()
	calls := 0
	u := New("Hertz", false, loader(&calls))
	repo := u.Rentals()

	cars, err := repo.CarsOfType(ctx, "Hertz", "Compact")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cars) != 2 || cars[0].ID != 1 {
		t.Fatalf("expected cars ordered by id, got %v", cars)
	}
	cars[0].Version = 3
	if err := repo.SaveCar(ctx, cars[0]); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := u.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1"}); err != nil {
		t.Fatalf("outbox: %v", err)
	}
	if _, err := repo.Company(ctx, "Hertz"); err != nil {
		t.Fatalf("company: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single load, got %d", calls)
	}

	ch := u.Changes()
	if ch.Version != 7 || len(ch.Cars) != 1 || ch.Cars[0].Version != 3 || len(ch.Events) != 1 {
		t.Errorf("unexpected changes %+v", ch)
	}
	if !u.Finish() || u.Finish() {
		t.Error("Finish must report the first close only")
	}
	if _, err := repo.Cars(ctx, "Hertz"); !errors.Is(err, uow.ErrUnitClosed) {
		t.Errorf("expected ErrUnitClosed, got %v", err)
	}
}

func TestUnit_Scope(t *testing.T) {
	ctx := context.Background()
	calls := 0
	u := New("Hertz", true, loader(&calls))
	repo := u.Rentals()

	if _, err := repo.Cars(ctx, "Avis"); !errors.Is(err, uow.ErrOutOfScope) {
		t.Errorf("expected ErrOutOfScope, got %v", err)
	}
	if _, err := repo.CarType(ctx, "Hertz", "Van"); !errors.Is(err, rental.ErrCarTypeNotFound) {
		t.Errorf("expected ErrCarTypeNotFound, got %v", err)
	}
	if err := repo.SaveCar(ctx, rental.NewCar("Hertz", "Compact", 1)); !errors.Is(err, uow.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestUnit_MissingCompany(t *testing.T) {
	u := New("Sixt", false, func(context.Context) (*Aggregate, error) { return nil, rental.ErrCompanyNotFound })
	if _, err := u.Rentals().Company(context.Background(), "Sixt"); !errors.Is(err, rental.ErrCompanyNotFound) {
		t.Errorf("expected ErrCompanyNotFound, got %v", err)
	}
	if !u.Changes().Empty() {
		t.Error("expected no changes")
	}
}
