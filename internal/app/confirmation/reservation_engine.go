package confirmation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carrental/internal/app/outbox"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
)

// ReservationEngine turns quotes into reservations inside a company unit of work.
type ReservationEngine struct {
	Selector rental.CarSelector
	Pricing  rental.PricingRule
	Encoder  outbox.EventEncoder
	Clock    func() time.Time
	NewID    func() rental.ReservationID
}

// ConfirmQuote re-prices the quote and re-checks availability inside the
// unit, then claims one free car. A quote whose price differs from what the
// pricing rule charges now is rejected.
func (e *ReservationEngine) ConfirmQuote(ctx context.Context, unit uow.UnitOfWork, q rental.Quote) (rental.Reservation, error) {
	if err := q.Validate(); err != nil {
		return rental.Reservation{}, err
	}
	repo := unit.Rentals()
	if err := e.checkPrice(ctx, repo, q); err != nil {
		return rental.Reservation{}, err
	}
	available, err := AvailableCars(ctx, repo, q.Company, q.CarType, q.Range)
	if err != nil {
		return rental.Reservation{}, err
	}
	if len(available) == 0 {
		return rental.Reservation{}, noAvailability(q.Company, q.CarType, q.Range.String())
	}
	car := e.selector().Select(available)
	if car == nil {
		return rental.Reservation{}, noAvailability(q.Company, q.CarType, q.Range.String())
	}
	res := rental.NewReservation(e.newID(), q, car.ID, e.now())
	if err := car.Reserve(res); err != nil {
		return rental.Reservation{}, fmt.Errorf("reserve car %d: %w", car.ID, err)
	}
	if err := e.persist(ctx, unit, car); err != nil {
		return rental.Reservation{}, err
	}
	return res, nil
}

func (e *ReservationEngine) checkPrice(ctx context.Context, repo rental.Repository, q rental.Quote) error {
	carType, err := repo.CarType(ctx, q.Company, q.CarType)
	if err != nil {
		return err
	}
	want, err := pricingOrDefault(e.Pricing).Price(carType, q.Range)
	if err != nil {
		return err
	}
	if q.Price != want {
		return fmt.Errorf("%w: price %s for %s at %s does not match %s", rental.ErrInvalidQuote, q.Price, q.CarType, q.Company, want)
	}
	return nil
}

// CancelReservation removes the reservation from its car. Cancelling a
// reservation that is no longer held is a no-op.
func (e *ReservationEngine) CancelReservation(ctx context.Context, unit uow.UnitOfWork, res rental.Reservation) error {
	cars, err := unit.Rentals().CarsOfType(ctx, res.Company(), res.Quote.CarType)
	if err != nil {
		return err
	}
	for _, car := range cars {
		if car.ID != res.CarID {
			continue
		}
		if _, removed := car.Release(res.ID, e.now()); !removed {
			return nil
		}
		return e.persist(ctx, unit, car)
	}
	return nil
}

// FindReservation looks a reservation up among the company's cars.
func (e *ReservationEngine) FindReservation(ctx context.Context, unit uow.UnitOfWork, company string, id rental.ReservationID) (rental.Reservation, error) {
	cars, err := unit.Rentals().Cars(ctx, company)
	if err != nil {
		return rental.Reservation{}, err
	}
	for _, car := range cars {
		if res, ok := car.Reservation(id); ok {
			return res, nil
		}
	}
	return rental.Reservation{}, rental.ErrReservationNotFound
}

func (e *ReservationEngine) persist(ctx context.Context, unit uow.UnitOfWork, car *rental.Car) error {
	if err := unit.Rentals().SaveCar(ctx, car); err != nil {
		return err
	}
	return outbox.RecordDomainEvents(ctx, unit.Outbox(), e.Encoder, car.DrainEvents())
}

func (e *ReservationEngine) selector() rental.CarSelector {
	if e.Selector != nil {
		return e.Selector
	}
	return rental.RandomSelector{}
}

func (e *ReservationEngine) now() time.Time {
	if e.Clock != nil {
		return e.Clock().UTC()
	}
	return time.Now().UTC()
}

func (e *ReservationEngine) newID() rental.ReservationID {
	if e.NewID != nil {
		return e.NewID()
	}
	return rental.ReservationID(uuid.NewString())
}
