package rental

import (
	"time"

	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/events"
)

type CarID int64

// Car carries its company and type names instead of back references; callers
// load the CarType explicitly through the repository.
type Car struct {
	ID           CarID
	Company      string
	Type         string
	Reservations []Reservation
	Version      int64
	events.EventRecorder
}

func NewCar(company, carType string, id CarID) *Car {
	return &Car{ID: id, Company: company, Type: carType}
}

func (c *Car) IsAvailable(r daterange.DateRange) bool {
	for _, res := range c.Reservations {
		if res.Quote.Range.Overlaps(r) {
			return false
		}
	}
	return true
}

// Reserve attaches a reservation, refusing anything that overlaps a held one.
func (c *Car) Reserve(res Reservation) error {
	if err := res.Quote.Range.Validate(); err != nil {
		return err
	}
	if !c.IsAvailable(res.Quote.Range) {
		return ErrOverlappingReservation
	}
	res.CarID = c.ID
	c.Reservations = append(c.Reservations, res)
	c.Record(ReservationConfirmed{
		ReservationID: res.ID,
		Company:       c.Company,
		CarType:       c.Type,
		CarID:         c.ID,
		Renter:        res.Quote.Renter,
		Range:         res.Quote.Range,
		Price:         res.Quote.Price,
		At:            res.CreatedAt,
	})
	return nil
}

// Release drops the reservation and reports whether it was held.
func (c *Car) Release(id ReservationID, now time.Time) (Reservation, bool) {
	for i, res := range c.Reservations {
		if res.ID != id {
			continue
		}
		c.Reservations = append(c.Reservations[:i:i], c.Reservations[i+1:]...)
		c.Record(ReservationCancelled{
			ReservationID: res.ID,
			Company:       c.Company,
			CarID:         c.ID,
			Renter:        res.Quote.Renter,
			At:            now.UTC(),
		})
		return res, true
	}
	return Reservation{}, false
}

func (c *Car) Reservation(id ReservationID) (Reservation, bool) {
	for _, res := range c.Reservations {
		if res.ID == id {
			return res, true
		}
	}
	return Reservation{}, false
}

// Clone returns a deep copy without pending events.
func (c *Car) Clone() *Car {
	out := &Car{ID: c.ID, Company: c.Company, Type: c.Type, Version: c.Version}
	if len(c.Reservations) > 0 {
		out.Reservations = make([]Reservation, len(c.Reservations))
		copy(out.Reservations, c.Reservations)
	}
	return out
}
