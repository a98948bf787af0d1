package rental

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/money"
)

// ReservationConstraints is what a renter asks for.
type ReservationConstraints struct {
	CarType string
	Start   time.Time
	End     time.Time
}

func (c ReservationConstraints) Range() (daterange.DateRange, error) {
	return daterange.New(c.Start, c.End)
}

// Quote is a priced, non-binding offer. It reserves nothing.
type Quote struct {
	Renter  string
	Company string
	CarType string
	Range   daterange.DateRange
	Price   money.Money
}

func (q Quote) Validate() error {
	if strings.TrimSpace(q.Renter) == "" {
		return fmt.Errorf("%w: renter is required", ErrInvalidQuote)
	}
	if strings.TrimSpace(q.Company) == "" {
		return fmt.Errorf("%w: company is required", ErrInvalidQuote)
	}
	if strings.TrimSpace(q.CarType) == "" {
		return fmt.Errorf("%w: car type is required", ErrInvalidQuote)
	}
	return q.Range.Validate()
}

type ReservationID string

// Reservation binds one quote to one car of the quoted company.
type Reservation struct {
	ID        ReservationID
	Quote     Quote
	CarID     CarID
	CreatedAt time.Time
}

func NewReservation(id ReservationID, q Quote, car CarID, now time.Time) Reservation {
	return Reservation{ID: id, Quote: q, CarID: car, CreatedAt: now.UTC()}
}

func (r Reservation) Company() string { return r.Quote.Company }

// SortReservations orders by start time, then id.
func SortReservations(rs []Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i].Quote.Range.Start, rs[j].Quote.Range.Start
		if !a.Equal(b) {
			return a.Before(b)
		}
		return rs[i].ID < rs[j].ID
	})
}
