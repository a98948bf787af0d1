package rental

import (
	"time"

	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/money"
)

type ReservationConfirmed struct {
	ReservationID ReservationID
	Company       string
	CarType       string
	CarID         CarID
	Renter        string
	Range         daterange.DateRange
	Price         money.Money
	At            time.Time
}

func (e ReservationConfirmed) EventName() string     { return "reservation.confirmed" }
func (e ReservationConfirmed) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationConfirmed) OccurredAt() time.Time { return e.At }

type ReservationCancelled struct {
	ReservationID ReservationID
	Company       string
	CarID         CarID
	Renter        string
	At            time.Time
}

func (e ReservationCancelled) EventName() string     { return "reservation.cancelled" }
func (e ReservationCancelled) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCancelled) OccurredAt() time.Time { return e.At }
