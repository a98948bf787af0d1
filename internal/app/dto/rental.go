package dto

import (
	"strings"
	"time"

	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/money"
)

type Money struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func MoneyFromDomain(m money.Money) Money {
	return Money{AmountCents: m.Amount, Currency: m.Currency}
}

func (m Money) ToDomain() (money.Money, error) {
	return money.New(m.AmountCents, strings.TrimSpace(m.Currency))
}

type Quote struct {
	Renter  string    `json:"renter"`
	Company string    `json:"company"`
	CarType string    `json:"car_type"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Price   Money     `json:"price"`
}

func QuoteFromDomain(q rental.Quote) Quote {
	return Quote{
		Renter:  q.Renter,
		Company: q.Company,
		CarType: q.CarType,
		Start:   q.Range.Start,
		End:     q.Range.End,
		Price:   MoneyFromDomain(q.Price),
	}
}

func (q Quote) ToDomain() (rental.Quote, error) {
	r, err := daterange.New(q.Start, q.End)
	if err != nil {
		return rental.Quote{}, err
	}
	price, err := q.Price.ToDomain()
	if err != nil {
		return rental.Quote{}, err
	}
	out := rental.Quote{
		Renter:  strings.TrimSpace(q.Renter),
		Company: strings.TrimSpace(q.Company),
		CarType: strings.TrimSpace(q.CarType),
		Range:   r,
		Price:   price,
	}
	if err := out.Validate(); err != nil {
		return rental.Quote{}, err
	}
	return out, nil
}

func QuotesToDomain(in []Quote) ([]rental.Quote, error) {
	out := make([]rental.Quote, 0, len(in))
	for _, q := range in {
		dq, err := q.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, dq)
	}
	return out, nil
}

type Reservation struct {
	ID        string    `json:"id"`
	CarID     int64     `json:"car_id"`
	Quote     Quote     `json:"quote"`
	CreatedAt time.Time `json:"created_at"`
}

func ReservationFromDomain(r rental.Reservation) Reservation {
	return Reservation{
		ID:        string(r.ID),
		CarID:     int64(r.CarID),
		Quote:     QuoteFromDomain(r.Quote),
		CreatedAt: r.CreatedAt,
	}
}

func ReservationsFromDomain(rs []rental.Reservation) []Reservation {
	out := make([]Reservation, 0, len(rs))
	for _, r := range rs {
		out = append(out, ReservationFromDomain(r))
	}
	return out
}

type RenterReservations struct {
	Renter          string        `json:"renter"`
	Count           int           `json:"count"`
	HasReservations bool          `json:"has_reservations"`
	Reservations    []Reservation `json:"reservations"`
}

type CarType struct {
	Company        string  `json:"company"`
	Name           string  `json:"name"`
	Seats          int     `json:"seats"`
	SmokingAllowed bool    `json:"smoking_allowed"`
	TrunkSpace     float64 `json:"trunk_space"`
	PricePerDay    Money   `json:"price_per_day"`
}

func CarTypeFromDomain(t rental.CarType) CarType {
	return CarType{
		Company:        t.Company,
		Name:           t.Name,
		Seats:          t.Seats,
		SmokingAllowed: t.SmokingAllowed,
		TrunkSpace:     t.TrunkSpace,
		PricePerDay:    MoneyFromDomain(t.PricePerDay),
	}
}

func CarTypesFromDomain(ts []rental.CarType) []CarType {
	out := make([]CarType, 0, len(ts))
	for _, t := range ts {
		out = append(out, CarTypeFromDomain(t))
	}
	return out
}

type Fleet struct {
	Company string  `json:"company"`
	CarType string  `json:"car_type"`
	CarIDs  []int64 `json:"car_ids"`
	Count   int     `json:"count"`
}

type Notification struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
