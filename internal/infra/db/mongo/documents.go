package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/money"
)

func bsonD(pairs ...any) bson.D {
	out := make(bson.D, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, bson.E{Key: pairs[i].(string), Value: pairs[i+1]})
	}
	return out
}

type companyDocument struct {
	ID       string            `bson:"_id"`
	CarTypes []carTypeDocument `bson:"car_types"`
	Version  int64             `bson:"version"`
}

type carTypeDocument struct {
	Name           string  `bson:"name"`
	Seats          int     `bson:"seats"`
	SmokingAllowed bool    `bson:"smoking_allowed"`
	TrunkSpace     float64 `bson:"trunk_space"`
	PriceCents     int64   `bson:"price_cents"`
	Currency       string  `bson:"currency"`
}

type carDocument struct {
	ID           string                `bson:"_id"`
	Company      string                `bson:"company"`
	CarID        int64                 `bson:"car_id"`
	Type         string                `bson:"type"`
	Reservations []reservationDocument `bson:"reservations"`
	Version      int64                 `bson:"version"`
}

type reservationDocument struct {
	ID         string    `bson:"id"`
	Renter     string    `bson:"renter"`
	CarType    string    `bson:"car_type"`
	Start      time.Time `bson:"start"`
	End        time.Time `bson:"end"`
	PriceCents int64     `bson:"price_cents"`
	Currency   string    `bson:"currency"`
	CreatedAt  time.Time `bson:"created_at"`
}

func carKey(company string, id rental.CarID) string {
	return fmt.Sprintf("%s/%d", company, id)
}

func newCompanyDocument(c *rental.Company, version int64) companyDocument {
	doc := companyDocument{ID: c.Name, Version: version, CarTypes: make([]carTypeDocument, 0, len(c.CarTypes))}
	for _, t := range c.CarTypes {
		doc.CarTypes = append(doc.CarTypes, carTypeDocument{
			Name:           t.Name,
			Seats:          t.Seats,
			SmokingAllowed: t.SmokingAllowed,
			TrunkSpace:     t.TrunkSpace,
			PriceCents:     t.PricePerDay.Amount,
			Currency:       t.PricePerDay.Currency,
		})
	}
	return doc
}

func (d companyDocument) toDomain() *rental.Company {
	c := &rental.Company{Name: d.ID, CarTypes: make([]rental.CarType, 0, len(d.CarTypes))}
	for _, t := range d.CarTypes {
		c.CarTypes = append(c.CarTypes, rental.CarType{
			Company:        d.ID,
			Name:           t.Name,
			Seats:          t.Seats,
			SmokingAllowed: t.SmokingAllowed,
			TrunkSpace:     t.TrunkSpace,
			PricePerDay:    money.Money{Amount: t.PriceCents, Currency: t.Currency},
		})
	}
	return c
}

func newCarDocument(c *rental.Car) carDocument {
	doc := carDocument{
		ID:           carKey(c.Company, c.ID),
		Company:      c.Company,
		CarID:        int64(c.ID),
		Type:         c.Type,
		Reservations: make([]reservationDocument, 0, len(c.Reservations)),
		Version:      c.Version,
	}
	for _, r := range c.Reservations {
		doc.Reservations = append(doc.Reservations, reservationDocument{
			ID:         string(r.ID),
			Renter:     r.Quote.Renter,
			CarType:    r.Quote.CarType,
			Start:      r.Quote.Range.Start,
			End:        r.Quote.Range.End,
			PriceCents: r.Quote.Price.Amount,
			Currency:   r.Quote.Price.Currency,
			CreatedAt:  r.CreatedAt,
		})
	}
	return doc
}

func (d carDocument) toDomain() *rental.Car {
	car := rental.NewCar(d.Company, d.Type, rental.CarID(d.CarID))
	car.Version = d.Version
	for _, r := range d.Reservations {
		car.Reservations = append(car.Reservations, r.toDomain(d.Company, car.ID))
	}
	return car
}

func (r reservationDocument) toDomain(company string, car rental.CarID) rental.Reservation {
	return rental.Reservation{
		ID:    rental.ReservationID(r.ID),
		CarID: car,
		Quote: rental.Quote{
			Renter:  r.Renter,
			Company: company,
			CarType: r.CarType,
			Range:   daterange.DateRange{Start: r.Start.UTC(), End: r.End.UTC()},
			Price:   money.Money{Amount: r.PriceCents, Currency: r.Currency},
		},
		CreatedAt: r.CreatedAt.UTC(),
	}
}
