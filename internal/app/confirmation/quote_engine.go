package confirmation

import (
	"context"
	"fmt"
	"strings"

	"carrental/internal/domain/rental"
)

// QuoteEngine prices requests against current availability without reserving anything.
type QuoteEngine struct {
	Pricing rental.PricingRule
}

func (e QuoteEngine) CreateQuote(ctx context.Context, repo rental.Repository, company, renter string, c rental.ReservationConstraints) (rental.Quote, error) {
	if strings.TrimSpace(renter) == "" {
		return rental.Quote{}, fmt.Errorf("%w: renter is required", rental.ErrInvalidQuote)
	}
	r, err := c.Range()
	if err != nil {
		return rental.Quote{}, err
	}
	carType, err := repo.CarType(ctx, company, c.CarType)
	if err != nil {
		return rental.Quote{}, err
	}
	cars, err := repo.CarsOfType(ctx, company, c.CarType)
	if err != nil {
		return rental.Quote{}, err
	}
	if len(rental.AvailableCars(cars, c.CarType, r)) == 0 {
		return rental.Quote{}, noAvailability(company, c.CarType, r.String())
	}
	price, err := pricingOrDefault(e.Pricing).Price(carType, r)
	if err != nil {
		return rental.Quote{}, err
	}
	return rental.Quote{
		Renter:  renter,
		Company: company,
		CarType: carType.Name,
		Range:   r,
		Price:   price,
	}, nil
}

func pricingOrDefault(rule rental.PricingRule) rental.PricingRule {
	if rule != nil {
		return rule
	}
	return rental.DailyRate{}
}

func noAvailability(company, carType, period string) error {
	return fmt.Errorf("%w: all cars of type %s at %s are reserved for %s", rental.ErrNoAvailability, carType, company, period)
}
