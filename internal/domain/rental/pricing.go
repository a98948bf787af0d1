package rental

import (
	"fmt"

	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/money"
)

type PricingRule interface {
	Price(t CarType, r daterange.DateRange) (money.Money, error)
}

// DailyRate charges the car type's price for every started day.
type DailyRate struct{}

func (DailyRate) Price(t CarType, r daterange.DateRange) (money.Money, error) {
	days := r.Days()
	price, err := t.PricePerDay.Multiply(days)
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: cannot price %d day(s) of %s: %v", ErrInvalidInterval, days, t.Name, err)
	}
	return price, nil
}
