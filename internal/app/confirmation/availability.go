package confirmation

import (
	"context"

	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/daterange"
)

// AvailableCars lists the free cars of one type of one company, ordered by id.
func AvailableCars(ctx context.Context, repo rental.Repository, company, carType string, r daterange.DateRange) ([]*rental.Car, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if _, err := repo.CarType(ctx, company, carType); err != nil {
		return nil, err
	}
	cars, err := repo.CarsOfType(ctx, company, carType)
	if err != nil {
		return nil, err
	}
	return rental.AvailableCars(cars, carType, r), nil
}

// AvailableCarTypes lists the company's car types with at least one free car.
func AvailableCarTypes(ctx context.Context, repo rental.Repository, company string, r daterange.DateRange) ([]rental.CarType, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c, err := repo.Company(ctx, company)
	if err != nil {
		return nil, err
	}
	cars, err := repo.Cars(ctx, company)
	if err != nil {
		return nil, err
	}
	return rental.AvailableCarTypes(c, cars, r), nil
}
