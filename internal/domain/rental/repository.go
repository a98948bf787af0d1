package rental

import "context"

// Repository reads and writes one company inside a unit of work.
type Repository interface {
	Company(ctx context.Context, name string) (*Company, error)
	CarType(ctx context.Context, company, carType string) (CarType, error)
	CarsOfType(ctx context.Context, company, carType string) ([]*Car, error)
	Cars(ctx context.Context, company string) ([]*Car, error)
	SaveCar(ctx context.Context, car *Car) error
}

// Catalog answers cross-company reads that never need a company lock.
type Catalog interface {
	CompanyNames(ctx context.Context) ([]string, error)
	ReservationsByRenter(ctx context.Context, renter string) ([]Reservation, error)
}

// Registrar registers companies and their fleet.
type Registrar interface {
	RegisterCompany(ctx context.Context, company *Company, cars []*Car) error
}
