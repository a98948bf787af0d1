package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"carrental/internal/domain/rental"
)

// Catalog answers cross-company reads outside any unit of work.
type Catalog struct {
	DB *sql.DB
}

func (c Catalog) CompanyNames(ctx context.Context) ([]string, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT name FROM companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error listing companies: %w", err)
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning company: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c Catalog) ReservationsByRenter(ctx context.Context, renter string) ([]rental.Reservation, error) {
	out, err := queryReservations(ctx, c.DB, `WHERE renter = $1`, renter)
	if err != nil {
		return nil, fmt.Errorf("error listing reservations of %s: %w", renter, err)
	}
	if out == nil {
		out = make([]rental.Reservation, 0)
	}
	rental.SortReservations(out)
	return out, nil
}

// RegisterCompany replaces a company and its fleet in one transaction. The
// company version moves forward so units that loaded the old fleet conflict.
func (c Catalog) RegisterCompany(ctx context.Context, company *rental.Company, cars []*rental.Car) (err error) {
	if company == nil {
		return rental.ErrInvalidCompany
	}
	for _, car := range cars {
		if car.Company != company.Name {
			return fmt.Errorf("%w: car %d belongs to %q", rental.ErrInvalidCompany, car.ID, car.Company)
		}
		if _, ok := company.CarType(car.Type); !ok {
			return fmt.Errorf("%w: %s/%s", rental.ErrCarTypeNotFound, company.Name, car.Type)
		}
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO companies (name, version) VALUES ($1, 0)
		ON CONFLICT (name) DO UPDATE SET version = companies.version + 1`, company.Name); err != nil {
		return mapError(err)
	}
	for _, stmt := range []string{
		`DELETE FROM reservations WHERE company = $1`,
		`DELETE FROM cars WHERE company = $1`,
		`DELETE FROM car_types WHERE company = $1`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, company.Name); err != nil {
			return mapError(err)
		}
	}
	for _, t := range company.CarTypes {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO car_types (company, name, seats, smoking_allowed, trunk_space, price_cents, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			company.Name, t.Name, t.Seats, t.SmokingAllowed, t.TrunkSpace, t.PricePerDay.Amount, t.PricePerDay.Currency); err != nil {
			return mapError(err)
		}
	}
	for _, car := range cars {
		if _, err = tx.ExecContext(ctx, `INSERT INTO cars (company, id, car_type, version) VALUES ($1, $2, $3, 0)`,
			company.Name, int64(car.ID), car.Type); err != nil {
			return mapError(err)
		}
		for _, r := range car.Reservations {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO reservations (id, company, car_id, renter, car_type, start_at, end_at, price_cents, currency, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				string(r.ID), company.Name, int64(car.ID), r.Quote.Renter, r.Quote.CarType,
				r.Quote.Range.Start, r.Quote.Range.End, r.Quote.Price.Amount, r.Quote.Price.Currency, r.CreatedAt); err != nil {
				return mapError(err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

var (
	_ rental.Catalog   = Catalog{}
	_ rental.Registrar = Catalog{}
)
