package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/daterange"
	"carrental/internal/domain/shared/money"
	"carrental/internal/infra/db/snapshot"
)

// Factory runs each company unit in its own transaction. Writable units lock
// the company row with SELECT ... FOR UPDATE, so writers of one company queue
// up while other companies proceed.
type Factory struct {
	DB *sql.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if opts.Company == "" {
		return nil, uow.ErrCompanyRequired
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, mapError(err)
	}
	u := &Unit{tx: tx}
	u.Unit = snapshot.New(opts.Company, opts.ReadOnly, u.load)
	return u, nil
}

type Unit struct {
	*snapshot.Unit
	tx *sql.Tx
}

func (u *Unit) load(ctx context.Context) (*snapshot.Aggregate, error) {
	lock := " FOR UPDATE"
	if u.ReadOnly() {
		lock = ""
	}
	agg := &snapshot.Aggregate{Company: &rental.Company{Name: u.Company()}}
	err := u.tx.QueryRowContext(ctx, `SELECT version FROM companies WHERE name = $1`+lock, u.Company()).Scan(&agg.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", rental.ErrCompanyNotFound, u.Company())
	}
	if err != nil {
		return nil, mapError(err)
	}

	types, err := u.tx.QueryContext(ctx, `
		SELECT name, seats, smoking_allowed, trunk_space, price_cents, currency
		FROM car_types WHERE company = $1 ORDER BY name`, u.Company())
	if err != nil {
		return nil, mapError(err)
	}
	defer types.Close()
	for types.Next() {
		t := rental.CarType{Company: u.Company()}
		var cents int64
		var currency string
		if err := types.Scan(&t.Name, &t.Seats, &t.SmokingAllowed, &t.TrunkSpace, &cents, &currency); err != nil {
			return nil, err
		}
		t.PricePerDay = money.Money{Amount: cents, Currency: currency}
		agg.Company.CarTypes = append(agg.Company.CarTypes, t)
	}
	if err := types.Err(); err != nil {
		return nil, mapError(err)
	}

	cars := make(map[rental.CarID]*rental.Car)
	rows, err := u.tx.QueryContext(ctx, `SELECT id, car_type, version FROM cars WHERE company = $1 ORDER BY id`, u.Company())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		car := &rental.Car{Company: u.Company()}
		if err := rows.Scan(&id, &car.Type, &car.Version); err != nil {
			return nil, err
		}
		car.ID = rental.CarID(id)
		cars[car.ID] = car
		agg.Cars = append(agg.Cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	reservations, err := queryReservations(ctx, u.tx, `WHERE company = $1`, u.Company())
	if err != nil {
		return nil, err
	}
	for _, r := range reservations {
		if car, ok := cars[r.CarID]; ok {
			car.Reservations = append(car.Reservations, r)
		}
	}
	return agg, nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if !u.Finish() {
		return uow.ErrUnitClosed
	}
	changes := u.Changes()
	if u.ReadOnly() || changes.Empty() {
		return mapError(u.tx.Rollback())
	}
	if err := u.write(ctx, changes); err != nil {
		_ = u.tx.Rollback()
		return err
	}
	return mapError(u.tx.Commit())
}

func (u *Unit) write(ctx context.Context, changes snapshot.Changes) error {
	for _, car := range changes.Cars {
		ids := make([]string, 0, len(car.Reservations))
		for _, r := range car.Reservations {
			ids = append(ids, string(r.ID))
		}
		if _, err := u.tx.ExecContext(ctx,
			`DELETE FROM reservations WHERE company = $1 AND car_id = $2 AND NOT (id = ANY($3))`,
			car.Company, int64(car.ID), pq.Array(ids)); err != nil {
			return mapError(err)
		}
		for _, r := range car.Reservations {
			if _, err := u.tx.ExecContext(ctx, `
				INSERT INTO reservations (id, company, car_id, renter, car_type, start_at, end_at, price_cents, currency, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO NOTHING`,
				string(r.ID), car.Company, int64(car.ID), r.Quote.Renter, r.Quote.CarType,
				r.Quote.Range.Start, r.Quote.Range.End, r.Quote.Price.Amount, r.Quote.Price.Currency, r.CreatedAt); err != nil {
				return mapError(err)
			}
		}
		res, err := u.tx.ExecContext(ctx,
			`UPDATE cars SET version = version + 1 WHERE company = $1 AND id = $2 AND version = $3`,
			car.Company, int64(car.ID), car.Version)
		if err != nil {
			return mapError(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: car %s/%d", rental.ErrTransactionConflict, car.Company, car.ID)
		}
	}
	if _, err := u.tx.ExecContext(ctx, `UPDATE companies SET version = version + 1 WHERE name = $1`, u.Company()); err != nil {
		return mapError(err)
	}
	now := time.Now().UTC()
	for _, rec := range changes.Events {
		headers, err := json.Marshal(rec.Headers)
		if err != nil {
			return err
		}
		if _, err := u.tx.ExecContext(ctx, `
			INSERT INTO outbox (id, name, payload, occurred_at, aggregate, headers, state, next_attempt_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'NEW', $7, $7)
			ON CONFLICT (id) DO NOTHING`,
			rec.ID, rec.Name, rec.Payload, rec.OccurredAt, rec.Aggregate, headers, now); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if !u.Finish() {
		return nil
	}
	return u.tx.Rollback()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryReservations(ctx context.Context, q querier, where string, args ...any) ([]rental.Reservation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, company, car_id, renter, car_type, start_at, end_at, price_cents, currency, created_at
		FROM reservations `+where+` ORDER BY start_at, id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []rental.Reservation
	for rows.Next() {
		var (
			r          rental.Reservation
			id         string
			carID      int64
			start, end time.Time
		)
		if err := rows.Scan(&id, &r.Quote.Company, &carID, &r.Quote.Renter, &r.Quote.CarType,
			&start, &end, &r.Quote.Price.Amount, &r.Quote.Price.Currency, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ID = rental.ReservationID(id)
		r.CarID = rental.CarID(carID)
		r.Quote.Range = daterange.DateRange{Start: start.UTC(), End: end.UTC()}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, mapError(rows.Err())
}

var _ uow.UoWFactory = Factory{}
