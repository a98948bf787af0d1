// Package snapshot holds the working state of a company unit of work for
// backends that load a company once and write it back on commit.
package snapshot

import (
	"context"
	"fmt"
	"sort"

	appoutbox "carrental/internal/app/outbox"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
)

// Aggregate is a company with its whole fleet as read from storage.
type Aggregate struct {
	Company *rental.Company
	Version int64
	Cars    []*rental.Car
}

// LoadFunc reads the aggregate; it returns rental.ErrCompanyNotFound when
// the company does not exist.
type LoadFunc func(ctx context.Context) (*Aggregate, error)

type Unit struct {
	company  string
	readOnly bool
	load     LoadFunc

	loaded  bool
	loadErr error
	agg     *Aggregate
	cars    map[rental.CarID]*rental.Car

	staged map[rental.CarID]*rental.Car
	events []appoutbox.EventRecord
	done   bool
}

func New(company string, readOnly bool, load LoadFunc) *Unit {
	return &Unit{
		company:  company,
		readOnly: readOnly,
		load:     load,
		staged:   make(map[rental.CarID]*rental.Car),
	}
}

func (u *Unit) Company() string { return u.company }
func (u *Unit) ReadOnly() bool  { return u.readOnly }

func (u *Unit) Rentals() rental.Repository { return repository{u} }

func (u *Unit) Outbox() appoutbox.Outbox { return outbox{u} }

// Finish closes the unit and reports whether it was still open.
func (u *Unit) Finish() bool {
	if u.done {
		return false
	}
	u.done = true
	return true
}

func (u *Unit) Done() bool { return u.done }

// Changes is what a commit has to write.
type Changes struct {
	Version int64
	Cars    []*rental.Car
	Events  []appoutbox.EventRecord
}

func (c Changes) Empty() bool { return len(c.Cars) == 0 && len(c.Events) == 0 }

// Changes returns staged cars ordered by id and the staged events.
func (u *Unit) Changes() Changes {
	out := Changes{Events: append([]appoutbox.EventRecord(nil), u.events...)}
	if u.agg != nil {
		out.Version = u.agg.Version
	}
	for _, car := range u.staged {
		out.Cars = append(out.Cars, car)
	}
	sort.Slice(out.Cars, func(i, j int) bool { return out.Cars[i].ID < out.Cars[j].ID })
	return out
}

func (u *Unit) ensure(ctx context.Context, company string) error {
	if u.done {
		return uow.ErrUnitClosed
	}
	if company != u.company {
		return fmt.Errorf("%w: %s in unit of %s", uow.ErrOutOfScope, company, u.company)
	}
	if !u.loaded {
		u.loaded = true
		u.agg, u.loadErr = u.load(ctx)
		if u.loadErr == nil {
			u.cars = make(map[rental.CarID]*rental.Car, len(u.agg.Cars))
			for _, c := range u.agg.Cars {
				u.cars[c.ID] = c
			}
		}
	}
	return u.loadErr
}

func (u *Unit) list(filter func(*rental.Car) bool) []*rental.Car {
	out := make([]*rental.Car, 0, len(u.cars))
	for id, car := range u.cars {
		if staged, ok := u.staged[id]; ok {
			car = staged
		}
		if filter == nil || filter(car) {
			out = append(out, car.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type repository struct{ u *Unit }

func (r repository) Company(ctx context.Context, name string) (*rental.Company, error) {
	if err := r.u.ensure(ctx, name); err != nil {
		return nil, err
	}
	cp := *r.u.agg.Company
	cp.CarTypes = append([]rental.CarType(nil), r.u.agg.Company.CarTypes...)
	return &cp, nil
}

func (r repository) CarType(ctx context.Context, company, carType string) (rental.CarType, error) {
	c, err := r.Company(ctx, company)
	if err != nil {
		return rental.CarType{}, err
	}
	t, ok := c.CarType(carType)
	if !ok {
		return rental.CarType{}, fmt.Errorf("%w: %s/%s", rental.ErrCarTypeNotFound, company, carType)
	}
	return t, nil
}

func (r repository) CarsOfType(ctx context.Context, company, carType string) ([]*rental.Car, error) {
	if err := r.u.ensure(ctx, company); err != nil {
		return nil, err
	}
	return r.u.list(func(c *rental.Car) bool { return c.Type == carType }), nil
}

func (r repository) Cars(ctx context.Context, company string) ([]*rental.Car, error) {
	if err := r.u.ensure(ctx, company); err != nil {
		return nil, err
	}
	return r.u.list(nil), nil
}

func (r repository) SaveCar(ctx context.Context, car *rental.Car) error {
	if err := r.u.ensure(ctx, car.Company); err != nil {
		return err
	}
	if r.u.readOnly {
		return uow.ErrReadOnly
	}
	if _, known := r.u.cars[car.ID]; !known {
		return fmt.Errorf("%w: %s/%d", rental.ErrCarNotFound, car.Company, car.ID)
	}
	r.u.staged[car.ID] = car.Clone()
	return nil
}

type outbox struct{ u *Unit }

func (o outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if o.u.done {
		return uow.ErrUnitClosed
	}
	if o.u.readOnly {
		return uow.ErrReadOnly
	}
	o.u.events = append(o.u.events, record)
	return nil
}
