package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	appoutbox "carrental/internal/app/outbox"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
)

// Begin opens a unit on one company. Writable units hold the company's writer
// lock until Commit or Rollback; read-only units work on snapshots.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if opts.Company == "" {
		return nil, uow.ErrCompanyRequired
	}
	entry, _ := s.entry(opts.Company)
	if entry != nil && !opts.ReadOnly {
		if err := lockWithContext(ctx, &entry.writer); err != nil {
			return nil, err
		}
	}
	return &Unit{
		store:    s,
		company:  opts.Company,
		readOnly: opts.ReadOnly,
		entry:    entry,
		locked:   entry != nil && !opts.ReadOnly,
		staged:   make(map[rental.CarID]*rental.Car),
	}, nil
}

// lockWithContext gives up waiting for the writer lock once ctx is done.
func lockWithContext(ctx context.Context, mu *sync.Mutex) error {
	if mu.TryLock() {
		return nil
	}
	acquired := make(chan struct{})
	go func() {
		mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		go func() {
			<-acquired
			mu.Unlock()
		}()
		return ctx.Err()
	}
}

// Unit is a uow.UnitOfWork over one company of the in-memory Store.
type Unit struct {
	store    *Store
	company  string
	readOnly bool
	entry    *companyEntry
	locked   bool
	done     bool

	staged map[rental.CarID]*rental.Car
	events []appoutbox.EventRecord
}

func (u *Unit) Rentals() rental.Repository { return unitRepository{u} }

func (u *Unit) Outbox() appoutbox.Outbox { return unitOutbox{u} }

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return uow.ErrUnitClosed
	}
	u.done = true
	defer u.release()
	if u.readOnly || u.entry == nil {
		return nil
	}
	u.entry.mu.Lock()
	for id, car := range u.staged {
		stored := car.Clone()
		stored.Version++
		u.entry.cars[id] = stored
	}
	u.entry.mu.Unlock()
	for _, rec := range u.events {
		if err := u.store.outbox.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.release()
	return nil
}

func (u *Unit) release() {
	if u.locked {
		u.locked = false
		u.entry.writer.Unlock()
	}
}

func (u *Unit) checkScope(company string) error {
	if u.done {
		return uow.ErrUnitClosed
	}
	if company != u.company {
		return fmt.Errorf("%w: %s in unit of %s", uow.ErrOutOfScope, company, u.company)
	}
	if u.entry == nil {
		return rental.ErrCompanyNotFound
	}
	return nil
}

// cars returns working copies: staged versions first, snapshots otherwise.
func (u *Unit) cars(filter func(*rental.Car) bool) []*rental.Car {
	u.entry.mu.RLock()
	out := make([]*rental.Car, 0, len(u.entry.cars))
	for id, car := range u.entry.cars {
		if staged, ok := u.staged[id]; ok {
			car = staged
		}
		if filter == nil || filter(car) {
			out = append(out, car.Clone())
		}
	}
	u.entry.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type unitRepository struct{ u *Unit }

func (r unitRepository) Company(ctx context.Context, name string) (*rental.Company, error) {
	if err := r.u.checkScope(name); err != nil {
		return nil, err
	}
	r.u.entry.mu.RLock()
	defer r.u.entry.mu.RUnlock()
	cp := *r.u.entry.company
	cp.CarTypes = append([]rental.CarType(nil), r.u.entry.company.CarTypes...)
	return &cp, nil
}

func (r unitRepository) CarType(ctx context.Context, company, carType string) (rental.CarType, error) {
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

func (r unitRepository) CarsOfType(ctx context.Context, company, carType string) ([]*rental.Car, error) {
	if err := r.u.checkScope(company); err != nil {
		return nil, err
	}
	return r.u.cars(func(c *rental.Car) bool { return c.Type == carType }), nil
}

func (r unitRepository) Cars(ctx context.Context, company string) ([]*rental.Car, error) {
	if err := r.u.checkScope(company); err != nil {
		return nil, err
	}
	return r.u.cars(nil), nil
}

func (r unitRepository) SaveCar(ctx context.Context, car *rental.Car) error {
	if err := r.u.checkScope(car.Company); err != nil {
		return err
	}
	if r.u.readOnly {
		return uow.ErrReadOnly
	}
	r.u.entry.mu.RLock()
	_, known := r.u.entry.cars[car.ID]
	r.u.entry.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s/%d", rental.ErrCarNotFound, car.Company, car.ID)
	}
	r.u.staged[car.ID] = car.Clone()
	return nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if o.u.done {
		return uow.ErrUnitClosed
	}
	o.u.events = append(o.u.events, record)
	return nil
}

var _ uow.UoWFactory = (*Store)(nil)
