package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"carrental/internal/domain/rental"
)

// Store keeps companies, their fleets and reservations in memory. Each company
// has its own writer lock; units of different companies never contend.
type Store struct {
	mu        sync.RWMutex
	companies map[string]*companyEntry
	outbox    *Outbox
}

type companyEntry struct {
	writer sync.Mutex

	mu      sync.RWMutex
	company *rental.Company
	cars    map[rental.CarID]*rental.Car
}

func NewStore(outbox *Outbox) *Store {
	if outbox == nil {
		outbox = NewOutbox()
	}
	return &Store{companies: make(map[string]*companyEntry), outbox: outbox}
}

func (s *Store) Outbox() *Outbox { return s.outbox }

// RegisterCompany stores or replaces a company with its fleet.
func (s *Store) RegisterCompany(ctx context.Context, company *rental.Company, cars []*rental.Car) error {
	if company == nil {
		return rental.ErrInvalidCompany
	}
	fleet := make(map[rental.CarID]*rental.Car, len(cars))
	for _, car := range cars {
		if car.Company != company.Name {
			return fmt.Errorf("%w: car %d belongs to %q", rental.ErrInvalidCompany, car.ID, car.Company)
		}
		if _, ok := company.CarType(car.Type); !ok {
			return fmt.Errorf("%w: %s/%s", rental.ErrCarTypeNotFound, company.Name, car.Type)
		}
		if _, dup := fleet[car.ID]; dup {
			return fmt.Errorf("%w: duplicate car id %d", rental.ErrInvalidCompany, car.ID)
		}
		fleet[car.ID] = car.Clone()
	}
	cp := *company
	cp.CarTypes = append([]rental.CarType(nil), company.CarTypes...)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.companies[company.Name]
	if !ok {
		s.companies[company.Name] = &companyEntry{company: &cp, cars: fleet}
		return nil
	}
	entry.writer.Lock()
	defer entry.writer.Unlock()
	entry.mu.Lock()
	entry.company = &cp
	entry.cars = fleet
	entry.mu.Unlock()
	return nil
}

func (s *Store) CompanyNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.companies))
	for name := range s.companies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReservationsByRenter returns the renter's reservations ordered by start time.
func (s *Store) ReservationsByRenter(ctx context.Context, renter string) ([]rental.Reservation, error) {
	s.mu.RLock()
	entries := make([]*companyEntry, 0, len(s.companies))
	for _, e := range s.companies {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]rental.Reservation, 0)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.mu.RLock()
		for _, car := range e.cars {
			for _, res := range car.Reservations {
				if res.Quote.Renter == renter {
					out = append(out, res)
				}
			}
		}
		e.mu.RUnlock()
	}
	rental.SortReservations(out)
	return out, nil
}

func (s *Store) entry(name string) (*companyEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.companies[name]
	return e, ok
}

var (
	_ rental.Catalog   = (*Store)(nil)
	_ rental.Registrar = (*Store)(nil)
)
