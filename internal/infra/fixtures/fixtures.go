// Package fixtures seeds companies and their fleets from a JSON file at
// start-up.
package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/money"
)

type companyFixture struct {
	Name     string           `json:"name"`
	CarTypes []carTypeFixture `json:"car_types"`
}

type carTypeFixture struct {
	Name           string  `json:"name"`
	Seats          int     `json:"seats"`
	SmokingAllowed bool    `json:"smoking_allowed"`
	TrunkSpace     float64 `json:"trunk_space"`
	PriceCents     int64   `json:"price_per_day_cents"`
	Currency       string  `json:"currency"`
	// Cars lists explicit car ids; Count adds that many cars with the next
	// free ids of the company.
	Cars  []int64 `json:"cars"`
	Count int     `json:"count"`
}

// Load registers every company found in path. A missing file is not an
// error; an invalid company is logged and skipped. It returns how many
// companies were registered.
func Load(ctx context.Context, path string, registrar rental.Registrar, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		logger.Warn("fixtures file empty", "path", path)
		return 0, nil
	}

	var companies []companyFixture
	if err := json.Unmarshal(data, &companies); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}

	loaded := 0
	for _, fx := range companies {
		company, cars, err := fx.build()
		if err != nil {
			logger.Error("fixture invalid", "company", fx.Name, "error", err)
			continue
		}
		if err := registrar.RegisterCompany(ctx, company, cars); err != nil {
			logger.Error("cannot register fixture company", "company", fx.Name, "error", err)
			continue
		}
		loaded++
		logger.Info("company fixture imported", "company", company.Name, "car_types", len(company.CarTypes), "cars", len(cars))
	}
	return loaded, nil
}

func (fx companyFixture) build() (*rental.Company, []*rental.Car, error) {
	types := make([]rental.CarType, 0, len(fx.CarTypes))
	for _, t := range fx.CarTypes {
		price, err := money.New(t.PriceCents, t.Currency)
		if err != nil {
			return nil, nil, fmt.Errorf("car type %s: %w", t.Name, err)
		}
		types = append(types, rental.CarType{
			Name:           strings.TrimSpace(t.Name),
			Seats:          t.Seats,
			SmokingAllowed: t.SmokingAllowed,
			TrunkSpace:     t.TrunkSpace,
			PricePerDay:    price,
		})
	}
	company, err := rental.NewCompany(fx.Name, types)
	if err != nil {
		return nil, nil, err
	}

	used := make(map[rental.CarID]bool)
	var next rental.CarID = 1
	var cars []*rental.Car
	for _, t := range fx.CarTypes {
		for _, id := range t.Cars {
			cid := rental.CarID(id)
			if used[cid] {
				return nil, nil, fmt.Errorf("%w: duplicate car id %d", rental.ErrInvalidCompany, id)
			}
			used[cid] = true
			cars = append(cars, rental.NewCar(company.Name, strings.TrimSpace(t.Name), cid))
		}
	}
	for _, t := range fx.CarTypes {
		for i := 0; i < t.Count; i++ {
			for used[next] {
				next++
			}
			used[next] = true
			cars = append(cars, rental.NewCar(company.Name, strings.TrimSpace(t.Name), next))
		}
	}
	return company, cars, nil
}

// DefaultPath returns the first existing candidate, or the first candidate.
func DefaultPath() string {
	candidates := []string{
		filepath.Join("data", "companies.json"),
		filepath.Join("..", "..", "data", "companies.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
