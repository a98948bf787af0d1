package rental

import (
	"fmt"
	"sort"
	"strings"

	"carrental/internal/domain/shared/money"
)

// CarType is immutable once registered with its company.
type CarType struct {
	Company        string
	Name           string
	Seats          int
	SmokingAllowed bool
	TrunkSpace     float64
	PricePerDay    money.Money
}

func (t CarType) Validate() error {
	if strings.TrimSpace(t.Company) == "" || strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: company and name are required", ErrInvalidCarType)
	}
	if t.Seats <= 0 {
		return fmt.Errorf("%w: seats must be positive", ErrInvalidCarType)
	}
	if t.TrunkSpace < 0 {
		return fmt.Errorf("%w: trunk space must not be negative", ErrInvalidCarType)
	}
	if t.PricePerDay.Currency == "" || t.PricePerDay.Amount < 0 {
		return fmt.Errorf("%w: price per day must be set", ErrInvalidCarType)
	}
	return nil
}

// Company is the unit of atomicity: all mutations of its cars are serialized.
type Company struct {
	Name     string
	CarTypes []CarType
}

func NewCompany(name string, types []CarType) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCompany)
	}
	seen := make(map[string]struct{}, len(types))
	out := make([]CarType, 0, len(types))
	for _, t := range types {
		if t.Company == "" {
			t.Company = name
		}
		if t.Company != name {
			return nil, fmt.Errorf("%w: car type %q belongs to %q", ErrInvalidCompany, t.Name, t.Company)
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate car type %q", ErrInvalidCompany, t.Name)
		}
		seen[t.Name] = struct{}{}
		out = append(out, t)
	}
	return &Company{Name: name, CarTypes: out}, nil
}

func (c *Company) CarType(name string) (CarType, bool) {
	for _, t := range c.CarTypes {
		if t.Name == name {
			return t, true
		}
	}
	return CarType{}, false
}

func (c *Company) CarTypeNames() []string {
	names := make([]string, 0, len(c.CarTypes))
	for _, t := range c.CarTypes {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
