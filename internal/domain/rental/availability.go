package rental

import (
	"sort"

	"carrental/internal/domain/shared/daterange"
)

// AvailableCars returns the cars of carType that are free over r, ordered by id.
func AvailableCars(cars []*Car, carType string, r daterange.DateRange) []*Car {
	out := make([]*Car, 0, len(cars))
	for _, car := range cars {
		if car.Type != carType {
			continue
		}
		if car.IsAvailable(r) {
			out = append(out, car)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableCarTypes lists the company's car types having at least one free car over r.
func AvailableCarTypes(company *Company, cars []*Car, r daterange.DateRange) []CarType {
	free := make(map[string]bool, len(company.CarTypes))
	for _, car := range cars {
		if !free[car.Type] && car.IsAvailable(r) {
			free[car.Type] = true
		}
	}
	out := make([]CarType, 0, len(free))
	for _, t := range company.CarTypes {
		if free[t.Name] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
