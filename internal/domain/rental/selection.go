package rental

import "math/rand/v2"

// CarSelector picks one car out of a non-empty list of available cars.
type CarSelector interface {
	Select(cars []*Car) *Car
}

type SelectorFunc func(cars []*Car) *Car

func (f SelectorFunc) Select(cars []*Car) *Car { return f(cars) }

// FirstSelector picks the lowest id; used where assignment must be deterministic.
type FirstSelector struct{}

func (FirstSelector) Select(cars []*Car) *Car {
	if len(cars) == 0 {
		return nil
	}
	return cars[0]
}

// RandomSelector spreads reservations uniformly over the available cars.
type RandomSelector struct{}

func (RandomSelector) Select(cars []*Car) *Car {
	if len(cars) == 0 {
		return nil
	}
	return cars[rand.IntN(len(cars))]
}
