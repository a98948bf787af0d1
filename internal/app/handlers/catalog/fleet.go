package catalog

import (
	"context"
	"slices"

	"carrental/internal/app/dto"
	"carrental/internal/app/queries"
	"carrental/internal/app/uow"
)

const fleetKey = "catalog.fleet"

// FleetQuery reports the cars of one type. An empty CarType covers the whole company.
type FleetQuery struct {
	Company string
	CarType string
}

func (FleetQuery) Key() string { return fleetKey }

func (q FleetQuery) Validate() error {
	return CarTypesQuery{Company: q.Company}.Validate()
}

type FleetHandler struct {
	Runner uow.Runner
}

func (h *FleetHandler) Handle(ctx context.Context, q FleetQuery) (dto.Fleet, error) {
	fleet := dto.Fleet{Company: q.Company, CarType: q.CarType, CarIDs: []int64{}}
	err := h.Runner.ReadCompany(ctx, q.Company, func(ctx context.Context, unit uow.UnitOfWork) error {
		repo := unit.Rentals()
		if q.CarType != "" {
			if _, err := repo.CarType(ctx, q.Company, q.CarType); err != nil {
				return err
			}
			cars, err := repo.CarsOfType(ctx, q.Company, q.CarType)
			if err != nil {
				return err
			}
			for _, c := range cars {
				fleet.CarIDs = append(fleet.CarIDs, int64(c.ID))
			}
			return nil
		}
		if _, err := repo.Company(ctx, q.Company); err != nil {
			return err
		}
		cars, err := repo.Cars(ctx, q.Company)
		if err != nil {
			return err
		}
		for _, c := range cars {
			fleet.CarIDs = append(fleet.CarIDs, int64(c.ID))
		}
		return nil
	})
	if err != nil {
		return dto.Fleet{}, err
	}
	slices.Sort(fleet.CarIDs)
	fleet.Count = len(fleet.CarIDs)
	return fleet, nil
}

var _ queries.Handler[FleetQuery, dto.Fleet] = (*FleetHandler)(nil)
