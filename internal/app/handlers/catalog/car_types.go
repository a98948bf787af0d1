package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carrental/internal/app/confirmation"
	"carrental/internal/app/dto"
	"carrental/internal/app/queries"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/domain/shared/daterange"
)

const (
	carTypesKey          = "catalog.car_types"
	availableCarTypesKey = "catalog.available_car_types"
)

var ErrCompanyRequired = fmt.Errorf("%w: company is required", rental.ErrInvalidCompany)

type CarTypesQuery struct {
	Company string
}

func (CarTypesQuery) Key() string { return carTypesKey }

func (q CarTypesQuery) Validate() error {
	if strings.TrimSpace(q.Company) == "" {
		return ErrCompanyRequired
	}
	return nil
}

type CarTypesHandler struct {
	Runner uow.Runner
}

func (h *CarTypesHandler) Handle(ctx context.Context, q CarTypesQuery) ([]dto.CarType, error) {
	var out []dto.CarType
	err := h.Runner.ReadCompany(ctx, q.Company, func(ctx context.Context, unit uow.UnitOfWork) error {
		company, err := unit.Rentals().Company(ctx, q.Company)
		if err != nil {
			return err
		}
		out = make([]dto.CarType, 0, len(company.CarTypes))
		for _, name := range company.CarTypeNames() {
			t, _ := company.CarType(name)
			out = append(out, dto.CarTypeFromDomain(t))
		}
		return nil
	})
	return out, err
}

// AvailableCarTypesQuery lists the car types with at least one car free for
// the whole period.
type AvailableCarTypesQuery struct {
	Company string
	Start   time.Time
	End     time.Time
}

func (AvailableCarTypesQuery) Key() string { return availableCarTypesKey }

func (q AvailableCarTypesQuery) Validate() error {
	if strings.TrimSpace(q.Company) == "" {
		return ErrCompanyRequired
	}
	_, err := daterange.New(q.Start, q.End)
	return err
}

type AvailableCarTypesHandler struct {
	Runner uow.Runner
}

func (h *AvailableCarTypesHandler) Handle(ctx context.Context, q AvailableCarTypesQuery) ([]dto.CarType, error) {
	period, err := daterange.New(q.Start, q.End)
	if err != nil {
		return nil, err
	}
	var out []dto.CarType
	err = h.Runner.ReadCompany(ctx, q.Company, func(ctx context.Context, unit uow.UnitOfWork) error {
		types, err := confirmation.AvailableCarTypes(ctx, unit.Rentals(), q.Company, period)
		if err != nil {
			return err
		}
		out = dto.CarTypesFromDomain(types)
		return nil
	})
	return out, err
}

var (
	_ queries.Handler[CarTypesQuery, []dto.CarType]          = (*CarTypesHandler)(nil)
	_ queries.Handler[AvailableCarTypesQuery, []dto.CarType] = (*AvailableCarTypesHandler)(nil)
)
