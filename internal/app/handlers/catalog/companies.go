package catalog

import (
	"context"

	"carrental/internal/app/queries"
	"carrental/internal/domain/rental"
)

const listCompaniesKey = "catalog.companies"

type ListCompaniesQuery struct{}

func (ListCompaniesQuery) Key() string { return listCompaniesKey }

type ListCompaniesHandler struct {
	Catalog rental.Catalog
}

func (h *ListCompaniesHandler) Handle(ctx context.Context, _ ListCompaniesQuery) ([]string, error) {
	names, err := h.Catalog.CompanyNames(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

var _ queries.Handler[ListCompaniesQuery, []string] = (*ListCompaniesHandler)(nil)
