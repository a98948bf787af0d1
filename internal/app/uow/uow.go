package uow

import (
	"context"
	"errors"

	"carrental/internal/app/outbox"
	"carrental/internal/domain/rental"
)

// UnitOfWork coordinates repositories inside one company's transaction boundary.
type UnitOfWork interface {
	Rentals() rental.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries. Company names the atomicity
// domain; writes outside it are rejected by the backends.
type TxOptions struct {
	ReadOnly bool
	Company  string
}

// CompanyScoped is implemented by commands that mutate exactly one company.
type CompanyScoped interface {
	CompanyScope() string
}

var (
	ErrCompanyRequired = errors.New("uow: company scope required")
	ErrOutOfScope      = errors.New("uow: entity outside the unit's company")
	ErrReadOnly        = errors.New("uow: write in read-only unit")
	ErrUnitClosed      = errors.New("uow: unit already finished")
)
