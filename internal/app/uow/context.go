package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// sessionBinder is implemented by units whose backend session travels in ctx.
type sessionBinder interface {
	InjectContext(context.Context) context.Context
}

func WithUnit(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext returns the unit opened by Runner for the current company.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}

func prepare(ctx context.Context, unit UnitOfWork) context.Context {
	if b, ok := unit.(sessionBinder); ok {
		ctx = b.InjectContext(ctx)
	}
	return WithUnit(ctx, unit)
}
