package uow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"carrental/internal/domain/rental"
)

// Runner executes work inside one company's unit of work and retries the whole
// unit when the backend reports a concurrent modification.
type Runner struct {
	Factory UoWFactory
	Backoff []time.Duration
	Logger  *slog.Logger
}

// Work must be safe to re-run: a retried unit starts from fresh state.
type Work func(ctx context.Context, unit UnitOfWork) error

func (r Runner) InCompany(ctx context.Context, company string, work Work) error {
	if strings.TrimSpace(company) == "" {
		return ErrCompanyRequired
	}
	for attempt := 0; ; attempt++ {
		err := r.once(ctx, TxOptions{Company: company}, work)
		if err == nil || !rental.IsRetryable(err) || attempt >= len(r.Backoff) {
			return err
		}
		if r.Logger != nil {
			r.Logger.Warn("company transaction conflict, retrying", "company", company, "attempt", attempt+1, "error", err)
		}
		timer := time.NewTimer(r.Backoff[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ReadCompany runs work in a read-only unit that is always rolled back.
func (r Runner) ReadCompany(ctx context.Context, company string, work Work) error {
	if strings.TrimSpace(company) == "" {
		return ErrCompanyRequired
	}
	unit, err := r.Factory.Begin(ctx, TxOptions{Company: company, ReadOnly: true})
	if err != nil {
		return err
	}
	execCtx := prepare(ctx, unit)
	defer func() { _ = unit.Rollback(execCtx) }()
	return work(execCtx, unit)
}

func (r Runner) once(ctx context.Context, opts TxOptions, work Work) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unit, err := r.Factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := prepare(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := work(execCtx, unit); err != nil {
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}
