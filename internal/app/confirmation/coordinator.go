package confirmation

import (
	"context"
	"fmt"
	"log/slog"

	"carrental/internal/app/saga"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
)

// Group is the slice of a batch owned by one company.
type Group struct {
	Company string
	Quotes  []rental.Quote
}

// GroupByCompany partitions quotes by company. Groups follow the order in
// which each company first appears; quotes keep their order inside a group.
func GroupByCompany(quotes []rental.Quote) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, q := range quotes {
		i, ok := index[q.Company]
		if !ok {
			i = len(groups)
			index[q.Company] = i
			groups = append(groups, Group{Company: q.Company})
		}
		groups[i].Quotes = append(groups[i].Quotes, q)
	}
	return groups
}

// Coordinator confirms batches that may span several companies. Each company
// group commits atomically; if any group fails the committed ones are undone.
type Coordinator struct {
	Runner         uow.Runner
	Engine         *ReservationEngine
	ParallelGroups bool
	Logger         *slog.Logger
}

func (c *Coordinator) ConfirmAll(ctx context.Context, quotes []rental.Quote) ([]rental.Reservation, error) {
	if len(quotes) == 0 {
		return nil, nil
	}
	groups := GroupByCompany(quotes)
	steps := make([]saga.Step[[]rental.Reservation], 0, len(groups))
	for _, g := range groups {
		steps = append(steps, groupStep{group: g, coordinator: c})
	}

	var out saga.Outcome[[]rental.Reservation]
	if c.ParallelGroups {
		out = saga.RunParallel(ctx, steps)
	} else {
		out = saga.Run(ctx, steps)
	}
	if out.Failed() {
		if n := len(out.CompensationErrors); n > 0 {
			c.logger().Error("CRITICAL batch compensation incomplete", "failed_company", out.FailedStep, "left_in_place", n)
		}
		return nil, &rental.BatchError{
			Quotes:               len(quotes),
			Company:              out.FailedStep,
			Err:                  out.Err,
			Compensated:          out.Compensated,
			CompensationFailures: out.CompensationErrors,
		}
	}

	reservations := make([]rental.Reservation, 0, len(quotes))
	for _, batch := range out.Results {
		reservations = append(reservations, batch...)
	}
	return reservations, nil
}

// ConfirmGroup confirms every quote of one company in a single unit of work.
func (c *Coordinator) ConfirmGroup(ctx context.Context, g Group) ([]rental.Reservation, error) {
	var confirmed []rental.Reservation
	err := c.Runner.InCompany(ctx, g.Company, func(ctx context.Context, unit uow.UnitOfWork) error {
		confirmed = make([]rental.Reservation, 0, len(g.Quotes))
		for _, q := range g.Quotes {
			if q.Company != g.Company {
				return fmt.Errorf("%w: quote for %s in group %s", uow.ErrOutOfScope, q.Company, g.Company)
			}
			res, err := c.Engine.ConfirmQuote(ctx, unit, q)
			if err != nil {
				return err
			}
			confirmed = append(confirmed, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// Cancel removes one reservation in its own company unit of work.
func (c *Coordinator) Cancel(ctx context.Context, res rental.Reservation) error {
	return c.Runner.InCompany(ctx, res.Company(), func(ctx context.Context, unit uow.UnitOfWork) error {
		return c.Engine.CancelReservation(ctx, unit, res)
	})
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type groupStep struct {
	group       Group
	coordinator *Coordinator
}

func (s groupStep) Name() string { return s.group.Company }

func (s groupStep) Execute(ctx context.Context) ([]rental.Reservation, error) {
	return s.coordinator.ConfirmGroup(ctx, s.group)
}

// Compensate cancels each reservation independently so one failure does not
// keep the others in place.
func (s groupStep) Compensate(ctx context.Context, reservations []rental.Reservation) []error {
	var errs []error
	for _, res := range reservations {
		if err := s.coordinator.Cancel(ctx, res); err != nil {
			s.coordinator.logger().Error("reservation compensation failed", "company", res.Company(), "reservation_id", res.ID, "error", err)
			errs = append(errs, fmt.Errorf("cancel reservation %s at %s: %w", res.ID, res.Company(), err))
		}
	}
	return errs
}
