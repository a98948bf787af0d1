package reservations

import (
	"context"

	"carrental/internal/app/commands"
	"carrental/internal/app/confirmation"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
)

const cancelReservationKey = "reservations.cancel"

type CancelReservationCommand struct {
	Company       string
	ReservationID string
}

func (c CancelReservationCommand) Key() string { return cancelReservationKey }

func (c CancelReservationCommand) CompanyScope() string { return c.Company }

type CancelReservationResult struct {
	ReservationID string `json:"reservation_id"`
}

// CancelReservationHandler expects the unit of work opened by the transaction middleware.
type CancelReservationHandler struct {
	Engine *confirmation.ReservationEngine
}

func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) (*CancelReservationResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	res, err := h.Engine.FindReservation(ctx, unit, cmd.Company, rental.ReservationID(cmd.ReservationID))
	if err != nil {
		return nil, err
	}
	if err := h.Engine.CancelReservation(ctx, unit, res); err != nil {
		return nil, err
	}
	return &CancelReservationResult{ReservationID: string(res.ID)}, nil
}

var (
	_ commands.Handler[CancelReservationCommand, *CancelReservationResult] = (*CancelReservationHandler)(nil)
	_ uow.CompanyScoped                                                    = CancelReservationCommand{}
)
