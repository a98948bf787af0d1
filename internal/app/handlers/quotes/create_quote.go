package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carrental/internal/app/commands"
	"carrental/internal/app/confirmation"
	"carrental/internal/app/dto"
	"carrental/internal/app/middleware"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
)

const createQuoteKey = "quotes.create"

type CreateQuoteCommand struct {
	Renter  string
	Company string
	CarType string
	Start   time.Time
	End     time.Time
}

func (c CreateQuoteCommand) Key() string { return createQuoteKey }

func (c CreateQuoteCommand) Validate() error {
	switch {
	case strings.TrimSpace(c.Renter) == "":
		return fmt.Errorf("%w: renter is required", rental.ErrInvalidQuote)
	case strings.TrimSpace(c.Company) == "":
		return fmt.Errorf("%w: company is required", rental.ErrInvalidQuote)
	case strings.TrimSpace(c.CarType) == "":
		return fmt.Errorf("%w: car type is required", rental.ErrInvalidQuote)
	}
	return nil
}

// CreateQuoteHandler prices a request in a read-only unit; nothing is reserved.
type CreateQuoteHandler struct {
	Runner uow.Runner
	Engine confirmation.QuoteEngine
}

func (h *CreateQuoteHandler) Handle(ctx context.Context, cmd CreateQuoteCommand) (dto.Quote, error) {
	var quote rental.Quote
	err := h.Runner.ReadCompany(ctx, cmd.Company, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		quote, err = h.Engine.CreateQuote(ctx, unit.Rentals(), cmd.Company, cmd.Renter, rental.ReservationConstraints{
			CarType: cmd.CarType,
			Start:   cmd.Start,
			End:     cmd.End,
		})
		return err
	})
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.QuoteFromDomain(quote), nil
}

var (
	_ commands.Handler[CreateQuoteCommand, dto.Quote] = (*CreateQuoteHandler)(nil)
	_ middleware.Validatable                          = CreateQuoteCommand{}
)
