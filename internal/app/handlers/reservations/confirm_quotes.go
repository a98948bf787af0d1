package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"carrental/internal/app/commands"
	"carrental/internal/app/confirmation"
	"carrental/internal/app/dto"
	"carrental/internal/app/middleware"
	"carrental/internal/app/policies"
	"carrental/internal/domain/rental"
)

const confirmQuotesKey = "reservations.confirm_quotes"

// ConfirmQuotesCommand is the batch entry point. TaskID deduplicates
// repeated deliveries of the same batch.
type ConfirmQuotesCommand struct {
	TaskID string
	Renter string
	Quotes []rental.Quote
}

func (c ConfirmQuotesCommand) Key() string { return confirmQuotesKey }

func (c ConfirmQuotesCommand) IdempotencyKey() string {
	if c.TaskID == "" {
		return ""
	}
	return confirmQuotesKey + ":" + c.TaskID
}

func (c ConfirmQuotesCommand) ResultPrototype() any { return &ConfirmQuotesResult{} }

type ConfirmQuotesResult struct {
	TaskID       string            `json:"task_id"`
	Reservations []dto.Reservation `json:"reservations"`
	ReceiptURL   string            `json:"receipt_url,omitempty"`
}

// ConfirmQuotesHandler confirms a batch and sends the renter exactly one
// notification describing the outcome.
type ConfirmQuotesHandler struct {
	Coordinator *confirmation.Coordinator
	Notifier    policies.NotificationSink
	Receipts    policies.ReceiptArchive
	Clock       func() time.Time
	Logger      *slog.Logger
}

func (h *ConfirmQuotesHandler) Handle(ctx context.Context, cmd ConfirmQuotesCommand) (*ConfirmQuotesResult, error) {
	if err := validateBatch(cmd); err != nil {
		h.notify(ctx, cmd.Renter, FailureMessage(len(cmd.Quotes), err.Error()))
		return nil, err
	}
	if cmd.TaskID == "" {
		cmd.TaskID = uuid.NewString()
	}
	confirmed, err := h.Coordinator.ConfirmAll(ctx, cmd.Quotes)
	if err != nil {
		h.notify(ctx, cmd.Renter, FailureMessage(len(cmd.Quotes), failureDetail(err)))
		return nil, err
	}
	h.notify(ctx, cmd.Renter, SuccessMessage(len(cmd.Quotes)))

	result := &ConfirmQuotesResult{
		TaskID:       cmd.TaskID,
		Reservations: dto.ReservationsFromDomain(confirmed),
	}
	if h.Receipts != nil && len(confirmed) > 0 {
		url, err := h.Receipts.Archive(ctx, policies.Receipt{
			TaskID:       cmd.TaskID,
			Renter:       cmd.Renter,
			Reservations: result.Reservations,
			IssuedAt:     h.now(),
		})
		if err != nil {
			h.logger().Warn("receipt archive failed", "task_id", cmd.TaskID, "renter", cmd.Renter, "error", err)
		} else {
			result.ReceiptURL = url
		}
	}
	return result, nil
}

func SuccessMessage(n int) string {
	return fmt.Sprintf("%d quote(s) successfully confirmed", n)
}

func FailureMessage(n int, detail string) string {
	return fmt.Sprintf("Could not confirm all %d quote(s). %s", n, detail)
}

// IsFinal reports failures that replaying the same batch cannot fix.
func IsFinal(err error) bool {
	return errors.Is(err, rental.ErrBatchConfirmationFailed) ||
		errors.Is(err, rental.ErrInvalidQuote) ||
		errors.Is(err, rental.ErrInvalidInterval)
}

func validateBatch(cmd ConfirmQuotesCommand) error {
	if strings.TrimSpace(cmd.Renter) == "" {
		return fmt.Errorf("%w: renter is required", rental.ErrInvalidQuote)
	}
	for i, q := range cmd.Quotes {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("quote %d: %w", i, err)
		}
		if q.Renter != cmd.Renter {
			return fmt.Errorf("%w: quote %d belongs to another renter", rental.ErrInvalidQuote, i)
		}
	}
	return nil
}

func failureDetail(err error) string {
	if be, ok := rental.AsBatchError(err); ok {
		return be.Detail()
	}
	return err.Error()
}

func (h *ConfirmQuotesHandler) notify(ctx context.Context, renter, message string) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.Notify(ctx, renter, message); err != nil {
		h.logger().Error("renter notification failed", "renter", renter, "message", message, "error", err)
	}
}

func (h *ConfirmQuotesHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

func (h *ConfirmQuotesHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var (
	_ commands.Handler[ConfirmQuotesCommand, *ConfirmQuotesResult] = (*ConfirmQuotesHandler)(nil)
	_ middleware.IdempotentCommand                                 = ConfirmQuotesCommand{}
)
