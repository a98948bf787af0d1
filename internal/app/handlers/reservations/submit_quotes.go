package reservations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"carrental/internal/app/commands"
	"carrental/internal/app/dto"
	"carrental/internal/app/middleware"
	"carrental/internal/app/policies"
	"carrental/internal/domain/rental"
)

const submitQuotesKey = "reservations.submit_quotes"

// SubmitQuotesCommand queues a batch for asynchronous confirmation.
type SubmitQuotesCommand struct {
	Renter          string
	Quotes          []dto.Quote
	IdempotencyKeyV string
}

func (c SubmitQuotesCommand) Key() string { return submitQuotesKey }

// IdempotencyKey is namespaced so the submission and the confirmation it
// queues under the same task id keep separate records.
func (c SubmitQuotesCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return submitQuotesKey + ":" + c.IdempotencyKeyV
}

func (c SubmitQuotesCommand) ResultPrototype() any { return &SubmitQuotesResult{} }

func (c SubmitQuotesCommand) Validate() error {
	if strings.TrimSpace(c.Renter) == "" {
		return fmt.Errorf("%w: renter is required", rental.ErrInvalidQuote)
	}
	if len(c.Quotes) == 0 {
		return fmt.Errorf("%w: at least one quote is required", rental.ErrInvalidQuote)
	}
	return nil
}

type SubmitQuotesResult struct {
	TaskID string `json:"task_id"`
}

type SubmitQuotesHandler struct {
	Dispatcher policies.TaskDispatcher
	NewID      func() string
}

func (h *SubmitQuotesHandler) Handle(ctx context.Context, cmd SubmitQuotesCommand) (*SubmitQuotesResult, error) {
	if _, err := dto.QuotesToDomain(cmd.Quotes); err != nil {
		return nil, err
	}
	taskID := cmd.IdempotencyKeyV
	if taskID == "" {
		taskID = h.newID()
	}
	task := policies.ConfirmTask{TaskID: taskID, Renter: cmd.Renter, Quotes: cmd.Quotes}
	if err := h.Dispatcher.Dispatch(ctx, task); err != nil {
		return nil, fmt.Errorf("dispatch confirmation task: %w", err)
	}
	return &SubmitQuotesResult{TaskID: taskID}, nil
}

func (h *SubmitQuotesHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var (
	_ commands.Handler[SubmitQuotesCommand, *SubmitQuotesResult] = (*SubmitQuotesHandler)(nil)
	_ middleware.IdempotentCommand                               = SubmitQuotesCommand{}
	_ middleware.Validatable                                     = SubmitQuotesCommand{}
)
