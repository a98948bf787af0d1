package policies

import (
	"context"
	"errors"

	"carrental/internal/app/dto"
)

var ErrQueueFull = errors.New("policies: task queue is full")

// TaskDispatcher hands confirmation tasks to an asynchronous executor.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task ConfirmTask) error
}

// ConfirmTask is the payload of one asynchronous batch confirmation.
// Queues may deliver it more than once; TaskID deduplicates deliveries.
type ConfirmTask struct {
	TaskID string      `json:"task_id"`
	Renter string      `json:"renter"`
	Quotes []dto.Quote `json:"quotes"`
}
