// Package dispatch runs queued batch confirmations, either in-process or
// through Kafka.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carrental/internal/app/commands"
	"carrental/internal/app/dto"
	"carrental/internal/app/handlers/reservations"
	"carrental/internal/app/middleware"
	"carrental/internal/app/policies"
)

var (
	ErrMalformedTask = errors.New("dispatch: malformed confirmation task")
	ErrTaskInFlight  = errors.New("dispatch: task already running")
	ErrPoolClosed    = errors.New("dispatch: pool closed")
)

// TaskExecutor runs one confirmation task to completion.
type TaskExecutor interface {
	Execute(ctx context.Context, task policies.ConfirmTask) error
}

// Locker keeps two deliveries of one task from running at the same time.
type Locker interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Executor sends a task through the command bus as a batch confirmation.
// A batch that failed is a finished task: the renter has been notified, so
// only infrastructure errors are returned.
type Executor struct {
	Commands commands.Bus
	Locker   Locker
	Timeout  time.Duration
	Logger   *slog.Logger
}

func (e *Executor) Execute(ctx context.Context, task policies.ConfirmTask) error {
	if task.TaskID == "" {
		return fmt.Errorf("%w: task id missing", ErrMalformedTask)
	}
	quotes, err := dto.QuotesToDomain(task.Quotes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	if e.Locker != nil {
		ok, err := e.Locker.TryLock(ctx, task.TaskID)
		if err != nil {
			return fmt.Errorf("lock task %s: %w", task.TaskID, err)
		}
		if !ok {
			return ErrTaskInFlight
		}
		defer func() {
			if err := e.Locker.Unlock(context.WithoutCancel(ctx), task.TaskID); err != nil {
				e.logger().Warn("task unlock failed", "task_id", task.TaskID, "error", err)
			}
		}()
	}

	cmd := reservations.ConfirmQuotesCommand{TaskID: task.TaskID, Renter: task.Renter, Quotes: quotes}
	res, err := commands.Dispatch[reservations.ConfirmQuotesCommand, *reservations.ConfirmQuotesResult](ctx, e.Commands, cmd)
	switch {
	case err == nil:
		n := 0
		if res != nil {
			n = len(res.Reservations)
		}
		e.logger().Info("confirmation task done", "task_id", task.TaskID, "reservations", n)
		return nil
	case errors.Is(err, middleware.ErrReplayedFailure):
		e.logger().Info("confirmation task already failed", "task_id", task.TaskID)
		return nil
	case reservations.IsFinal(err):
		e.logger().Info("confirmation task failed", "task_id", task.TaskID, "error", err)
		return nil
	default:
		return err
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Inline runs the task on the caller's goroutine.
type Inline struct {
	Executor TaskExecutor
}

func (d Inline) Dispatch(ctx context.Context, task policies.ConfirmTask) error {
	err := d.Executor.Execute(ctx, task)
	if errors.Is(err, ErrTaskInFlight) {
		return nil
	}
	return err
}

var (
	_ TaskExecutor            = (*Executor)(nil)
	_ policies.TaskDispatcher = Inline{}
)
