package saga

import "context"

// Step is one forward action of a saga together with its undo. Compensate
// is best-effort and reports every failure instead of stopping at the first.
type Step[T any] interface {
	Name() string
	Execute(ctx context.Context) (T, error)
	Compensate(ctx context.Context, result T) []error
}

// Outcome describes a finished saga. On success Results holds one entry per
// step in step order; on failure it is empty.
type Outcome[T any] struct {
	Results            []T
	FailedStep         string
	Err                error
	Compensated        int
	CompensationErrors []error
}

func (o Outcome[T]) Failed() bool { return o.Err != nil }
