package saga

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run executes steps one after another. The first failing step stops the saga
// and every completed step is compensated in reverse order.
func Run[T any](ctx context.Context, steps []Step[T]) Outcome[T] {
	done := make([]T, 0, len(steps))
	for _, step := range steps {
		res, err := step.Execute(ctx)
		if err != nil {
			out := Outcome[T]{FailedStep: step.Name(), Err: err}
			for i := len(done) - 1; i >= 0; i-- {
				out.CompensationErrors = append(out.CompensationErrors, steps[i].Compensate(context.WithoutCancel(ctx), done[i])...)
				out.Compensated++
			}
			return out
		}
		done = append(done, res)
	}
	return Outcome[T]{Results: done}
}

// RunParallel executes all steps concurrently. Steps do not cancel each other;
// when any fails, the failure of the earliest step in slice order is reported
// and every step that succeeded is compensated.
func RunParallel[T any](ctx context.Context, steps []Step[T]) Outcome[T] {
	results := make([]T, len(steps))
	errs := make([]error, len(steps))
	var g errgroup.Group
	for i, step := range steps {
		g.Go(func() error {
			results[i], errs[i] = step.Execute(ctx)
			return nil
		})
	}
	_ = g.Wait()

	failed := -1
	for i, err := range errs {
		if err != nil {
			failed = i
			break
		}
	}
	if failed < 0 {
		return Outcome[T]{Results: results}
	}
	out := Outcome[T]{FailedStep: steps[failed].Name(), Err: errs[failed]}
	for i := len(steps) - 1; i >= 0; i-- {
		if errs[i] != nil {
			continue
		}
		out.CompensationErrors = append(out.CompensationErrors, steps[i].Compensate(context.WithoutCancel(ctx), results[i])...)
		out.Compensated++
	}
	return out
}
