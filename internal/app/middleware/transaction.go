package middleware

import (
	"context"

	"carrental/internal/app/commands"
	"carrental/internal/app/uow"
)

// Transaction runs company scoped commands inside a unit of work of that
// company, retrying on conflicts. Other commands pass through untouched.
func Transaction(runner uow.Runner) CommandMiddleware {
	if runner.Factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(uow.CompanyScoped)
			if !ok {
				return next.Dispatch(ctx, cmd)
			}
			var res any
			err := runner.InCompany(ctx, scoped.CompanyScope(), func(ctx context.Context, _ uow.UnitOfWork) error {
				var err error
				res, err = next.Dispatch(ctx, cmd)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
