// Package middleware decorates the command and query buses. Middleware listed
// first runs outermost.
package middleware

import (
	"context"
	"slices"

	"carrental/internal/app/commands"
	"carrental/internal/app/queries"
)

// CommandMiddleware decorates a command bus.
type CommandMiddleware func(next commands.Bus) commands.Bus

// QueryMiddleware decorates a query bus.
type QueryMiddleware func(next queries.Bus) queries.Bus

func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	return decorate(base, mws)
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	return decorate(base, mws)
}

// decorate applies mws from the innermost one outwards.
func decorate[B any, M ~func(B) B](base B, mws []M) B {
	for _, mw := range slices.Backward(mws) {
		base = mw(base)
	}
	return base
}

// commandFunc and queryFunc let a closure stand in for a bus.
type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

type queryFunc func(ctx context.Context, query queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, query queries.Query) (any, error) {
	return f(ctx, query)
}
