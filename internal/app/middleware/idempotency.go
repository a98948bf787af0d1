package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carrental/internal/app/commands"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

// KeyLocker is implemented by stores that can hold a key while its command
// runs, so an overlapping duplicate waits and then replays the outcome.
type KeyLocker interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	// ErrReplayedFailure wraps the recorded error of an already processed command.
	ErrReplayedFailure  = errors.New("middleware: command already failed")
	ErrCommandInFlight  = errors.New("middleware: command with this key is still running")
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
)

// lockPoll is how often a duplicate retries the key lock while waiting.
const lockPoll = 20 * time.Millisecond

// Idempotency replays the stored outcome of a command seen before. Failures
// are only stored when final reports true; others are left to be retried.
// A nil final stores every failure. When the store is also a KeyLocker the
// key is held from lookup to save.
func Idempotency(store IdempotencyStore, codec ResultCodec, final func(error) bool) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	if final == nil {
		final = func(error) bool { return true }
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()

			if locker, ok := store.(KeyLocker); ok {
				release, err := hold(ctx, locker, key)
				if err != nil {
					return nil, err
				}
				defer release()
			}

			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("idempotency lookup %s: %w", key, err)
			}
			if found {
				return replay(rec, idCmd.ResultPrototype(), codec)
			}

			result, err := next.Dispatch(ctx, cmd)
			if err != nil && !final(err) {
				return nil, err
			}
			if recErr := remember(ctx, store, codec, key, result, err); recErr != nil {
				return nil, errors.Join(err, recErr)
			}
			if err != nil {
				return nil, err
			}
			return result, nil
		})
	}
}

// hold waits until key is free and takes it. The returned func releases it.
func hold(ctx context.Context, locker KeyLocker, key string) (func(), error) {
	ticker := time.NewTicker(lockPoll)
	defer ticker.Stop()
	for {
		ok, err := locker.TryLock(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency lock %s: %w", key, err)
		}
		if ok {
			return func() { _ = locker.Unlock(context.WithoutCancel(ctx), key) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrCommandInFlight, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func replay(rec IdempotencyRecord, proto any, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrReplayedFailure, rec.Error)
	}
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return proto, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, fmt.Errorf("idempotency decode %s: %w", rec.Key, err)
	}
	return proto, nil
}

// remember stores either the encoded result or the failure text of cause.
func remember(ctx context.Context, store IdempotencyStore, codec ResultCodec, key string, result any, cause error) error {
	rec := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	switch {
	case cause != nil:
		rec.Error = cause.Error()
	case result != nil:
		payload, err := codec.Encode(result)
		if err != nil {
			return err
		}
		rec.Payload = payload
	}
	return store.Save(ctx, rec)
}
