package task

import (
	"context"
)

// Operation is a unit of work that produces a value of type T.
type Operation[T any] func(ctx context.Context) (T, error)

// Lookup looks for an already-produced value. It reports hit=false when the
// expensive operation must run.
type Lookup[T any] func(ctx context.Context) (value T, hit bool, err error)

// WithCache short-circuits op when lookup reports a hit. A lookup error is
// returned without running op.
func WithCache[T any](lookup Lookup[T], op Operation[T]) Operation[T] {
	return func(ctx context.Context) (T, error) {
		v, hit, err := lookup(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if hit {
			return v, nil
		}
		return op(ctx)
	}
}

// WithLimit runs op while holding a token from l.
func WithLimit[T any](l *Limiter, op Operation[T]) Operation[T] {
	return func(ctx context.Context) (T, error) {
		tok, err := l.Acquire(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		defer tok.Release()
		return op(ctx)
	}
}
