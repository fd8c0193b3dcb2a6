package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// BatchOptions configures RunBatch and FanOut.
type BatchOptions[I, R any] struct {
	// MaxGoroutines caps the number of goroutines started at once. Zero
	// means one goroutine per item; admission is then left to whatever
	// Limiter fn uses.
	MaxGoroutines int

	// OnPanic converts a panic in fn into a result for that item. When nil,
	// the panicking item yields the zero value of R.
	OnPanic func(index int, item I, err error) R
}

type indexed[R any] struct {
	index  int
	result R
}

// RunBatch calls fn for every item concurrently and returns exactly one
// result per item, in completion order. A failing or panicking item never
// stops the others.
func RunBatch[I, R any](ctx context.Context, items []I, opts BatchOptions[I, R], fn func(ctx context.Context, index int, item I) R) []R {
	done := run(ctx, items, opts, fn)
	out := make([]R, len(done))
	for i, d := range done {
		out[i] = d.result
	}
	return out
}

// FanOut is RunBatch applied to the variants of a single item. Results are
// returned in the order of variants.
func FanOut[V, R any](ctx context.Context, variants []V, opts BatchOptions[V, R], fn func(ctx context.Context, index int, variant V) R) []R {
	done := run(ctx, variants, opts, fn)
	sort.Slice(done, func(a, b int) bool { return done[a].index < done[b].index })
	out := make([]R, len(done))
	for i, d := range done {
		out[i] = d.result
	}
	return out
}

func run[I, R any](ctx context.Context, items []I, opts BatchOptions[I, R], fn func(ctx context.Context, index int, item I) R) []indexed[R] {
	if len(items) == 0 {
		return nil
	}

	results := make(chan indexed[R], len(items))
	collected := make(chan []indexed[R], 1)
	go func() {
		out := make([]indexed[R], 0, len(items))
		for r := range results {
			out = append(out, r)
		}
		collected <- out
	}()

	p := pool.New()
	if opts.MaxGoroutines > 0 {
		p = p.WithMaxGoroutines(opts.MaxGoroutines)
	}
	for i, item := range items {
		p.Go(func() {
			var (
				r  R
				pc panics.Catcher
			)
			pc.Try(func() { r = fn(ctx, i, item) })
			if rec := pc.Recovered(); rec != nil {
				var zero R
				r = zero
				if opts.OnPanic != nil {
					r = opts.OnPanic(i, item, fmt.Errorf("panic: %v", rec.Value))
				}
			}
			results <- indexed[R]{index: i, result: r}
		})
	}
	p.Wait()
	close(results)
	return <-collected
}
