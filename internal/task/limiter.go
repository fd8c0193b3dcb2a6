package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of in-flight operations of one class (for
// example all downloads, or all transforms). Waiters are admitted in the
// order they called Acquire.
type Limiter struct {
	name     string
	ceiling  int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewLimiter creates a limiter with a fixed ceiling. A ceiling below 1 is
// raised to 1.
func NewLimiter(name string, ceiling int) *Limiter {
	if ceiling < 1 {
		ceiling = 1
	}
	return &Limiter{
		name:    name,
		ceiling: int64(ceiling),
		sem:     semaphore.NewWeighted(int64(ceiling)),
	}
}

// Token is the permission to run one operation. It must be released exactly
// once; further calls to Release are no-ops.
type Token struct {
	limiter *Limiter
	once    sync.Once
}

// Release returns the token's capacity to its limiter.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.limiter.inFlight.Add(-1)
		t.limiter.sem.Release(1)
	})
}

// Acquire blocks until capacity is available or ctx is done. On
// cancellation no token is held and the context error is returned.
func (l *Limiter) Acquire(ctx context.Context) (*Token, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire %s slot: %w", l.name, err)
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &Token{limiter: l}, nil
}

// Do runs fn while holding a token. The token is released on every exit
// path, including a panic in fn.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	tok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer tok.Release()
	return fn(ctx)
}

// Name returns the limiter's class name.
func (l *Limiter) Name() string { return l.name }

// Ceiling returns the maximum number of concurrent holders.
func (l *Limiter) Ceiling() int { return int(l.ceiling) }

// InFlight returns the number of tokens currently held.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak returns the highest number of tokens ever held at once.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
