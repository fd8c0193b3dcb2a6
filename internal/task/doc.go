// Package task is the bounded-concurrency execution engine shared by every
// pipeline stage. It provides a FIFO concurrency limiter, a retry executor
// with linear backoff, an idempotent cache short-circuit and a batch runner
// that isolates per-item failures and panics.
//
// The pieces compose over Operation, a plain context-aware function:
//
//	op := task.WithCache(lookup,
//		task.WithLimit(limiter,
//			task.WithRetry(policy, logger, fetch)))
//	value, err := op(ctx)
package task
