// Package logger configures structured logging for stylebatch.
//
// It uses the standard library log/slog package with a JSON handler, an
// optional tee into the run's log file, and helpers that carry a
// request-scoped logger (item id, stage, style) through a context.
package logger
