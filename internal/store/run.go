package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/stylebatch/internal/domain"
)

// RunStore records pipeline runs in the ledger.
type RunStore interface {
	// Create stores a new run. The run must be pending.
	Create(ctx context.Context, run *domain.Run) error

	// Start moves a pending run to processing.
	Start(ctx context.Context, id uuid.UUID) error

	// Complete moves a processing run to completed with its final counts.
	Complete(ctx context.Context, id uuid.UUID, counts domain.RunCounts) error

	// Fail moves a pending or processing run to failed.
	Fail(ctx context.Context, id uuid.UUID, counts domain.RunCounts, reason string) error

	// Get returns the run with the given id, or ErrRunNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Run, error)

	// ListRecent returns up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.Run, error)
}
