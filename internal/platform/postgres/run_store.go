package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/store"
)

const runColumns = `id, command, status, items, attempts, succeeded, failed, error_message, started_at, finished_at, created_at, updated_at`

// RunStore implements store.RunStore on the runs table. Status changes
// read and update the row inside one transaction so concurrent writers
// cannot skip a state.
type RunStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.RunStore = (*RunStore)(nil)

// NewRunStore creates a RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create implements store.RunStore.
func (s *RunStore) Create(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == uuid.Nil || run.Command == "" {
		return fmt.Errorf("%w: run requires an id and a command", store.ErrInvalidEntity)
	}
	if run.Status != domain.RunStatusPending {
		return fmt.Errorf("%w: new run must be pending, got %s", store.ErrInvalidEntity, run.Status)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Command, run.Status, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		logger.FromContext(ctx).Error("failed to create run",
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("run", "create", "insert failed", MapError(err))
	}
	return nil
}

// Start implements store.RunStore.
func (s *RunStore) Start(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.RunStatusProcessing, nil, "")
}

// Complete implements store.RunStore.
func (s *RunStore) Complete(ctx context.Context, id uuid.UUID, counts domain.RunCounts) error {
	return s.transition(ctx, id, domain.RunStatusCompleted, &counts, "")
}

// Fail implements store.RunStore.
func (s *RunStore) Fail(ctx context.Context, id uuid.UUID, counts domain.RunCounts, reason string) error {
	return s.transition(ctx, id, domain.RunStatusFailed, &counts, reason)
}

func (s *RunStore) transition(ctx context.Context, id uuid.UUID, next domain.RunStatus, counts *domain.RunCounts, reason string) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var current domain.RunStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrRunNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load run status: %w", MapError(err))
		}
		if !current.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, next)
		}

		now := s.now()
		var result sql.Result
		switch {
		case next == domain.RunStatusProcessing:
			result, err = tx.ExecContext(ctx, `
				UPDATE runs SET status = $1, started_at = $2, updated_at = $2
				WHERE id = $3`,
				next, now, id)
		default:
			result, err = tx.ExecContext(ctx, `
				UPDATE runs
				SET status = $1, items = $2, attempts = $3, succeeded = $4, failed = $5,
				    error_message = $6, finished_at = $7, updated_at = $7
				WHERE id = $8`,
				next, counts.Items, counts.Attempts, counts.Succeeded, counts.Failed,
				nullString(reason), now, id)
		}
		if err != nil {
			return fmt.Errorf("failed to update run: %w", MapError(err))
		}
		return CheckRowsAffected(result, store.ErrRunNotFound)
	})
}

// Get implements store.RunStore.
func (s *RunStore) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", MapError(err))
	}
	return run, nil
}

// ListRecent implements store.RunStore.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", MapError(err))
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var (
		run        domain.Run
		errMsg     sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := row.Scan(&run.ID, &run.Command, &run.Status,
		&run.Counts.Items, &run.Counts.Attempts, &run.Counts.Succeeded, &run.Counts.Failed,
		&errMsg, &startedAt, &finishedAt, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	run.ErrorMessage = errMsg.String
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
