package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/store"
)

var selectStatus = regexp.QuoteMeta("SELECT status FROM runs WHERE id = $1 FOR UPDATE")

func newRunStore(t *testing.T) (*RunStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	s := NewRunStore(db)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestRunStore_Create(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	run, err := domain.NewRun("transform")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID.String(), "transform", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_CreateDuplicate(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	run, err := domain.NewRun("fetch")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO runs").WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	err = s.Create(context.Background(), run)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "run", storeErr.Entity)
	assert.Equal(t, "create", storeErr.Operation)
}

func TestRunStore_CreateInvalid(t *testing.T) {
	t.Parallel()

	s, _ := newRunStore(t)
	assert.ErrorIs(t, s.Create(context.Background(), nil), store.ErrInvalidEntity)
	assert.ErrorIs(t, s.Create(context.Background(), &domain.Run{ID: uuid.New(), Command: "run"}), store.ErrInvalidEntity)
}

func TestRunStore_Start(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(selectStatus).WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("processing", s.now(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Start(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_Complete(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	id := uuid.New()
	counts := domain.RunCounts{Items: 2, Attempts: 4, Succeeded: 3, Failed: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(selectStatus).WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))
	mock.ExpectExec("UPDATE runs").
		WithArgs("completed", 2, 4, 3, 1, nil, s.now(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Complete(context.Background(), id, counts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_FailFromPending(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(selectStatus).WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec("UPDATE runs").
		WithArgs("failed", 0, 0, 0, 0, "config invalid", s.now(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Fail(context.Background(), id, domain.RunCounts{}, "config invalid"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_InvalidTransition(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(selectStatus).WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectRollback()

	err := s.Start(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_TransitionNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(selectStatus).WithArgs(id.String()).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.Complete(context.Background(), id, domain.RunCounts{})
	assert.ErrorIs(t, err, store.ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func runRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "command", "status", "items", "attempts", "succeeded", "failed",
		"error_message", "started_at", "finished_at", "created_at", "updated_at"})
}

func TestRunStore_Get(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	id := uuid.New()
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)

	mock.ExpectQuery("FROM runs WHERE id = ").WithArgs(id.String()).
		WillReturnRows(runRows().AddRow(id.String(), "run", "processing", 0, 0, 0, 0, nil, started, nil, created, started))

	run, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, domain.RunStatusProcessing, run.Status)
	require.NotNil(t, run.StartedAt)
	assert.Equal(t, started, *run.StartedAt)
	assert.Nil(t, run.FinishedAt)
	assert.Empty(t, run.ErrorMessage)
}

func TestRunStore_GetNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	id := uuid.New()
	mock.ExpectQuery("FROM runs WHERE id = ").WithArgs(id.String()).WillReturnRows(runRows())

	_, err := s.Get(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestRunStore_ListRecent(t *testing.T) {
	t.Parallel()

	s, mock := newRunStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT").WithArgs(20).
		WillReturnRows(runRows().
			AddRow(uuid.NewString(), "run", "completed", 2, 6, 5, 1, nil, now, now, now, now).
			AddRow(uuid.NewString(), "fetch", "failed", 0, 0, 0, 0, "source down", now, now, now, now))

	runs, err := s.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 5, runs[0].Counts.Succeeded)
	assert.Equal(t, "source down", runs[1].ErrorMessage)
}
