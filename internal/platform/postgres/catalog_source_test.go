package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stylebatch/internal/catalog"
	"github.com/phrazzld/stylebatch/internal/store"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func catalogRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "category", "brand", "image_url", "status", "metadata", "updated_at"})
}

func TestBuildCatalogQuery(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		q, args := buildCatalogQuery(catalog.Filter{})
		assert.Equal(t,
			"SELECT "+catalogColumns+" FROM catalog_records WHERE image_url IS NOT NULL AND image_url <> '' AND status = $1 ORDER BY updated_at DESC, id LIMIT $2",
			q)
		assert.Equal(t, []any{"available", catalog.DefaultLimit}, args)
	})

	t.Run("all filters", func(t *testing.T) {
		since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		until := since.AddDate(0, 1, 0)
		q, args := buildCatalogQuery(catalog.Filter{
			Limit:    5,
			Offset:   10,
			Category: "chair",
			Brand:    "Acme",
			Since:    since,
			Until:    until,
			IDs:      []string{"a", "b"},
		})
		assert.Contains(t, q, "category = $2 AND brand = $3 AND updated_at >= $4 AND updated_at <= $5 AND id IN ($6, $7)")
		assert.Contains(t, q, "LIMIT $8 OFFSET $9")
		assert.Equal(t, []any{"available", "chair", "Acme", since, until, "a", "b", 5, 10}, args)
	})

	t.Run("unlimited", func(t *testing.T) {
		q, args := buildCatalogQuery(catalog.Filter{Limit: -1})
		assert.NotContains(t, q, "LIMIT")
		assert.Len(t, args, 1)
	})
}

func TestCatalogSource_Fetch(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_records WHERE image_url IS NOT NULL")).
		WithArgs("available", "chair", 2).
		WillReturnRows(catalogRows().
			AddRow("1", "Lounge Chair", "chair", "Acme", "https://img/1.jpg", "available", []byte(`{"price":120}`), updated).
			AddRow("2", "Desk Chair", "chair", "Acme", "https://img/2.jpg", "available", nil, updated))

	records, err := NewCatalogSource(db).Fetch(context.Background(), catalog.Filter{Category: "chair", Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Lounge Chair", records[0].Name)
	assert.Equal(t, "https://img/1.jpg", records[0].ImageURL)
	assert.Equal(t, float64(120), records[0].Metadata["price"])
	assert.Equal(t, updated, records[0].UpdatedAt)
	assert.Nil(t, records[1].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogSource_FetchErrors(t *testing.T) {
	t.Parallel()

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT").WillReturnError(&pgconn.PgError{Code: undefinedTableErrorCode})

		_, err := NewCatalogSource(db).Fetch(context.Background(), catalog.Filter{})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("bad metadata", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT").WillReturnRows(catalogRows().
			AddRow("1", "A", "chair", "", "https://img/1.jpg", "available", []byte(`{`), time.Now()))

		_, err := NewCatalogSource(db).Fetch(context.Background(), catalog.Filter{})
		assert.ErrorContains(t, err, "invalid metadata for record 1")
	})

	t.Run("row error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT").WillReturnRows(catalogRows().
			AddRow("1", "A", "chair", "", "https://img/1.jpg", "available", nil, time.Now()).
			RowError(0, errors.New("connection lost")))

		_, err := NewCatalogSource(db).Fetch(context.Background(), catalog.Filter{})
		assert.ErrorContains(t, err, "connection lost")
	})
}

func TestCatalogSource_Ping(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectPing()
	assert.NoError(t, NewCatalogSource(db).Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("refused"))
	assert.Error(t, NewCatalogSource(db).Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogSource_Categories(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT DISTINCT category").
		WithArgs("available").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("bed").AddRow("chair"))

	cats, err := NewCatalogSource(db).Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bed", "chair"}, cats)
}
