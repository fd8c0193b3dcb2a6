package postgres

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stylebatch/internal/platform/logger"
)

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(migrationsFS, migrationsDir+"/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, f := range files {
		data, err := fs.ReadFile(migrationsFS, f)
		require.NoError(t, err)
		body := string(data)
		assert.True(t, strings.HasPrefix(body, "-- +goose Up"), f)
		assert.Contains(t, body, "-- +goose Down", f)
	}
}

func TestMigrate_RejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	db, _ := newMockDB(t)
	err := Migrate(context.Background(), db, logger.Discard(), "drop-everything")
	assert.ErrorContains(t, err, "unsupported migration command")
}

func TestSlogGooseLogger(t *testing.T) {
	t.Parallel()

	log, buf := logger.NewBufferLogger()
	l := &slogGooseLogger{logger: log}
	l.Printf("applied %d migrations", 2)
	l.Fatalf("failed: %s", "boom")

	assert.Contains(t, buf.Messages("INFO"), "applied 2 migrations")
	assert.Contains(t, buf.Messages("ERROR"), "failed: boom")
}
