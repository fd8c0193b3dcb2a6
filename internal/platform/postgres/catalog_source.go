package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/stylebatch/internal/catalog"
	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/store"
)

const catalogColumns = `id, name, category, brand, image_url, status, metadata, updated_at`

// CatalogSource reads catalog records from the catalog_records table.
// Rows without an image URL or not marked available never leave the query.
type CatalogSource struct {
	db store.DBTX
}

var (
	_ catalog.Source = (*CatalogSource)(nil)
	_ catalog.Pinger = (*CatalogSource)(nil)
)

// NewCatalogSource creates a CatalogSource.
func NewCatalogSource(db store.DBTX) *CatalogSource {
	return &CatalogSource{db: db}
}

// Ping checks the connection when the underlying handle supports it.
func (s *CatalogSource) Ping(ctx context.Context) error {
	if p, ok := s.db.(interface{ PingContext(context.Context) error }); ok {
		return p.PingContext(ctx)
	}
	return nil
}

// Fetch implements catalog.Source.
func (s *CatalogSource) Fetch(ctx context.Context, f catalog.Filter) ([]domain.Record, error) {
	log := logger.FromContext(ctx)

	query, args := buildCatalogQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query catalog", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query catalog: %w", MapError(err))
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}

	log.Info("catalog fetched", slog.Int("records", len(records)))
	return records, nil
}

// Categories returns the distinct categories of processable records.
func (s *CatalogSource) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category
		FROM catalog_records
		WHERE category <> '' AND status = $1
		ORDER BY category`, domain.RecordStatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", MapError(err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// buildCatalogQuery renders the select for f with positional parameters.
func buildCatalogQuery(f catalog.Filter) (string, []any) {
	var (
		where = []string{
			"image_url IS NOT NULL",
			"image_url <> ''",
			"status = $1",
		}
		args = []any{domain.RecordStatusAvailable}
	)
	param := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		where = append(where, "category = "+param(f.Category))
	}
	if f.Brand != "" {
		where = append(where, "brand = "+param(f.Brand))
	}
	if !f.Since.IsZero() {
		where = append(where, "updated_at >= "+param(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "updated_at <= "+param(f.Until))
	}
	if len(f.IDs) > 0 {
		ph := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			ph[i] = param(id)
		}
		where = append(where, "id IN ("+strings.Join(ph, ", ")+")")
	}

	var b strings.Builder
	b.WriteString("SELECT " + catalogColumns + " FROM catalog_records WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ORDER BY updated_at DESC, id")
	if limit := f.EffectiveLimit(); limit > 0 {
		b.WriteString(" LIMIT " + param(limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + param(f.Offset))
	}
	return b.String(), args
}

func scanRecord(rows *sql.Rows) (domain.Record, error) {
	var (
		r         domain.Record
		imageURL  sql.NullString
		metadata  []byte
		updatedAt time.Time
	)
	if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Brand, &imageURL, &r.Status, &metadata, &updatedAt); err != nil {
		return domain.Record{}, fmt.Errorf("failed to scan catalog row: %w", err)
	}
	r.ImageURL = imageURL.String
	r.UpdatedAt = updatedAt.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return domain.Record{}, fmt.Errorf("invalid metadata for record %s: %w", r.ID, err)
		}
	}
	return r, nil
}
