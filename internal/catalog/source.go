// Package catalog defines where batch work items come from and the rules
// that decide which of them are allowed to enter the pipeline.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/phrazzld/stylebatch/internal/domain"
)

// DefaultLimit is applied when a filter does not set one.
const DefaultLimit = 100

// ErrSnapshotMissing is returned by FileSource when no snapshot was written yet.
var ErrSnapshotMissing = errors.New("catalog snapshot not found")

// Source produces catalog records.
type Source interface {
	Fetch(ctx context.Context, f Filter) ([]domain.Record, error)
}

// Pinger is implemented by sources that can check their connection before
// a run starts.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Filter narrows a fetch. Zero values mean "no constraint", except Limit
// which defaults to DefaultLimit. A negative Limit removes the cap.
type Filter struct {
	Limit    int
	Offset   int
	Category string
	Brand    string
	Since    time.Time
	Until    time.Time
	IDs      []string
}

// EffectiveLimit returns the limit to apply; negative means unlimited.
func (f Filter) EffectiveLimit() int {
	if f.Limit == 0 {
		return DefaultLimit
	}
	return f.Limit
}

// Match reports whether r satisfies every constraint of f other than
// limit and offset.
func (f Filter) Match(r domain.Record) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Brand != "" && r.Brand != f.Brand {
		return false
	}
	if !f.Since.IsZero() && r.UpdatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.UpdatedAt.After(f.Until) {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == r.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply filters records in memory, then applies offset and limit. A negative
// offset counts as zero.
func (f Filter) Apply(records []domain.Record) []domain.Record {
	var matched []domain.Record
	for _, r := range records {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}
	offset := max(f.Offset, 0)
	if offset >= len(matched) {
		return nil
	}
	matched = matched[offset:]
	if limit := f.EffectiveLimit(); limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
