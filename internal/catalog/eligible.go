package catalog

import (
	"github.com/phrazzld/stylebatch/internal/domain"
)

// Exclusion records why a record was kept out of the batch.
type Exclusion struct {
	Record domain.Record `json:"record"`
	Reason string        `json:"reason"`
}

// Eligible splits records into those that may enter the download stage and
// those excluded upstream. Excluded records never produce stage results.
// Duplicate ids after the first are excluded as well.
func Eligible(records []domain.Record) (eligible []domain.Record, excluded []Exclusion) {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			excluded = append(excluded, Exclusion{Record: r, Reason: err.Error()})
			continue
		}
		if err := r.Eligible(); err != nil {
			excluded = append(excluded, Exclusion{Record: r, Reason: err.Error()})
			continue
		}
		if _, dup := seen[r.ID]; dup {
			excluded = append(excluded, Exclusion{Record: r, Reason: "duplicate record id"})
			continue
		}
		seen[r.ID] = struct{}{}
		eligible = append(eligible, r)
	}
	return eligible, excluded
}

// Stats counts records per category and brand.
type Stats struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	ByBrand    map[string]int `json:"by_brand"`
}

// Summarize computes Stats over records.
func Summarize(records []domain.Record) Stats {
	s := Stats{
		Total:      len(records),
		ByCategory: make(map[string]int),
		ByBrand:    make(map[string]int),
	}
	for _, r := range records {
		s.ByCategory[r.Category]++
		if r.Brand != "" {
			s.ByBrand[r.Brand]++
		}
	}
	return s
}
