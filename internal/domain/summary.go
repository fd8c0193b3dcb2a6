package domain

import "time"

// Breakdown holds counts and averages for one group (category or style).
type Breakdown struct {
	Count            int     `json:"count"`
	Succeeded        int     `json:"succeeded"`
	SuccessRate      float64 `json:"success_rate"`
	AvgMarketability float64 `json:"avg_marketability"`
	AvgCompatibility float64 `json:"avg_compatibility"`
}

// Performer is one entry of the ranked top performers list.
type Performer struct {
	ItemID        string  `json:"item_id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Brand         string  `json:"brand"`
	Successes     int     `json:"successes"`
	Attempts      int     `json:"attempts"`
	MeanScore     float64 `json:"mean_score"`
	submissionIdx int
}

// SubmissionIndex returns the record's position in the submitted batch.
func (p Performer) SubmissionIndex() int { return p.submissionIdx }

// WithSubmissionIndex returns a copy of p carrying idx as its tie-breaker.
func (p Performer) WithSubmissionIndex(idx int) Performer {
	p.submissionIdx = idx
	return p
}

// Totals holds the aggregate counts of a batch. Items counts records;
// Attempts, Succeeded and Failed count per-style transform results.
type Totals struct {
	Items        int     `json:"items"`
	ItemsFailed  int     `json:"items_failed"`
	ItemsPartial int     `json:"items_partial"`
	Attempts     int     `json:"attempts"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	SuccessRate  float64 `json:"success_rate"`
}

// BatchSummary is the machine-readable summary of one batch run. It is built
// once after the batch completes and never mutated after it is written.
type BatchSummary struct {
	RunID         string               `json:"run_id"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Totals        Totals               `json:"totals"`
	ByCategory    map[string]Breakdown `json:"by_category"`
	ByStyle       map[string]Breakdown `json:"by_style"`
	TopPerformers []Performer          `json:"top_performers"`
}
