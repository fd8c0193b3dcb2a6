// Package report aggregates batch outcomes into summaries and writes them
// to the reports area.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/phrazzld/stylebatch/internal/domain"
)

// DefaultTopN is the number of top performers kept when the caller does
// not ask for a specific count.
const DefaultTopN = 10

// Summarize aggregates outcomes into a BatchSummary. Outcomes may be in any
// order; rankings use each outcome's submission Index as the tie-breaker so
// the result does not depend on completion order.
func Summarize(runID string, outcomes []domain.ItemOutcome, topN int) domain.BatchSummary {
	if topN <= 0 {
		topN = DefaultTopN
	}

	summary := domain.BatchSummary{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		ByCategory:  make(map[string]domain.Breakdown),
		ByStyle:     make(map[string]domain.Breakdown),
	}

	byCategory := make(map[string]*accumulator)
	byStyle := make(map[string]*accumulator)
	var performers []domain.Performer

	for i := range outcomes {
		o := &outcomes[i]
		summary.Totals.Items++
		switch {
		case o.Failed():
			summary.Totals.ItemsFailed++
		case o.Partial():
			summary.Totals.ItemsPartial++
		}

		for _, r := range o.Transforms {
			summary.Totals.Attempts++
			if r.Succeeded {
				summary.Totals.Succeeded++
			} else {
				summary.Totals.Failed++
			}
			accumulate(byCategory, o.Record.Category, r)
			accumulate(byStyle, r.Variant, r)
		}

		if len(o.Transforms) > 0 {
			performers = append(performers, performer(o))
		}
	}

	summary.Totals.SuccessRate = ratio(summary.Totals.Succeeded, summary.Totals.Attempts)
	for k, acc := range byCategory {
		summary.ByCategory[k] = acc.breakdown()
	}
	for k, acc := range byStyle {
		summary.ByStyle[k] = acc.breakdown()
	}
	summary.TopPerformers = rank(performers, topN)
	return summary
}

type accumulator struct {
	count, succeeded int
	market, compat   float64
	scored           int
}

func accumulate(groups map[string]*accumulator, key string, r domain.StageResult) {
	acc, ok := groups[key]
	if !ok {
		acc = &accumulator{}
		groups[key] = acc
	}
	acc.count++
	if !r.Succeeded {
		return
	}
	acc.succeeded++
	if r.Scores != nil {
		acc.scored++
		acc.market += r.Scores.Marketability
		acc.compat += r.Scores.Compatibility
	}
}

func (a *accumulator) breakdown() domain.Breakdown {
	b := domain.Breakdown{
		Count:       a.count,
		Succeeded:   a.succeeded,
		SuccessRate: ratio(a.succeeded, a.count),
	}
	if a.scored > 0 {
		b.AvgMarketability = round(a.market / float64(a.scored))
		b.AvgCompatibility = round(a.compat / float64(a.scored))
	}
	return b
}

func performer(o *domain.ItemOutcome) domain.Performer {
	successes := o.Successes()
	return domain.Performer{
		ItemID:    o.Record.ID,
		Name:      o.Record.Name,
		Category:  o.Record.Category,
		Brand:     o.Record.Brand,
		Successes: len(successes),
		Attempts:  len(o.Transforms),
		MeanScore: MeanScore(successes),
	}.WithSubmissionIndex(o.Index)
}

// MeanScore is the mean marketability over successful results, or 0 when
// there are none.
func MeanScore(results []domain.StageResult) float64 {
	var sum float64
	var n int
	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		n++
		if r.Scores != nil {
			sum += r.Scores.Marketability
		}
	}
	if n == 0 {
		return 0
	}
	return round(sum / float64(n))
}

func rank(performers []domain.Performer, topN int) []domain.Performer {
	sort.SliceStable(performers, func(i, j int) bool {
		if performers[i].MeanScore != performers[j].MeanScore {
			return performers[i].MeanScore > performers[j].MeanScore
		}
		return performers[i].SubmissionIndex() < performers[j].SubmissionIndex()
	})
	if len(performers) > topN {
		performers = performers[:topN]
	}
	if performers == nil {
		return []domain.Performer{}
	}
	return performers
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1e4) / 1e4
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
