package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/phrazzld/stylebatch/internal/catalog"
	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/storage"
)

// Report file names.
const (
	DefaultPrefix   = "transform"
	FetchReportName = "data-fetch-report.json"
)

// Paths holds the locations of the reports written for a run.
type Paths struct {
	Detailed string `json:"detailed"`
	Summary  string `json:"summary"`
}

// Detail is the per-item companion of a BatchSummary.
type Detail struct {
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Items       int                  `json:"items"`
	Attempts    int                  `json:"attempts"`
	Succeeded   int                  `json:"succeeded"`
	Outcomes    []domain.ItemOutcome `json:"outcomes"`
}

// Writer persists reports into the reports area of a Store.
type Writer struct {
	store  *storage.Store
	prefix string
	logger *slog.Logger
}

// NewWriter creates a Writer. An empty prefix uses DefaultPrefix.
func NewWriter(store *storage.Store, prefix string, logger *slog.Logger) *Writer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, prefix: prefix, logger: logger}
}

// Write stores the detailed report and then the summary. Each file is
// replaced atomically, so a reader sees either the previous or the new
// version, never a partial one.
func (w *Writer) Write(ctx context.Context, summary domain.BatchSummary, outcomes []domain.ItemOutcome) (Paths, error) {
	if err := ctx.Err(); err != nil {
		return Paths{}, err
	}

	ordered := make([]domain.ItemOutcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	detail := Detail{
		RunID:       summary.RunID,
		GeneratedAt: summary.GeneratedAt,
		Items:       summary.Totals.Items,
		Attempts:    summary.Totals.Attempts,
		Succeeded:   summary.Totals.Succeeded,
		Outcomes:    ordered,
	}

	var paths Paths
	var err error
	paths.Detailed, err = w.store.WriteJSON(storage.AreaReports, w.prefix+"-detailed.json", detail)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to write detailed report: %w", err)
	}
	paths.Summary, err = w.store.WriteJSON(storage.AreaReports, w.prefix+"-summary.json", summary)
	if err != nil {
		return paths, fmt.Errorf("failed to write summary report: %w", err)
	}

	w.logger.InfoContext(ctx, "reports written",
		slog.String("run_id", summary.RunID),
		slog.String("detailed", paths.Detailed),
		slog.String("summary", paths.Summary))
	return paths, nil
}

// FailedDownload lists a record whose original could not be fetched.
type FailedDownload struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// FetchTotals are the counts of the download stage.
type FetchTotals struct {
	Records     int     `json:"records"`
	Eligible    int     `json:"eligible"`
	Excluded    int     `json:"excluded"`
	Downloaded  int     `json:"downloaded"`
	Cached      int     `json:"cached"`
	Failed      int     `json:"failed"`
	Recovered   int     `json:"recovered"`
	SuccessRate float64 `json:"success_rate"`
}

// FetchReport describes one run of the fetch stage.
type FetchReport struct {
	RunID           string              `json:"run_id"`
	GeneratedAt     time.Time           `json:"generated_at"`
	Totals          FetchTotals         `json:"totals"`
	Categories      catalog.Stats       `json:"catalog"`
	Exclusions      []catalog.Exclusion `json:"exclusions,omitempty"`
	FailedDownloads []FailedDownload    `json:"failed_downloads"`
	Storage         storage.Usage       `json:"storage"`
}

// NewFetchReport builds a FetchReport from the fetched records, the
// exclusions made before downloading and the final download results.
// recovered counts failures that succeeded on the re-run pass.
func NewFetchReport(runID string, records []domain.Record, excluded []catalog.Exclusion, results []domain.StageResult, recovered int) FetchReport {
	rep := FetchReport{
		RunID:           runID,
		GeneratedAt:     time.Now().UTC(),
		Categories:      catalog.Summarize(records),
		Exclusions:      excluded,
		FailedDownloads: []FailedDownload{},
	}
	rep.Totals.Records = len(records)
	rep.Totals.Excluded = len(excluded)
	rep.Totals.Eligible = len(records) - len(excluded)
	rep.Totals.Recovered = recovered

	byID := make(map[string]domain.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	for _, res := range results {
		switch {
		case res.Succeeded && res.Cached:
			rep.Totals.Cached++
		case res.Succeeded:
			rep.Totals.Downloaded++
		default:
			rep.Totals.Failed++
			r := byID[res.ItemID]
			rep.FailedDownloads = append(rep.FailedDownloads, FailedDownload{
				ItemID:   res.ItemID,
				Name:     r.Name,
				URL:      r.ImageURL,
				Error:    res.Error,
				Attempts: res.Attempts,
			})
		}
	}
	rep.Totals.SuccessRate = ratio(rep.Totals.Downloaded+rep.Totals.Cached, len(results))
	return rep
}

// WriteFetch stores rep as the fetch report.
func (w *Writer) WriteFetch(ctx context.Context, rep FetchReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := w.store.WriteJSON(storage.AreaReports, FetchReportName, rep)
	if err != nil {
		return "", fmt.Errorf("failed to write fetch report: %w", err)
	}
	w.logger.InfoContext(ctx, "fetch report written", slog.String("path", path))
	return path, nil
}
