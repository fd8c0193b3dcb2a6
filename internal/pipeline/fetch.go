package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/phrazzld/stylebatch/internal/catalog"
	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/events"
	"github.com/phrazzld/stylebatch/internal/redact"
	"github.com/phrazzld/stylebatch/internal/report"
	"github.com/phrazzld/stylebatch/internal/storage"
)

// FetchOptions narrows a fetch.
type FetchOptions struct {
	Filter catalog.Filter
}

// FetchResult is the outcome of the fetch stage.
type FetchResult struct {
	RunID string

	// Records are the eligible records in source order; Downloads holds
	// their final download results in the same order.
	Records   []domain.Record
	Downloads []domain.StageResult

	Report       report.FetchReport
	ReportPath   string
	SnapshotPath string
}

// Failed returns the number of records whose original could not be fetched.
func (r *FetchResult) Failed() int { return r.Report.Totals.Failed }

// Fetch queries the source, snapshots the eligible records and downloads
// their originals. Failed downloads get one more pass before the fetch
// report is written.
func (p *Pipeline) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	var res *FetchResult
	_, err := p.track(ctx, CommandFetch, func(ctx context.Context, runID string) (domain.RunCounts, error) {
		var err error
		res, err = p.fetch(ctx, runID, opts)
		return fetchCounts(res), err
	})
	return res, err
}

func (p *Pipeline) fetch(ctx context.Context, runID string, opts FetchOptions) (*FetchResult, error) {
	if p.deps.Source == nil {
		return nil, errors.New("no catalog source configured")
	}
	log := p.logger.With("run_id", runID, "stage", domain.StageDownload)

	if pinger, ok := p.deps.Source.(catalog.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return nil, fmt.Errorf("catalog source unreachable: %w", err)
		}
	}

	records, err := p.deps.Source.Fetch(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	eligible, excluded := catalog.Eligible(records)
	for _, ex := range excluded {
		log.InfoContext(ctx, "record excluded", "item_id", ex.Record.ID, "reason", ex.Reason)
	}
	stats := catalog.Summarize(eligible)
	log.InfoContext(ctx, "catalog fetched",
		"records", len(records),
		"eligible", len(eligible),
		"excluded", len(excluded),
		"by_category", stats.ByCategory,
		"by_brand", stats.ByBrand)

	snapshotPath, err := p.snapshot.Save(eligible, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	res := &FetchResult{RunID: runID, Records: eligible, SnapshotPath: snapshotPath}
	var recovered int
	res.Downloads, recovered = p.download(ctx, log, runID, eligible)

	res.Report = report.NewFetchReport(runID, records, excluded, res.Downloads, recovered)
	if usage, err := p.deps.Store.Usage(storage.AreaRaw, storage.ImageExtensions...); err != nil {
		log.WarnContext(ctx, "failed to measure storage usage", "error", redact.Error(err))
	} else {
		res.Report.Storage = usage
	}

	res.ReportPath, err = p.deps.Reports.WriteFetch(context.WithoutCancel(ctx), res.Report)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("fetch interrupted: %w", err)
	}
	return res, nil
}

// download runs the download stage and one re-run pass over its failures.
// Results are returned in the order of records together with the number of
// records the re-run recovered. A progress event is emitted once per record,
// as soon as its final result is known.
func (p *Pipeline) download(ctx context.Context, log *slog.Logger, runID string, records []domain.Record) ([]domain.StageResult, int) {
	names := make(map[string]string, len(records))
	for _, r := range records {
		names[r.ID] = r.Name
	}
	var done atomic.Int64
	settle := func(res domain.StageResult) {
		p.emitDownloaded(ctx, runID, res, names[res.ItemID], int(done.Add(1)), len(records))
	}

	byID := make(map[string]domain.StageResult, len(records))
	first := p.deps.Downloader.DownloadAll(ctx, records, func(res domain.StageResult) {
		if res.Succeeded {
			settle(res)
		}
	})
	for _, res := range first {
		byID[res.ItemID] = res
	}

	var failed []domain.Record
	for _, r := range records {
		if !byID[r.ID].Succeeded {
			failed = append(failed, r)
		}
	}

	var recovered int
	if len(failed) > 0 && ctx.Err() == nil {
		log.InfoContext(ctx, "re-running failed downloads", "items", len(failed))
		for _, res := range p.deps.Downloader.DownloadAll(ctx, failed, settle) {
			if res.Succeeded {
				recovered++
			}
			res.Attempts += byID[res.ItemID].Attempts
			byID[res.ItemID] = res
		}
		log.InfoContext(ctx, "re-run finished", "recovered", recovered, "still_failed", len(failed)-recovered)
	} else {
		for _, r := range failed {
			settle(byID[r.ID])
		}
	}

	ordered := make([]domain.StageResult, len(records))
	for i, r := range records {
		ordered[i] = byID[r.ID]
	}
	return ordered, recovered
}

func (p *Pipeline) emitDownloaded(ctx context.Context, runID string, res domain.StageResult, name string, done, total int) {
	event := events.NewItemEvent(events.ItemDownloaded, runID, res.ItemID, name, done, total)
	event.Succeeded = res.Succeeded
	event.Error = res.Error
	p.emit(ctx, event)
}

func fetchCounts(res *FetchResult) domain.RunCounts {
	if res == nil {
		return domain.RunCounts{}
	}
	t := res.Report.Totals
	return domain.RunCounts{
		Items:     t.Eligible,
		Attempts:  len(res.Downloads),
		Succeeded: t.Downloaded + t.Cached,
		Failed:    t.Failed,
	}
}
