package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"

	"github.com/phrazzld/stylebatch/internal/catalog"
	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/events"
	"github.com/phrazzld/stylebatch/internal/generation"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/redact"
	"github.com/phrazzld/stylebatch/internal/report"
	"github.com/phrazzld/stylebatch/internal/task"
)

// TransformOptions selects the records and styles of a transform.
type TransformOptions struct {
	// IDs restricts the batch to these records. Empty means every record
	// of the snapshot.
	IDs []string

	// Limit caps the number of records. Zero means no cap.
	Limit int

	// Styles overrides the configured styles.
	Styles []string
}

// TransformResult is the outcome of a transform batch.
type TransformResult struct {
	RunID    string
	Summary  domain.BatchSummary
	Outcomes []domain.ItemOutcome
	Reports  report.Paths
}

// Failed returns the number of failed transform results. One failed style
// counts even when the item kept other variants.
func (r *TransformResult) Failed() int { return r.Summary.Totals.Failed }

// workItem is one record entering the transform stage with its original.
type workItem struct {
	record   domain.Record
	download *domain.StageResult
	source   string
}

// Transform produces style variants and guides for the records of the last
// fetch snapshot.
func (p *Pipeline) Transform(ctx context.Context, opts TransformOptions) (*TransformResult, error) {
	var res *TransformResult
	_, err := p.track(ctx, CommandTransform, func(ctx context.Context, runID string) (domain.RunCounts, error) {
		styles, err := p.resolveStyles(opts.Styles)
		if err != nil {
			return domain.RunCounts{}, err
		}
		snap, err := p.snapshot.Load()
		if err != nil {
			return domain.RunCounts{}, err
		}

		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		records := catalog.Filter{IDs: opts.IDs, Limit: limit}.Apply(snap.Records)
		if len(records) == 0 {
			return domain.RunCounts{}, ErrNoRecords
		}

		items := make([]workItem, len(records))
		for i, r := range records {
			items[i] = p.locate(r)
		}
		res, err = p.transform(ctx, runID, items, styles)
		return transformCounts(res), err
	})
	return res, err
}

// RunOptions configures a full run.
type RunOptions struct {
	Filter catalog.Filter
	Styles []string
}

// RunResult is the outcome of a full run.
type RunResult struct {
	RunID     string
	Fetch     *FetchResult
	Transform *TransformResult
}

// Failed returns the number of failed results of the run. Records whose
// download failed fail every style in the transform stage, so they are
// already part of the transform count.
func (r *RunResult) Failed() int {
	switch {
	case r.Transform != nil:
		return r.Transform.Failed()
	case r.Fetch != nil:
		return r.Fetch.Failed()
	default:
		return 0
	}
}

// Run fetches and transforms in one pass. Records whose download failed
// still enter the transform stage and fail there without generator calls,
// so every eligible record appears in the reports.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	res := &RunResult{}
	runID, err := p.track(ctx, CommandRun, func(ctx context.Context, runID string) (domain.RunCounts, error) {
		styles, err := p.resolveStyles(opts.Styles)
		if err != nil {
			return domain.RunCounts{}, err
		}
		res.Fetch, err = p.fetch(ctx, runID, FetchOptions{Filter: opts.Filter})
		if err != nil {
			return fetchCounts(res.Fetch), err
		}
		if len(res.Fetch.Records) == 0 {
			return fetchCounts(res.Fetch), ErrNoRecords
		}

		items := make([]workItem, len(res.Fetch.Records))
		for i, r := range res.Fetch.Records {
			dl := res.Fetch.Downloads[i]
			items[i] = workItem{record: r, download: &dl}
			if dl.Succeeded {
				items[i].source = dl.ArtifactRef
			}
		}
		res.Transform, err = p.transform(ctx, runID, items, styles)
		return transformCounts(res.Transform), err
	})
	res.RunID = runID
	return res, err
}

func (p *Pipeline) resolveStyles(names []string) ([]generation.Style, error) {
	if p.deps.Transformer == nil || p.deps.Renderer == nil || p.deps.Styles == nil {
		return nil, errors.New("transform stage is not configured")
	}
	if len(names) == 0 {
		names = p.config.Styles
	}
	styles, err := p.deps.Styles.Resolve(names)
	if err != nil {
		return nil, fmt.Errorf("invalid styles (available: %s): %w", strings.Join(p.deps.Styles.Names(), ", "), err)
	}
	if len(styles) == 0 {
		return nil, errors.New("no styles selected")
	}
	return styles, nil
}

// locate finds the downloaded original of r left by an earlier fetch.
func (p *Pipeline) locate(r domain.Record) workItem {
	item := workItem{record: r}
	if path, ok := p.deps.Downloader.Locate(r); ok {
		dl := domain.Succeed(r.ID, domain.StageDownload, "", path, 0)
		dl.Cached = true
		item.download = &dl
		item.source = path
	}
	return item
}

func (p *Pipeline) transform(ctx context.Context, runID string, items []workItem, styles []generation.Style) (*TransformResult, error) {
	ctx = logger.WithContext(ctx, p.logger.With("run_id", runID))
	log := logger.FromContext(ctx)

	names := make([]string, len(styles))
	for i, s := range styles {
		names[i] = s.Name
	}
	log.InfoContext(ctx, "starting transforms", "items", len(items), "styles", names)

	var done atomic.Int64

	outcomes := task.RunBatch(ctx, items, task.BatchOptions[workItem, domain.ItemOutcome]{
		OnPanic: func(index int, it workItem, err error) domain.ItemOutcome {
			log.ErrorContext(ctx, "item panicked", "item_id", it.record.ID, "error", err)
			out := domain.ItemOutcome{Index: index, Record: it.record, Download: it.download}
			for _, s := range styles {
				out.Transforms = append(out.Transforms, domain.Fail(it.record.ID, domain.StageTransform, s.Name, err, 0))
			}
			return out
		},
	}, func(ctx context.Context, index int, it workItem) domain.ItemOutcome {
		out := p.item(ctx, index, it, styles)
		p.emitTransformed(ctx, runID, &out, int(done.Add(1)), len(items))
		return out
	})
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })

	summary := report.Summarize(runID, outcomes, p.config.TopN)
	res := &TransformResult{RunID: runID, Summary: summary, Outcomes: outcomes}

	paths, err := p.deps.Reports.Write(context.WithoutCancel(ctx), summary, outcomes)
	if err != nil {
		return res, err
	}
	res.Reports = paths

	log.InfoContext(ctx, "transforms finished",
		"items", summary.Totals.Items,
		"items_failed", summary.Totals.ItemsFailed,
		"attempts", summary.Totals.Attempts,
		"succeeded", summary.Totals.Succeeded,
		"success_rate", summary.Totals.SuccessRate)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("transform interrupted: %w", err)
	}
	return res, nil
}

// item transforms one record and renders its guide when at least one
// variant succeeded. Guide failures leave the item partial.
func (p *Pipeline) item(ctx context.Context, index int, it workItem, styles []generation.Style) domain.ItemOutcome {
	out := domain.ItemOutcome{Index: index, Record: it.record, Download: it.download}
	out.Transforms = p.deps.Transformer.Item(ctx, it.record, it.source, styles)

	successes := out.Successes()
	if len(successes) == 0 {
		return out
	}

	var (
		path string
		err  error
		pc   panics.Catcher
	)
	pc.Try(func() { path, err = p.deps.Renderer.Render(ctx, it.record, it.download, successes) })
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("panic: %v", rec.Value)
	}
	if err != nil {
		logger.FromContext(ctx).ErrorContext(ctx, "guide generation failed",
			"item_id", it.record.ID,
			"stage", domain.StageDocument,
			"error", redact.Error(err))
		out.DocumentError = err.Error()
		return out
	}
	out.DocumentPath = path
	return out
}

func (p *Pipeline) emitTransformed(ctx context.Context, runID string, out *domain.ItemOutcome, done, total int) {
	event := events.NewItemEvent(events.ItemTransformed, runID, out.Record.ID, out.Record.Name, done, total)
	event.Succeeded = !out.Failed()
	event.Partial = out.Partial()
	switch {
	case out.DocumentError != "":
		event.Error = out.DocumentError
	case out.Download != nil && !out.Download.Succeeded:
		event.Error = out.Download.Error
	case out.Failed() && len(out.Transforms) > 0:
		event.Error = out.Transforms[0].Error
	}
	p.emit(ctx, event)
}

func transformCounts(res *TransformResult) domain.RunCounts {
	if res == nil {
		return domain.RunCounts{}
	}
	t := res.Summary.Totals
	return domain.RunCounts{
		Items:     t.Items,
		Attempts:  t.Attempts,
		Succeeded: t.Succeeded,
		Failed:    t.Failed,
	}
}
