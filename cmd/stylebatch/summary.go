package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/events"
	"github.com/phrazzld/stylebatch/internal/pipeline"
	"github.com/phrazzld/stylebatch/internal/tracker"
)

var (
	headerColor  = color.New(color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed)
)

func printSuccess(w io.Writer, msg string) {
	successColor.Fprintln(w, msg)
}

func printNothingToDo(w io.Writer) {
	warnColor.Fprintln(w, "No records to process.")
}

func percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// statusColor picks green when nothing failed, yellow when some did and
// red when nothing succeeded.
func statusColor(succeeded, failed int) *color.Color {
	switch {
	case failed == 0:
		return successColor
	case succeeded == 0:
		return failColor
	default:
		return warnColor
	}
}

// progressPrinter writes one line per finished item.
func progressPrinter(w io.Writer) events.Handler {
	return events.HandlerFunc(func(_ context.Context, e *events.ItemEvent) error {
		stage := "download"
		if e.Type == events.ItemTransformed {
			stage = "transform"
		}
		c, status := successColor, "ok"
		switch {
		case !e.Succeeded:
			c, status = failColor, "failed: "+e.Error
		case e.Partial:
			c, status = warnColor, "partial"
			if e.Error != "" {
				status += ": " + e.Error
			}
		}
		_, err := c.Fprintf(w, "[%d/%d] %-9s %s %s %s\n", e.Done, e.Total, stage, e.ItemID, e.Name, status)
		return err
	})
}

func printFetchSummary(w io.Writer, res *pipeline.FetchResult) {
	t := res.Report.Totals
	headerColor.Fprintf(w, "Fetch %s\n", res.RunID)
	fmt.Fprintf(w, "  records:    %d (%d eligible, %d excluded)\n", t.Records, t.Eligible, t.Excluded)
	fmt.Fprintf(w, "  downloaded: %d (%d cached, %d recovered)\n", t.Downloaded, t.Cached, t.Recovered)
	statusColor(t.Downloaded, t.Failed).Fprintf(w, "  failed:     %d (success rate %s)\n", t.Failed, percent(t.SuccessRate))
	for _, f := range res.Report.FailedDownloads {
		failColor.Fprintf(w, "    %s %s: %s\n", f.ItemID, f.Name, f.Error)
	}
	if res.ReportPath != "" {
		fmt.Fprintf(w, "  report:     %s\n", res.ReportPath)
	}
}

func printTransformSummary(w io.Writer, res *pipeline.TransformResult) {
	t := res.Summary.Totals
	headerColor.Fprintf(w, "Transform %s\n", res.RunID)
	fmt.Fprintf(w, "  items:      %d (%d partial, %d failed)\n", t.Items, t.ItemsPartial, t.ItemsFailed)
	statusColor(t.Succeeded, t.Failed).Fprintf(w, "  variants:   %d/%d succeeded (%s)\n", t.Succeeded, t.Attempts, percent(t.SuccessRate))

	if len(res.Summary.ByStyle) > 0 {
		styles := make([]string, 0, len(res.Summary.ByStyle))
		for s := range res.Summary.ByStyle {
			styles = append(styles, s)
		}
		sort.Strings(styles)
		for _, s := range styles {
			b := res.Summary.ByStyle[s]
			fmt.Fprintf(w, "    %-12s %d/%d (%s)\n", s, b.Succeeded, b.Count, percent(b.SuccessRate))
		}
	}
	if len(res.Summary.TopPerformers) > 0 {
		fmt.Fprintln(w, "  top performers:")
		for i, p := range res.Summary.TopPerformers {
			fmt.Fprintf(w, "    %d. %s %s (%d/%d, score %.2f)\n", i+1, p.ItemID, p.Name, p.Successes, p.Attempts, p.MeanScore)
		}
	}
	if res.Reports.Summary != "" {
		fmt.Fprintf(w, "  summary:    %s\n", res.Reports.Summary)
		fmt.Fprintf(w, "  details:    %s\n", res.Reports.Detailed)
	}
}

func printIssueSummary(w io.Writer, batch tracker.Batch, dryRun bool) {
	if dryRun {
		headerColor.Fprintln(w, "Issues (dry run)")
	} else {
		headerColor.Fprintln(w, "Issues")
	}
	for _, r := range batch.Results {
		switch {
		case !r.Succeeded():
			failColor.Fprintf(w, "  ✗ %s: %s\n", r.File, r.Error)
		case r.DryRun:
			fmt.Fprintf(w, "  • %s (%s)\n", r.Title, r.File)
		default:
			successColor.Fprintf(w, "  ✓ #%d %s %s\n", r.Number, r.Title, r.URL)
		}
	}
	statusColor(batch.Succeeded, batch.Failed).Fprintf(w, "  %d succeeded, %d failed\n", batch.Succeeded, batch.Failed)
}

func printRuns(w io.Writer, runs []domain.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMAND\tSTATUS\tITEMS\tSUCCEEDED\tFAILED\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.Command, r.Status, r.Counts.Items, r.Counts.Succeeded, r.Counts.Failed,
			r.CreatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func printRun(w io.Writer, r domain.Run) {
	headerColor.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  command:    %s\n", r.Command)
	statusFor(r.Status).Fprintf(w, "  status:     %s\n", r.Status)
	fmt.Fprintf(w, "  items:      %d\n", r.Counts.Items)
	fmt.Fprintf(w, "  attempts:   %d\n", r.Counts.Attempts)
	fmt.Fprintf(w, "  succeeded:  %d\n", r.Counts.Succeeded)
	fmt.Fprintf(w, "  failed:     %d\n", r.Counts.Failed)
	fmt.Fprintf(w, "  created:    %s\n", r.CreatedAt.Format(time.RFC3339))
	if r.StartedAt != nil {
		fmt.Fprintf(w, "  started:    %s\n", r.StartedAt.Format(time.RFC3339))
	}
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "  finished:   %s\n", r.FinishedAt.Format(time.RFC3339))
	}
	if r.ErrorMessage != "" {
		failColor.Fprintf(w, "  error:      %s\n", r.ErrorMessage)
	}
}

func statusFor(s domain.RunStatus) *color.Color {
	switch s {
	case domain.RunStatusCompleted:
		return successColor
	case domain.RunStatusFailed:
		return failColor
	default:
		return warnColor
	}
}
