package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/stylebatch/internal/catalog"
)

const dateLayout = "2006-01-02"

// filterFlags are the catalog filter flags shared by fetch and run.
type filterFlags struct {
	limit    int
	offset   int
	category string
	brand    string
	since    string
	until    string
	ids      []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVar(&f.limit, "limit", catalog.DefaultLimit, "maximum number of records; negative means no limit")
	fl.IntVar(&f.offset, "offset", 0, "number of records to skip")
	fl.StringVar(&f.category, "category", "", "only records of this category")
	fl.StringVar(&f.brand, "brand", "", "only records of this brand")
	fl.StringVar(&f.since, "since", "", "only records updated on or after this date (YYYY-MM-DD)")
	fl.StringVar(&f.until, "until", "", "only records updated on or before this date (YYYY-MM-DD)")
	fl.StringSliceVar(&f.ids, "ids", nil, "only these record ids (comma separated)")
}

// filter converts the flags into a catalog.Filter. until covers the whole
// named day.
func (f *filterFlags) filter() (catalog.Filter, error) {
	if f.offset < 0 {
		return catalog.Filter{}, fmt.Errorf("--offset must not be negative, got %d", f.offset)
	}
	out := catalog.Filter{
		Limit:    f.limit,
		Offset:   f.offset,
		Category: f.category,
		Brand:    f.brand,
		IDs:      f.ids,
	}
	if out.Limit == 0 {
		out.Limit = catalog.DefaultLimit
	}
	if f.since != "" {
		t, err := time.Parse(dateLayout, f.since)
		if err != nil {
			return catalog.Filter{}, fmt.Errorf("invalid --since %q: expected YYYY-MM-DD", f.since)
		}
		out.Since = t
	}
	if f.until != "" {
		t, err := time.Parse(dateLayout, f.until)
		if err != nil {
			return catalog.Filter{}, fmt.Errorf("invalid --until %q: expected YYYY-MM-DD", f.until)
		}
		out.Until = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !out.Since.IsZero() && !out.Until.IsZero() && out.Until.Before(out.Since) {
		return catalog.Filter{}, fmt.Errorf("--until %s is before --since %s", f.until, f.since)
	}
	return out, nil
}
