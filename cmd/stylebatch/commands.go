package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phrazzld/stylebatch/internal/config"
	"github.com/phrazzld/stylebatch/internal/pipeline"
	"github.com/phrazzld/stylebatch/internal/platform/postgres"
	"github.com/phrazzld/stylebatch/internal/storage"
	"github.com/phrazzld/stylebatch/internal/store"
	"github.com/phrazzld/stylebatch/internal/tracker"
	"github.com/phrazzld/stylebatch/internal/tracker/github"
)

func newFetchCmd(g *globalOptions) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch catalog records and download their images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			app, err := newApplication(cmd.Context(), g, config.RequireDatabase)
			if err != nil {
				return err
			}
			defer app.cleanup()

			ctx, cancel := app.withTimeout(cmd.Context())
			defer cancel()

			p, err := app.pipeline(ctx, false)
			if err != nil {
				return err
			}
			res, err := p.Fetch(ctx, pipeline.FetchOptions{Filter: filter})
			if res != nil {
				printFetchSummary(g.stdout, res)
			}
			if err != nil {
				return err
			}
			return itemFailures(res.Failed())
		},
	}
	filters.register(cmd)
	return cmd
}

func newTransformCmd(g *globalOptions) *cobra.Command {
	var opts pipeline.TransformOptions
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Generate style variants and guides for previously fetched records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(cmd.Context(), g, config.RequireLLM)
			if err != nil {
				return err
			}
			defer app.cleanup()

			ctx, cancel := app.withTimeout(cmd.Context())
			defer cancel()

			p, err := app.pipeline(ctx, true)
			if err != nil {
				return err
			}
			res, err := p.Transform(ctx, opts)
			if errors.Is(err, pipeline.ErrNoRecords) {
				printNothingToDo(g.stdout)
				return nil
			}
			if res != nil {
				printTransformSummary(g.stdout, res)
			}
			if err != nil {
				return err
			}
			return itemFailures(res.Failed())
		},
	}
	cmd.Flags().StringSliceVar(&opts.IDs, "ids", nil, "only these record ids (comma separated)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records; 0 means all")
	cmd.Flags().StringSliceVar(&opts.Styles, "styles", nil, "styles to generate (default from batch.styles)")
	return cmd
}

func newRunCmd(g *globalOptions) *cobra.Command {
	var (
		filters filterFlags
		styles  []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, download, transform and document in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			app, err := newApplication(cmd.Context(), g, config.RequireDatabase, config.RequireLLM)
			if err != nil {
				return err
			}
			defer app.cleanup()

			ctx, cancel := app.withTimeout(cmd.Context())
			defer cancel()

			p, err := app.pipeline(ctx, true)
			if err != nil {
				return err
			}
			res, err := p.Run(ctx, pipeline.RunOptions{Filter: filter, Styles: styles})
			if res.Fetch != nil {
				printFetchSummary(g.stdout, res.Fetch)
			}
			if errors.Is(err, pipeline.ErrNoRecords) {
				printNothingToDo(g.stdout)
				return nil
			}
			if res.Transform != nil {
				printTransformSummary(g.stdout, res.Transform)
			}
			if err != nil {
				return err
			}
			return itemFailures(res.Failed())
		},
	}
	filters.register(cmd)
	cmd.Flags().StringSliceVar(&styles, "styles", nil, "styles to generate (default from batch.styles)")
	return cmd
}

func newIssuesCmd(g *globalOptions) *cobra.Command {
	var (
		dir         string
		contentRoot string
		opts        tracker.Options
	)
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "File the generated guides as tracker issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer app.cleanup()

			tc := app.config.Tracker
			opts.Owner = firstNonEmpty(opts.Owner, tc.Owner)
			opts.Repo = firstNonEmpty(opts.Repo, tc.Repo)
			opts.Branch = firstNonEmpty(opts.Branch, tc.Branch)
			if len(opts.Labels) == 0 {
				opts.Labels = tc.Labels
			}
			if len(opts.Assignees) == 0 {
				opts.Assignees = tc.Assignees
			}
			opts.ContentRoot = firstNonEmpty(contentRoot, defaultContentRoot(app.config.Storage.BaseDir))
			layout := app.config.Storage.Layout()
			opts.ImageDirs = []string{layout.Dirs[storage.AreaTransformed], layout.Dirs[storage.AreaRaw]}
			if dir == "" {
				dir = app.store.Dir(storage.AreaDocuments)
			}

			var client tracker.Client
			if !opts.DryRun {
				tc.Owner, tc.Repo = opts.Owner, opts.Repo
				if err := (&config.Config{Tracker: tc}).Require(config.RequireTracker); err != nil {
					return err
				}
				client, err = github.New(github.Config{Token: tc.Token, BaseURL: tc.BaseURL})
				if err != nil {
					return err
				}
			}

			ctx, cancel := app.withTimeout(cmd.Context())
			defer cancel()

			submitter := tracker.NewSubmitter(client, app.store.Fs(), tc.Pacing, app.logger.With("component", "tracker"))
			batch, err := submitter.SubmitDir(ctx, dir, opts)
			printIssueSummary(g.stdout, batch, opts.DryRun)
			if err != nil {
				return err
			}
			return itemFailures(batch.Failed)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", "", "directory of guides (default the documents area)")
	fl.StringVar(&opts.Owner, "owner", "", "repository owner (default tracker.owner)")
	fl.StringVar(&opts.Repo, "repo", "", "repository name (default tracker.repo)")
	fl.StringVar(&opts.Branch, "branch", "", "branch hosting the images (default tracker.branch)")
	fl.StringVar(&contentRoot, "content-root", "", "path of the output directory inside the repository")
	fl.IntVar(&opts.Limit, "limit", 0, "maximum number of issues; 0 means all")
	fl.StringSliceVar(&opts.Labels, "labels", nil, "issue labels (default tracker.labels)")
	fl.StringSliceVar(&opts.Assignees, "assignees", nil, "issue assignees (default tracker.assignees)")
	fl.BoolVar(&opts.DryRun, "dry-run", false, "preview the issues without creating them")
	return cmd
}

func newMigrateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [" + strings.Join(postgres.MigrationCommands, "|") + "] [args...]",
		Short:     "Manage the database schema",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context(), g, config.RequireDatabase)
			if err != nil {
				return err
			}
			defer app.cleanup()

			if err := postgres.Migrate(cmd.Context(), app.db, app.logger, args[0], args[1:]...); err != nil {
				return err
			}
			printSuccess(g.stdout, fmt.Sprintf("migrate %s finished", args[0]))
			return nil
		},
	}
}

func newRunsCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recent runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context(), g, config.RequireDatabase)
			if err != nil {
				return err
			}
			defer app.cleanup()
			runs := postgres.NewRunStore(app.db)

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", args[0], err)
				}
				run, err := runs.Get(cmd.Context(), id)
				if store.IsNotFoundError(err) {
					return fmt.Errorf("run %s not found", id)
				}
				if err != nil {
					return err
				}
				printRun(g.stdout, *run)
				return nil
			}

			list, err := runs.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(g.stdout, list)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// defaultContentRoot returns the repository-relative output directory for
// a relative base dir, or "" when the base dir is absolute.
func defaultContentRoot(base string) string {
	if base == "" || filepath.IsAbs(base) {
		return ""
	}
	root := filepath.ToSlash(filepath.Clean(base))
	if root == "." {
		return ""
	}
	return root
}
