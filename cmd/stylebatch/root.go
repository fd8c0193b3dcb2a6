package main

import (
	"context"
	"errors"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phrazzld/stylebatch/internal/generation"
	"github.com/phrazzld/stylebatch/internal/redact"
)

// globalOptions holds the persistent flags and the process streams.
type globalOptions struct {
	configPath string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer

	// generator replaces the configured image model when set.
	generator generation.ImageGenerator
}

// execute runs the command line in args and returns the exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return executeWith(ctx, &globalOptions{stdout: stdout, stderr: stderr}, args)
}

func executeWith(ctx context.Context, g *globalOptions, args []string) int {
	stdout, stderr := g.stdout, g.stderr
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errItemsFailed) {
		color.New(color.FgRed).Fprintf(stderr, "Error: %s\n", redact.Error(err))
	}
	return exitCode(err)
}

func newRootCmd(g *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "stylebatch",
		Short: "Batch pipeline that turns catalog images into styled variants and modeling guides",
		Long: `stylebatch pulls furniture records from the catalog warehouse, downloads
their images, generates one variant per style with an image model and writes
a modeling guide per item, plus JSON reports for the whole batch.

Re-running a command only does the work whose artifacts are missing.

Exit codes: 0 on full success, 1 when any item failed, 2 on configuration
or fatal errors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default ./stylebatch.yaml or ~/.config/stylebatch/stylebatch.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newFetchCmd(g),
		newTransformCmd(g),
		newRunCmd(g),
		newIssuesCmd(g),
		newMigrateCmd(g),
		newRunsCmd(g),
	)
	return root
}
