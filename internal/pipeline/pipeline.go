package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/stylebatch/internal/catalog"
	"github.com/phrazzld/stylebatch/internal/document"
	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/download"
	"github.com/phrazzld/stylebatch/internal/events"
	"github.com/phrazzld/stylebatch/internal/generation"
	"github.com/phrazzld/stylebatch/internal/redact"
	"github.com/phrazzld/stylebatch/internal/report"
	"github.com/phrazzld/stylebatch/internal/storage"
	"github.com/phrazzld/stylebatch/internal/store"
	"github.com/phrazzld/stylebatch/internal/transform"
)

// Commands as recorded in the run ledger.
const (
	CommandFetch     = "fetch"
	CommandTransform = "transform"
	CommandRun       = "run"
)

// ErrNoRecords is returned when a stage has nothing to work on.
var ErrNoRecords = errors.New("no records to process")

// Deps are the collaborators of a Pipeline. Source, Transformer and
// Renderer may be nil for commands that do not use them. Runs and Events
// are optional.
type Deps struct {
	Source      catalog.Source
	Store       *storage.Store
	Downloader  *download.Downloader
	Transformer *transform.Transformer
	Renderer    *document.Renderer
	Styles      *generation.Catalog
	Reports     *report.Writer
	Runs        store.RunStore
	Events      events.Emitter
	Logger      *slog.Logger
}

// Config holds batch settings that are not owned by a single stage.
type Config struct {
	// Styles is used when a command does not name any.
	Styles []string
	TopN   int
}

// Pipeline runs the batch commands.
type Pipeline struct {
	deps     Deps
	config   Config
	snapshot *catalog.FileSource
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(deps Deps, config Config) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, errors.New("pipeline requires a store")
	}
	if deps.Downloader == nil {
		return nil, errors.New("pipeline requires a downloader")
	}
	if deps.Reports == nil {
		return nil, errors.New("pipeline requires a report writer")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.TopN <= 0 {
		config.TopN = report.DefaultTopN
	}
	return &Pipeline{
		deps:     deps,
		config:   config,
		snapshot: catalog.NewFileSource(deps.Store),
		logger:   deps.Logger,
	}, nil
}

// track runs fn as one ledger entry. Ledger failures are logged and never
// fail the command. fn returns the counts to record and a fatal error, if
// any; item failures are not fatal and an empty batch still completes.
func (p *Pipeline) track(ctx context.Context, command string, fn func(ctx context.Context, runID string) (domain.RunCounts, error)) (string, error) {
	run, err := domain.NewRun(command)
	if err != nil {
		return "", err
	}
	runID := run.ID.String()
	log := p.logger.With("run_id", runID, "command", command)

	ledger := p.deps.Runs
	if ledger != nil {
		if err := ledger.Create(ctx, run); err != nil {
			log.WarnContext(ctx, "run ledger unavailable, continuing without it", "error", redact.Error(err))
			ledger = nil
		} else if err := ledger.Start(ctx, run.ID); err != nil {
			log.WarnContext(ctx, "failed to mark run as processing", "error", redact.Error(err))
		}
	}

	counts, runErr := fn(ctx, runID)

	if ledger != nil {
		// The ledger must record the outcome even when ctx was cancelled.
		finalCtx := context.WithoutCancel(ctx)
		var err error
		if runErr != nil && !errors.Is(runErr, ErrNoRecords) {
			err = ledger.Fail(finalCtx, run.ID, counts, redact.Error(runErr))
		} else {
			err = ledger.Complete(finalCtx, run.ID, counts)
		}
		if err != nil {
			log.WarnContext(ctx, "failed to record run outcome", "error", redact.Error(err))
		}
	}
	return runID, runErr
}

// emit publishes a progress event. Handler errors are logged only.
func (p *Pipeline) emit(ctx context.Context, event *events.ItemEvent) {
	if p.deps.Events == nil {
		return
	}
	if err := p.deps.Events.EmitEvent(ctx, event); err != nil {
		p.logger.DebugContext(ctx, "progress event not handled", "event_type", event.Type, "error", err)
	}
}
