package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/afero"

	"github.com/phrazzld/stylebatch/internal/config"
	"github.com/phrazzld/stylebatch/internal/document"
	"github.com/phrazzld/stylebatch/internal/download"
	"github.com/phrazzld/stylebatch/internal/events"
	"github.com/phrazzld/stylebatch/internal/generation"
	"github.com/phrazzld/stylebatch/internal/pipeline"
	"github.com/phrazzld/stylebatch/internal/platform/gemini"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/platform/postgres"
	"github.com/phrazzld/stylebatch/internal/redact"
	"github.com/phrazzld/stylebatch/internal/report"
	"github.com/phrazzld/stylebatch/internal/storage"
	"github.com/phrazzld/stylebatch/internal/task"
	"github.com/phrazzld/stylebatch/internal/transform"
)

const dbPingTimeout = 5 * time.Second

// application holds the dependencies shared by every command and releases
// them in cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	store  *storage.Store
	db     *sql.DB
	closer io.Closer

	// progress receives one line per finished item.
	progress io.Writer

	generator generation.ImageGenerator
}

// newApplication loads and checks the configuration, sets up logging and
// storage and connects to the database when one is configured. A database
// is only fatal when reqs asks for it.
func newApplication(ctx context.Context, g *globalOptions, reqs ...config.Requirement) (*application, error) {
	opts := []config.Option{config.WithOverride("log.level", g.logLevel)}
	if g.configPath != "" {
		opts = append(opts, config.WithFile(g.configPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Require(reqs...); err != nil {
		return nil, err
	}

	log, closer, err := logger.Setup(logger.Config{
		Level:    cfg.Log.Level,
		FilePath: cfg.LogFilePath(),
		Output:   g.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	app := &application{config: cfg, logger: log, closer: closer, progress: g.stdout, generator: g.generator}
	log.Info("configuration loaded", "config", cfg.Safe())

	app.store = storage.New(afero.NewOsFs(), cfg.Storage.Layout())
	if err := app.store.Ensure(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to prepare output directories: %w", err)
	}

	if cfg.Database.URL != "" {
		app.db, err = postgres.Open(ctx, cfg.Database.URL, dbPingTimeout)
		if err != nil {
			if slices.Contains(reqs, config.RequireDatabase) {
				app.cleanup()
				return nil, err
			}
			log.Warn("database unavailable, run ledger disabled", "error", redact.Error(err))
			app.db = nil
		}
	}
	return app, nil
}

// withTimeout bounds ctx by batch.timeout when one is configured.
func (app *application) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if app.config.Batch.Timeout > 0 {
		return context.WithTimeout(ctx, app.config.Batch.Timeout)
	}
	return context.WithCancel(ctx)
}

// pipeline assembles the stages. The transform stage and its image model
// are only built when withTransform is set.
func (app *application) pipeline(ctx context.Context, withTransform bool) (*pipeline.Pipeline, error) {
	cfg := app.config
	log := app.logger

	styles, err := generation.LoadCatalog(cfg.LLM.StylesPath)
	if err != nil {
		return nil, err
	}

	fetcher := download.NewHTTPFetcher(download.FetcherConfig{Timeout: cfg.Batch.DownloadTimeout})
	downloader := download.New(app.store, fetcher,
		task.NewLimiter("download", cfg.Batch.DownloadConcurrency),
		download.Config{
			Retry:       task.RetryPolicy{MaxAttempts: cfg.Batch.MaxAttempts, BaseDelay: cfg.Batch.DownloadDelay},
			VerifyCache: cfg.Batch.VerifyCache,
		},
		log.With("component", "downloader"))

	emitter := events.NewInMemoryEmitter(log)
	if app.progress != nil {
		emitter.RegisterHandler(progressPrinter(app.progress))
	}

	deps := pipeline.Deps{
		Store:      app.store,
		Downloader: downloader,
		Styles:     styles,
		Reports:    report.NewWriter(app.store, report.DefaultPrefix, log),
		Events:     emitter,
		Logger:     log,
	}
	if app.db != nil {
		deps.Source = postgres.NewCatalogSource(app.db)
		deps.Runs = postgres.NewRunStore(app.db)
	}

	if withTransform {
		generator := app.generator
		if generator == nil {
			generator, err = gemini.NewImageGenerator(ctx, log.With("component", "image_generator"), gemini.Config{
				APIKey:    cfg.LLM.GeminiAPIKey,
				ModelName: cfg.LLM.ModelName,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to initialize image generator: %w", err)
			}
		}
		deps.Transformer = transform.New(app.store, generator, styles,
			task.NewLimiter("transform", cfg.Batch.TransformConcurrency),
			transform.Config{
				Retry:       task.RetryPolicy{MaxAttempts: cfg.Batch.MaxAttempts, BaseDelay: cfg.Batch.TransformDelay},
				VerifyCache: cfg.Batch.VerifyCache,
			},
			log.With("component", "transformer"))
		deps.Renderer = document.NewRenderer(app.store, styles, log.With("component", "renderer"))
	}

	return pipeline.New(deps, pipeline.Config{Styles: cfg.Batch.Styles, TopN: cfg.Batch.TopN})
}

// cleanup releases the database connection and the log file.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	if app.closer != nil {
		_ = app.closer.Close()
	}
}
