// Package transform produces the styled variants of each downloaded
// original. Variants of one record fan out concurrently under the
// transform limiter; each is retried on transient generator failures,
// skipped when a valid variant already exists, and scored from the style
// catalog when it succeeds.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/generation"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/storage"
	"github.com/phrazzld/stylebatch/internal/task"
)

// ErrSourceMissing is returned when a record has no downloaded original.
var ErrSourceMissing = errors.New("downloaded original not found")

// Config holds the knobs of a Transformer.
type Config struct {
	Retry       task.RetryPolicy
	VerifyCache bool
}

// DefaultConfig mirrors the stage defaults: 3 attempts, 1s base delay.
func DefaultConfig() Config {
	return Config{
		Retry:       task.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second},
		VerifyCache: true,
	}
}

// Transformer runs the transform stage.
type Transformer struct {
	store     *storage.Store
	generator generation.ImageGenerator
	catalog   *generation.Catalog
	limiter   *task.Limiter
	config    Config
	logger    *slog.Logger
}

// New creates a Transformer.
func New(
	store *storage.Store,
	generator generation.ImageGenerator,
	catalog *generation.Catalog,
	limiter *task.Limiter,
	config Config,
	logger *slog.Logger,
) *Transformer {
	return &Transformer{
		store:     store,
		generator: generator,
		catalog:   catalog,
		limiter:   limiter,
		config:    config,
		logger:    logger,
	}
}

// Variant produces one style variant of r from the original at source.
// It always returns exactly one result.
func (t *Transformer) Variant(ctx context.Context, r domain.Record, source string, style generation.Style) domain.StageResult {
	start := time.Now()
	ctx = logger.With(logger.WithContext(ctx, t.logger),
		"item_id", r.ID,
		"stage", domain.StageTransform,
		"style", style.Name)
	log := logger.FromContext(ctx)

	prompt, err := generation.BuildPrompt(style, r)
	if err != nil {
		return domain.Fail(r.ID, domain.StageTransform, style.Name, err, time.Since(start))
	}

	name := storage.TransformedName(r, style.Name)
	var attempts atomic.Int32

	type artifact struct {
		path   string
		size   int64
		cached bool
	}

	lookup := func(ctx context.Context) (artifact, bool, error) {
		path, rejected := t.store.FindImage(storage.AreaTransformed, []string{name}, t.config.VerifyCache)
		for _, p := range rejected {
			log.WarnContext(ctx, "cached variant failed verification, regenerating", "path", p)
		}
		if path == "" {
			return artifact{}, false, nil
		}
		size, _ := t.store.Size(path)
		return artifact{path: path, size: size, cached: true}, true, nil
	}

	generate := func(ctx context.Context) (artifact, error) {
		attempts.Add(1)
		ref, err := t.store.ReadPath(source)
		if err != nil {
			return artifact{}, task.Permanent(fmt.Errorf("%w: %v", ErrSourceMissing, err))
		}
		img, err := t.generator.Generate(ctx, generation.Request{
			Prompt:   prompt,
			Image:    ref,
			MIMEType: mimetype.Detect(ref).String(),
			Metadata: map[string]string{"item_id": r.ID, "style": style.Name},
		})
		if err != nil {
			if errors.Is(err, generation.ErrTransientFailure) || ctx.Err() != nil {
				return artifact{}, err
			}
			return artifact{}, task.Permanent(err)
		}
		if img == nil || len(img.Data) == 0 {
			return artifact{}, task.Permanent(fmt.Errorf("%w: empty image", generation.ErrInvalidResponse))
		}
		path, err := t.store.Write(storage.AreaTransformed, name, img.Data)
		if err != nil {
			return artifact{}, task.Permanent(err)
		}
		return artifact{path: path, size: int64(len(img.Data))}, nil
	}

	op := task.WithCache(lookup, task.WithLimit(t.limiter, task.WithRetry(t.config.Retry, log, generate)))
	got, err := op(ctx)
	elapsed := time.Since(start)

	if err != nil {
		log.ErrorContext(ctx, "transform failed",
			"attempts", attempts.Load(),
			"error", err)
		res := domain.Fail(r.ID, domain.StageTransform, style.Name, err, elapsed)
		res.Attempts = int(attempts.Load())
		res.Prompt = prompt
		return res
	}

	res := domain.Succeed(r.ID, domain.StageTransform, style.Name, got.path, elapsed)
	res.SizeBytes = got.size
	res.Cached = got.cached
	res.Attempts = int(attempts.Load())
	res.Prompt = prompt
	res.Scores = &domain.Scores{
		Marketability: t.catalog.Marketability(r.Category, style),
		Compatibility: style.Compatibility,
	}
	res.Notes = t.catalog.DesignNotes(r.Category, style)

	log.InfoContext(ctx, "variant ready",
		"path", got.path,
		"cached", got.cached,
		"marketability", res.Scores.Marketability,
		"compatibility", res.Scores.Compatibility)
	return res
}

// Item produces every style variant of r concurrently. When source is empty
// every style fails immediately without calling the generator. Results
// are returned in style order.
func (t *Transformer) Item(ctx context.Context, r domain.Record, source string, styles []generation.Style) []domain.StageResult {
	if source == "" {
		err := task.Permanent(fmt.Errorf("%w for %s", ErrSourceMissing, r.ID))
		t.logger.WarnContext(ctx, "skipping transforms, no downloaded original", "item_id", r.ID)
		out := make([]domain.StageResult, len(styles))
		for i, s := range styles {
			out[i] = domain.Fail(r.ID, domain.StageTransform, s.Name, err, 0)
		}
		return out
	}

	return task.FanOut(ctx, styles, task.BatchOptions[generation.Style, domain.StageResult]{
		OnPanic: func(_ int, s generation.Style, err error) domain.StageResult {
			t.logger.ErrorContext(ctx, "transform panicked", "item_id", r.ID, "style", s.Name, "error", err)
			return domain.Fail(r.ID, domain.StageTransform, s.Name, err, 0)
		},
	}, func(ctx context.Context, _ int, s generation.Style) domain.StageResult {
		return t.Variant(ctx, r, source, s)
	})
}
