package download

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/storage"
	"github.com/phrazzld/stylebatch/internal/task"
)

// supportedFormats maps accepted MIME types to the extension the original
// is stored under.
var supportedFormats = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Config holds the knobs of a Downloader.
type Config struct {
	Retry task.RetryPolicy

	// VerifyCache re-checks cached originals and treats empty or non-image
	// files as misses.
	VerifyCache bool
}

// DefaultConfig mirrors the stage defaults: 3 attempts, 2s base delay.
func DefaultConfig() Config {
	return Config{
		Retry:       task.RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second},
		VerifyCache: true,
	}
}

// Downloader runs the download stage for records.
type Downloader struct {
	store   *storage.Store
	fetcher Fetcher
	limiter *task.Limiter
	config  Config
	logger  *slog.Logger
}

// New creates a Downloader. limiter bounds concurrent fetches across every
// caller sharing it.
func New(store *storage.Store, fetcher Fetcher, limiter *task.Limiter, config Config, logger *slog.Logger) *Downloader {
	return &Downloader{
		store:   store,
		fetcher: fetcher,
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// RawCandidates lists the filenames a downloaded original of r may have.
func RawCandidates(r domain.Record) []string {
	names := make([]string, len(storage.ImageExtensions))
	for i, ext := range storage.ImageExtensions {
		names[i] = storage.RawName(r, ext)
	}
	return names
}

// Locate returns the path of r's downloaded original, if one exists.
func (d *Downloader) Locate(r domain.Record) (string, bool) {
	path, rejected := d.store.FindImage(storage.AreaRaw, RawCandidates(r), d.config.VerifyCache)
	for _, p := range rejected {
		d.logger.Warn("cached original failed verification, ignoring", "item_id", r.ID, "path", p)
	}
	return path, path != ""
}

// Download fetches r's image unless a valid copy is already stored. It
// always returns exactly one result.
func (d *Downloader) Download(ctx context.Context, r domain.Record) domain.StageResult {
	start := time.Now()
	ctx = logger.With(logger.WithContext(ctx, d.logger), "item_id", r.ID, "stage", domain.StageDownload)
	log := logger.FromContext(ctx)

	var attempts atomic.Int32
	type artifact struct {
		path   string
		size   int64
		cached bool
	}

	lookup := func(ctx context.Context) (artifact, bool, error) {
		path, ok := d.Locate(r)
		if !ok {
			return artifact{}, false, nil
		}
		size, _ := d.store.Size(path)
		return artifact{path: path, size: size, cached: true}, true, nil
	}

	fetch := func(ctx context.Context) (artifact, error) {
		attempts.Add(1)
		log.DebugContext(ctx, "fetching image", "attempt", task.Attempt(ctx))
		data, err := d.fetcher.Fetch(ctx, r.ImageURL)
		if err != nil {
			return artifact{}, err
		}
		mt := mimetype.Detect(data)
		ext, ok := supportedFormats[mt.String()]
		if !ok {
			return artifact{}, task.Permanent(fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String()))
		}
		path, err := d.store.Write(storage.AreaRaw, storage.RawName(r, ext), data)
		if err != nil {
			return artifact{}, task.Permanent(err)
		}
		return artifact{path: path, size: int64(len(data))}, nil
	}

	op := task.WithCache(lookup, task.WithLimit(d.limiter, task.WithRetry(d.config.Retry, log, fetch)))
	got, err := op(ctx)
	elapsed := time.Since(start)

	if err != nil {
		log.ErrorContext(ctx, "download failed",
			"url", r.ImageURL,
			"attempts", attempts.Load(),
			"error", err)
		res := domain.Fail(r.ID, domain.StageDownload, "", err, elapsed)
		res.Attempts = int(attempts.Load())
		return res
	}

	if got.cached {
		log.InfoContext(ctx, "original already downloaded, skipping", "path", got.path)
	} else {
		log.InfoContext(ctx, "downloaded original",
			"path", got.path,
			"size_bytes", got.size,
			"attempts", attempts.Load())
	}
	res := domain.Succeed(r.ID, domain.StageDownload, "", got.path, elapsed)
	res.SizeBytes = got.size
	res.Cached = got.cached
	res.Attempts = int(attempts.Load())
	return res
}

// DownloadAll downloads every record concurrently, bounded by the limiter,
// and returns one result per record in completion order. A non-nil onResult
// is called with each result as its record finishes, possibly from several
// goroutines at once.
func (d *Downloader) DownloadAll(ctx context.Context, records []domain.Record, onResult func(domain.StageResult)) []domain.StageResult {
	d.logger.InfoContext(ctx, "starting downloads",
		"items", len(records),
		"concurrency", d.limiter.Ceiling())

	results := task.RunBatch(ctx, records, task.BatchOptions[domain.Record, domain.StageResult]{
		OnPanic: func(_ int, r domain.Record, err error) domain.StageResult {
			d.logger.ErrorContext(ctx, "download panicked", "item_id", r.ID, "error", err)
			res := domain.Fail(r.ID, domain.StageDownload, "", err, 0)
			if onResult != nil {
				onResult(res)
			}
			return res
		},
	}, func(ctx context.Context, _ int, r domain.Record) domain.StageResult {
		res := d.Download(ctx, r)
		if onResult != nil {
			onResult(res)
		}
		return res
	})

	var ok int
	for _, res := range results {
		if res.Succeeded {
			ok++
		}
	}
	d.logger.InfoContext(ctx, "downloads finished",
		"items", len(results),
		"succeeded", ok,
		"failed", len(results)-ok,
		"peak_concurrency", d.limiter.Peak())
	return results
}
