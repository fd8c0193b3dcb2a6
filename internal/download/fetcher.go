package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/phrazzld/stylebatch/internal/task"
)

// DefaultUserAgent identifies the pipeline to image hosts. Some CDNs reject
// requests without a browser-like agent.
const DefaultUserAgent = "Mozilla/5.0 (compatible; stylebatch/1.0; +https://github.com/phrazzld/stylebatch)"

// DefaultMaxBytes caps the size of a single downloaded image.
const DefaultMaxBytes = 32 << 20

// Fetcher retrieves the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a Fetcher backed by a pooled HTTP client.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// FetcherConfig configures an HTTPFetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

// NewHTTPFetcher creates a fetcher using a cleanhttp pooled client.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	client := cleanhttp.DefaultPooledClient()
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{client: client, userAgent: cfg.UserAgent, maxBytes: cfg.MaxBytes}
}

// Fetch implements Fetcher. Errors are classified: transient ones wrap
// ErrTransient, everything else is marked permanent.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, task.Permanent(fmt.Errorf("%w: invalid url %q: %v", ErrNotFound, url, err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransient, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, task.Permanent(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes))
	}
	return data, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: HTTP %d %s", ErrTransient, code, http.StatusText(code))
	default:
		return task.Permanent(fmt.Errorf("%w: HTTP %d %s", ErrNotFound, code, http.StatusText(code)))
	}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout: %v", ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
