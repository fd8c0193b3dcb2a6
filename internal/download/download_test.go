package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/storage"
	"github.com/phrazzld/stylebatch/internal/task"
)

var (
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

// imageServer serves a small catalog of behaviours keyed by path.
type imageServer struct {
	*httptest.Server
	hits      atomic.Int32
	flakyLeft atomic.Int32
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{}
	s.flakyLeft.Store(2)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.hits.Add(1)
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/ok.jpg", func(w http.ResponseWriter, req *http.Request) {
		assert.NotEmpty(t, req.Header.Get("User-Agent"))
		_, _ = w.Write(jpegBytes)
	})
	r.Get("/ok.png", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write(pngBytes)
	})
	r.Get("/flaky.jpg", func(w http.ResponseWriter, req *http.Request) {
		if s.flakyLeft.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(jpegBytes)
	})
	r.Get("/throttled.jpg", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	r.Get("/page.jpg", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>not an image</body></html>"))
	})
	r.Get("/slow.jpg", func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write(jpegBytes)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func newTestDownloader(t *testing.T, fetcher Fetcher) (*Downloader, *storage.Store) {
	t.Helper()
	store := storage.New(afero.NewMemMapFs(), storage.DefaultLayout("/out"))
	require.NoError(t, store.Ensure())
	cfg := Config{
		Retry:       task.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		VerifyCache: true,
	}
	return New(store, fetcher, task.NewLimiter("download", 2), cfg, logger.Discard()), store
}

func record(id, url string) domain.Record {
	return domain.Record{ID: id, Name: "Lounge Chair", Category: "chair", Brand: "Acme", ImageURL: url}
}

func TestHTTPFetcher_Classification(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	f := NewHTTPFetcher(FetcherConfig{Timeout: 50 * time.Millisecond})

	data, err := f.Fetch(context.Background(), srv.URL+"/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, task.IsPermanent(err))

	_, err = f.Fetch(context.Background(), srv.URL+"/throttled.jpg")
	assert.ErrorIs(t, err, ErrTransient)
	assert.False(t, task.IsPermanent(err))

	_, err = f.Fetch(context.Background(), srv.URL+"/slow.jpg")
	assert.ErrorIs(t, err, ErrTransient)

	_, err = f.Fetch(context.Background(), "://bad")
	assert.True(t, task.IsPermanent(err))
}

func TestHTTPFetcher_SizeCap(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	f := NewHTTPFetcher(FetcherConfig{MaxBytes: 4})
	_, err := f.Fetch(context.Background(), srv.URL+"/ok.jpg")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, task.IsPermanent(err))
}

func TestDownloader_Download(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	d, store := newTestDownloader(t, NewHTTPFetcher(FetcherConfig{}))

	tests := []struct {
		name         string
		path         string
		wantOK       bool
		wantAttempts int
		wantErr      error
		wantExt      string
	}{
		{"jpeg", "/ok.jpg", true, 1, nil, "jpg"},
		{"png keeps its format", "/ok.png", true, 1, nil, "png"},
		{"transient then success", "/flaky.jpg", true, 3, nil, "jpg"},
		{"not found is permanent", "/missing.jpg", false, 1, ErrNotFound, ""},
		{"unsupported format", "/page.jpg", false, 1, ErrUnsupportedFormat, ""},
		{"throttled exhausts retries", "/throttled.jpg", false, 3, ErrTransient, ""},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := record(string(rune('a'+i)), srv.URL+tc.path)
			res := d.Download(context.Background(), r)

			assert.Equal(t, r.ID, res.ItemID)
			assert.Equal(t, domain.StageDownload, res.Stage)
			assert.Equal(t, tc.wantOK, res.Succeeded, res.Error)
			assert.Equal(t, tc.wantAttempts, res.Attempts)
			if tc.wantOK {
				assert.Equal(t, store.Path(storage.AreaRaw, storage.RawName(r, tc.wantExt)), res.ArtifactRef)
				assert.True(t, store.Exists(res.ArtifactRef))
				assert.Greater(t, res.SizeBytes, int64(0))
				assert.False(t, res.Cached)
			} else {
				assert.Contains(t, res.Error, tc.wantErr.Error())
				assert.Empty(t, res.ArtifactRef)
			}
		})
	}
}

type countingFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	return f.data, f.err
}

func TestDownloader_CacheHitSkipsFetch(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{data: jpegBytes}
	d, store := newTestDownloader(t, fetcher)
	r := record("42", "https://cdn.example.com/42.jpg")

	existing, err := store.Write(storage.AreaRaw, storage.RawName(r, "png"), pngBytes)
	require.NoError(t, err)

	res := d.Download(context.Background(), r)
	assert.True(t, res.Succeeded)
	assert.True(t, res.Cached)
	assert.Equal(t, existing, res.ArtifactRef)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestDownloader_CorruptCacheIsRefetched(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{data: jpegBytes}
	d, store := newTestDownloader(t, fetcher)
	r := record("43", "https://cdn.example.com/43.jpg")

	_, err := store.Write(storage.AreaRaw, storage.RawName(r, "jpg"), []byte{})
	require.NoError(t, err)

	res := d.Download(context.Background(), r)
	assert.True(t, res.Succeeded)
	assert.False(t, res.Cached)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	data, err := store.ReadPath(res.ArtifactRef)
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
}

func TestDownloader_DownloadAll(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{err: errors.New("connection refused")}
	d, _ := newTestDownloader(t, fetcher)

	var records []domain.Record
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		records = append(records, record(id, "https://cdn.example.com/"+id+".jpg"))
	}

	var (
		mu       sync.Mutex
		reported []string
	)
	results := d.DownloadAll(context.Background(), records, func(res domain.StageResult) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, res.ItemID)
	})
	require.Len(t, results, len(records))
	for _, res := range results {
		assert.False(t, res.Succeeded)
		assert.Equal(t, 3, res.Attempts)
	}
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "5"}, reported, "each record reports as it finishes")
	assert.Equal(t, int32(15), fetcher.calls.Load())
	assert.LessOrEqual(t, d.limiter.Peak(), 2)
}

func TestDownloader_CancelledContext(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{data: jpegBytes}
	d, _ := newTestDownloader(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Download(ctx, record("7", "https://cdn.example.com/7.jpg"))
	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Error, context.Canceled.Error())
	assert.Equal(t, int32(0), fetcher.calls.Load())
}
