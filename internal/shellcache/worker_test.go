package shellcache_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stocktool/internal/config"
	"stocktool/internal/shellcache"
)

type origin struct {
	*httptest.Server
	version  atomic.Value
	hits     atomic.Int32
	apiHits  atomic.Int32
	lastBust atomic.Value
}

func newOrigin(t *testing.T) *origin {
	t.Helper()

	o := &origin{}
	o.version.Store("v1")
	o.lastBust.Store("")
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		switch r.URL.Path {
		case "/", "/index.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprintf(w, "shell %s", o.version.Load())
		case "/app.js":
			w.Header().Set("Content-Type", "text/javascript")
			_, _ = w.Write([]byte("console.log('app')"))
		case "/.netlify/functions/get-stocks":
			n := o.apiHits.Add(1)
			o.lastBust.Store(r.Header.Get("Cache-Control") + "|" + r.Header.Get("Pragma"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `[{"symbol":"AAPL","price":%d}]`, n)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(o.Close)
	return o
}

func shellConfig(o *origin, version string) config.Shell {
	cfg := config.Default().Shell
	cfg.Enabled = true
	cfg.Origin = o.URL
	cfg.Version = version
	cfg.Assets = []string{"/", "/index.html", "/app.js"}
	return cfg
}

func newWorker(t *testing.T, cfg config.Shell, store shellcache.Storage, o *origin) *shellcache.Worker {
	t.Helper()

	w, err := shellcache.New(cfg, store, o.Client(), shellcache.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return w
}

func get(t *testing.T, w http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	w.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestInstall_StoresEveryAsset(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	store := shellcache.NewMemory()
	w := newWorker(t, shellConfig(o, "v1"), store, o)

	require.Equal(t, shellcache.StateInstalling, w.State())
	require.NoError(t, w.Install(t.Context()))
	require.Equal(t, shellcache.StateInstalled, w.State())

	bucket, err := store.Open("stocktool-cache-v1")
	require.NoError(t, err)
	keys, err := bucket.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{o.URL + "/", o.URL + "/index.html", o.URL + "/app.js"}, keys)

	snap, err := bucket.Match(o.URL + "/app.js")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, snap.Status)
	require.Equal(t, "console.log('app')", string(snap.Body))
}

func TestInstall_FailureStoresNothing(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	store := shellcache.NewMemory()
	cfg := shellConfig(o, "v1")
	cfg.Assets = append(cfg.Assets, "/missing.css")
	w := newWorker(t, cfg, store, o)

	require.Error(t, w.Install(t.Context()))
	require.Equal(t, shellcache.StateRedundant, w.State())

	names, err := store.Names()
	require.NoError(t, err)
	require.Empty(t, names)

	require.ErrorIs(t, w.Activate(t.Context()), shellcache.ErrInvalidState)
}

func TestActivate_OnlyCurrentBucketRemains(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	store := shellcache.NewMemory()
	for _, name := range []string{"stocktool-cache-v0", "legacy-cache"} {
		b, err := store.Open(name)
		require.NoError(t, err)
		require.NoError(t, b.Put("http://old/", &shellcache.Snapshot{Status: http.StatusOK}))
	}

	w := newWorker(t, shellConfig(o, "v1"), store, o)
	require.ErrorIs(t, w.Activate(t.Context()), shellcache.ErrInvalidState)
	require.NoError(t, w.Start(t.Context()))
	require.Equal(t, shellcache.StateActivated, w.State())

	names, err := store.Names()
	require.NoError(t, err)
	require.Equal(t, []string{"stocktool-cache-v1"}, names)

	stale, err := store.Open("stocktool-cache-v0")
	require.NoError(t, err)
	_, err = stale.Match("http://old/")
	require.ErrorIs(t, err, shellcache.ErrNotFound)
}

func TestFetch_CacheFirstAfterActivation(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	w := newWorker(t, shellConfig(o, "v1"), shellcache.NewMemory(), o)
	require.NoError(t, w.Start(t.Context()))

	o.version.Store("v2")
	hits := o.hits.Load()

	rec := get(t, w, "/index.html")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "shell v1", rec.Body.String())
	require.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	require.Equal(t, hits, o.hits.Load())

	// a miss goes to the network and is not stored by default
	rec = get(t, w, "/index.html?fresh=1")
	require.Equal(t, "shell v2", rec.Body.String())
	rec = get(t, w, "/index.html?fresh=1")
	require.Equal(t, hits+2, o.hits.Load())
}

func TestFetch_BeforeActivationUsesNetwork(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	w := newWorker(t, shellConfig(o, "v1"), shellcache.NewMemory(), o)
	require.NoError(t, w.Install(t.Context()))

	o.version.Store("v2")
	rec := get(t, w, "/")
	require.Equal(t, "shell v2", rec.Body.String())
}

func TestFetch_APINeverReadsCache(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	store := shellcache.NewMemory()
	w := newWorker(t, shellConfig(o, "v1"), store, o)
	require.NoError(t, w.Start(t.Context()))

	apiURL := o.URL + "/.netlify/functions/get-stocks"
	bucket, err := store.Open(w.CacheName())
	require.NoError(t, err)
	require.NoError(t, bucket.Put(apiURL, &shellcache.Snapshot{
		URL:    apiURL,
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`[{"symbol":"STALE"}]`),
	}))

	rec := get(t, w, "/.netlify/functions/get-stocks")
	require.Equal(t, `[{"symbol":"AAPL","price":1}]`, rec.Body.String())
	rec = get(t, w, "/.netlify/functions/get-stocks")
	require.Equal(t, `[{"symbol":"AAPL","price":2}]`, rec.Body.String())
	require.Equal(t, "|", o.lastBust.Load())

	snap, err := bucket.Match(apiURL)
	require.NoError(t, err)
	require.Equal(t, `[{"symbol":"STALE"}]`, string(snap.Body))
}

func TestFetch_APICacheBustHeaders(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	cfg := shellConfig(o, "v1")
	cfg.APIPolicy = config.APICacheBust
	w := newWorker(t, cfg, shellcache.NewMemory(), o)
	require.NoError(t, w.Start(t.Context()))

	rec := get(t, w, "/.netlify/functions/get-stocks")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-cache, no-store, must-revalidate|no-cache", o.lastBust.Load())
}

func TestFetch_NetworkFailureOnMiss(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	w := newWorker(t, shellConfig(o, "v1"), shellcache.NewMemory(), o)
	require.NoError(t, w.Start(t.Context()))
	o.Close()

	require.Equal(t, http.StatusOK, get(t, w, "/").Code)
	require.Equal(t, http.StatusBadGateway, get(t, w, "/other.css").Code)
	require.Equal(t, http.StatusBadGateway, get(t, w, "/.netlify/functions/get-stocks").Code)
}

func TestFetch_CacheOnFetch(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	cfg := shellConfig(o, "v1")
	cfg.Assets = []string{"/"}
	cfg.CacheOnFetch = true
	w := newWorker(t, cfg, shellcache.NewMemory(), o)
	require.NoError(t, w.Start(t.Context()))

	hits := o.hits.Load()
	for range 3 {
		rec := get(t, w, "/app.js")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, hits+1, o.hits.Load())

	// failed responses are not stored
	require.Equal(t, http.StatusNotFound, get(t, w, "/nope").Code)
	require.Equal(t, http.StatusNotFound, get(t, w, "/nope").Code)
	require.Equal(t, hits+3, o.hits.Load())
}

func TestFetch_HeadHasNoBody(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	w := newWorker(t, shellConfig(o, "v1"), shellcache.NewMemory(), o)
	require.NoError(t, w.Start(t.Context()))

	rec := httptest.NewRecorder()
	w.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, rec.Body.Len())
}

func TestNew_RejectsRelativeOrigin(t *testing.T) {
	t.Parallel()

	_, err := shellcache.New(config.Shell{Origin: "/relative"}, shellcache.NewMemory(), http.DefaultClient)
	require.Error(t, err)
}

func TestSnapshotCapture(t *testing.T) {
	t.Parallel()

	res := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Connection": {"keep-alive"}, "Content-Length": {"2"}, "Etag": {`"abc"`}},
		Body:       io.NopCloser(strings.NewReader("ok")),
	}
	snap, err := shellcache.Capture("http://origin/", res)
	require.NoError(t, err)
	require.Equal(t, "ok", string(snap.Body))
	require.Empty(t, snap.Header.Get("Connection"))
	require.Empty(t, snap.Header.Get("Content-Length"))
	require.Equal(t, `"abc"`, snap.Header.Get("Etag"))
	require.WithinDuration(t, time.Now(), snap.StoredAt, time.Minute)
}

type flakyStorage struct {
	shellcache.Storage
	fail atomic.Bool
}

func (s *flakyStorage) Names() ([]string, error) {
	if s.fail.Load() {
		return nil, errors.New("storage unavailable")
	}
	return s.Storage.Names()
}

func TestActivate_RetryAfterStorageError(t *testing.T) {
	t.Parallel()

	o := newOrigin(t)
	store := &flakyStorage{Storage: shellcache.NewMemory()}
	w := newWorker(t, shellConfig(o, "v2"), store, o)
	require.NoError(t, w.Install(t.Context()))

	store.fail.Store(true)
	require.ErrorContains(t, w.Activate(t.Context()), "storage unavailable")
	require.Equal(t, shellcache.StateInstalled, w.State())

	store.fail.Store(false)
	require.NoError(t, w.Activate(t.Context()))
	require.Equal(t, shellcache.StateActivated, w.State())
}

func TestFetch_CoalescedMissSurvivesFirstCallerCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.js" {
			hits.Add(1)
			started <- struct{}{}
			<-release
		}
		_, _ = w.Write([]byte("ok " + r.URL.Path))
	}))
	t.Cleanup(ts.Close)

	cfg := config.Default().Shell
	cfg.Origin = ts.URL
	cfg.Assets = []string{"/"}
	cfg.CacheOnFetch = true
	w, err := shellcache.New(cfg, shellcache.NewMemory(), ts.Client(), shellcache.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))

	// Arrange: the first caller starts the network fetch
	ctx, cancel := context.WithCancel(t.Context())
	firstErr := make(chan error, 1)
	go func() {
		_, err := w.Fetch(ctx, httptest.NewRequest(http.MethodGet, "/slow.js", nil))
		firstErr <- err
	}()
	<-started

	// Arrange: a second caller joins the same fetch
	second := make(chan *httptest.ResponseRecorder, 1)
	go func() { second <- get(t, w, "/slow.js") }()
	time.Sleep(50 * time.Millisecond)

	// Act: the first caller goes away, then the origin answers
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	// Assert: the second caller still gets the response
	rec := <-second
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok /slow.js", rec.Body.String())
	require.Equal(t, int32(1), hits.Load())

	// Assert: the shared response was stored
	require.Equal(t, "ok /slow.js", get(t, w, "/slow.js").Body.String())
	require.Equal(t, int32(1), hits.Load())
}
