package shellcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"stocktool/internal/config"
	"stocktool/internal/httpx"
	"stocktool/internal/telemetry"
)

// State is the worker lifecycle position.
type State int

const (
	StateInstalling State = iota
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	default:
		return "redundant"
	}
}

// ErrInvalidState is returned when a lifecycle step runs out of order.
var ErrInvalidState = errors.New("shellcache: invalid worker state")

// DefaultFetchTimeout bounds a coalesced network fetch once it no longer
// follows the first caller's context.
const DefaultFetchTimeout = 15 * time.Second

type Option func(*Worker)

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.fetchTimeout = d
		}
	}
}

// WithLogger overrides the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) { w.log = l }
}

// Worker is a caching reverse proxy in front of the app-shell origin. Shell
// assets are served cache-first from the current bucket; API requests always
// go to the network.
type Worker struct {
	cfg     config.Shell
	origin  *url.URL
	name    string
	store   Storage
	network httpx.Doer
	log     *zap.Logger
	flight  singleflight.Group

	fetchTimeout time.Duration

	mu      sync.RWMutex
	state   State
	current Bucket
}

func New(cfg config.Shell, store Storage, network httpx.Doer, opts ...Option) (*Worker, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("shell origin must be an absolute URL, got %q", cfg.Origin)
	}
	w := &Worker{
		cfg:     cfg,
		origin:  origin,
		name:    CacheName(cfg.CachePrefix, cfg.Version),
		store:   store,
		network: network,
		log:     zap.L(),
		state:   StateInstalling,

		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.Named("shellcache").With(zap.String("bucket", w.name))
	return w, nil
}

// CacheName is the current bucket name.
func (w *Worker) CacheName() string { return w.name }

func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Install fetches every shell asset and stores them in the current bucket.
// Any failure stores nothing and leaves the worker redundant.
func (w *Worker) Install(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateInstalling {
		return fmt.Errorf("install from %s: %w", w.state, ErrInvalidState)
	}
	if err := w.install(ctx); err != nil {
		w.state = StateRedundant
		return err
	}
	w.state = StateInstalled
	w.log.Info("installed", zap.Int("assets", len(w.cfg.Assets)))
	return nil
}

func (w *Worker) install(ctx context.Context) error {
	keys := make([]string, len(w.cfg.Assets))
	snaps := make([]*Snapshot, len(w.cfg.Assets))

	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range w.cfg.Assets {
		g.Go(func() error {
			key, err := w.resolve(asset)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, key, http.NoBody)
			if err != nil {
				return fmt.Errorf("creating request for %s: %w", key, err)
			}
			snap, err := w.roundTrip(req, key)
			if err != nil {
				return err
			}
			if !snap.OK() {
				return fmt.Errorf("asset %s: unexpected status code: %d", key, snap.Status)
			}
			keys[i], snaps[i] = key, snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("install %s: %w", w.name, err)
	}

	bucket, err := w.store.Open(w.name)
	if err != nil {
		return err
	}
	entries := make(map[string]*Snapshot, len(keys))
	for i, key := range keys {
		entries[key] = snaps[i]
	}
	if err := bucket.PutAll(entries); err != nil {
		return fmt.Errorf("install %s: %w", w.name, err)
	}
	w.current = bucket
	return nil
}

// Activate deletes every bucket except the current one, then starts serving
// from the cache.
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateInstalled {
		return fmt.Errorf("activate from %s: %w", w.state, ErrInvalidState)
	}
	w.state = StateActivating

	deleted, err := w.deleteStale(ctx)
	telemetry.ShellBucketsDeleted(deleted)
	if err != nil {
		// stay installed so a later Activate can retry
		w.state = StateInstalled
		return err
	}

	w.state = StateActivated
	return nil
}

func (w *Worker) deleteStale(ctx context.Context) (int, error) {
	names, err := w.store.Names()
	if err != nil {
		return 0, fmt.Errorf("list buckets: %w", err)
	}
	deleted := 0
	for _, name := range StaleBuckets(names, w.name) {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := w.store.Delete(name); err != nil {
			return deleted, fmt.Errorf("delete bucket %s: %w", name, err)
		}
		deleted++
		w.log.Info("deleted stale bucket", zap.String("stale", name))
	}
	return deleted, nil
}

// Start installs and activates without waiting for older workers to finish.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return err
	}
	return w.Activate(ctx)
}

// Fetch answers r the way the worker would: network only for API paths,
// cache first for everything else once activated.
func (w *Worker) Fetch(ctx context.Context, r *http.Request) (*Snapshot, error) {
	key := w.key(r.URL)
	if w.isAPI(r.URL.Path) {
		return w.fetchAPI(ctx, r, key)
	}

	w.mu.RLock()
	bucket := w.current
	activated := w.state == StateActivated
	w.mu.RUnlock()

	if !activated || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		return w.forward(ctx, r, key, nil)
	}

	snap, err := bucket.Match(key)
	switch {
	case err == nil:
		telemetry.ShellCacheHit()
		return snap, nil
	case !errors.Is(err, ErrNotFound):
		w.log.Warn("cache lookup failed", zap.String("url", key), zap.Error(err))
	}
	telemetry.ShellCacheMiss()

	if !w.cfg.CacheOnFetch || r.Method != http.MethodGet {
		return w.forward(ctx, r, key, nil)
	}
	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := w.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.fetchTimeout)
		defer cancel()

		snap, err := w.forward(fctx, r, key, nil)
		if err != nil {
			return nil, err
		}
		if snap.OK() {
			if err := bucket.Put(key, snap); err != nil {
				w.log.Warn("cache put failed", zap.String("url", key), zap.Error(err))
			}
		}
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (w *Worker) fetchAPI(ctx context.Context, r *http.Request, key string) (*Snapshot, error) {
	if w.cfg.APIPolicy != config.APICacheBust {
		return w.forward(ctx, r, key, nil)
	}
	snap, err := w.forward(ctx, r, key, http.Header{
		"Cache-Control": {"no-cache, no-store, must-revalidate"},
		"Pragma":        {"no-cache"},
	})
	if err != nil {
		w.log.Warn("live api request failed", zap.String("url", key), zap.Error(err))
		return nil, err
	}
	return snap, nil
}

// ServeHTTP replays Fetch results; network failures become 502.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	snap, err := w.Fetch(r.Context(), r)
	if err != nil {
		telemetry.ShellNetworkFailure()
		http.Error(rw, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	snap.Write(rw, r)
}

func (w *Worker) forward(ctx context.Context, r *http.Request, key string, extra http.Header) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, key, r.Body)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", key, err)
	}
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	// let the transport negotiate and decode compression itself
	req.Header.Del("Accept-Encoding")
	for k, vs := range extra {
		req.Header[k] = vs
	}
	return w.roundTrip(req, key)
}

func (w *Worker) roundTrip(req *http.Request, key string) (*Snapshot, error) {
	res, err := w.network.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	return Capture(key, res)
}

func (w *Worker) isAPI(path string) bool {
	return w.cfg.APIPrefix != "" && strings.HasPrefix(path, w.cfg.APIPrefix)
}

// resolve turns an asset entry into its cache key. Relative entries resolve
// against the origin; absolute ones are kept.
func (w *Worker) resolve(asset string) (string, error) {
	u, err := url.Parse(asset)
	if err != nil {
		return "", fmt.Errorf("asset %q: %w", asset, err)
	}
	return w.origin.ResolveReference(u).String(), nil
}

func (w *Worker) key(u *url.URL) string {
	return w.origin.ResolveReference(&url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: u.RawQuery}).String()
}
