package telemetry

import (
	"expvar"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var (
	httpRequestsTotal         = expvar.NewInt("http_requests_total")
	httpRequestsErrorsTotal   = expvar.NewInt("http_requests_errors_total")
	httpRequestLatencyMsTotal = expvar.NewInt("http_request_latency_ms_total")
	httpRequestLatencySamples = expvar.NewInt("http_request_latency_samples_total")
	httpRequestsByRoute       = expvar.NewMap("http_requests_by_route")
	httpRequestErrorsByRoute  = expvar.NewMap("http_request_errors_by_route")

	upstreamCallsTotal    = expvar.NewMap("upstream_calls_total")
	upstreamFailuresTotal = expvar.NewMap("upstream_failures_total")
	symbolsServedTotal    = expvar.NewInt("symbols_served_total")
	symbolsFailedTotal    = expvar.NewInt("symbols_failed_total")

	shellCacheHitsTotal       = expvar.NewInt("shell_cache_hits_total")
	shellCacheMissesTotal     = expvar.NewInt("shell_cache_misses_total")
	shellNetworkFailuresTotal = expvar.NewInt("shell_network_failures_total")
	shellBucketsDeletedTotal  = expvar.NewInt("shell_buckets_deleted_total")
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestMetricsMiddleware records request volume, error rate, and latency
// per chi route pattern.
func RequestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		key := strings.TrimSpace(r.Method + " " + requestRoute(r))
		httpRequestsTotal.Add(1)
		httpRequestsByRoute.Add(key, 1)

		if recorder.status >= http.StatusBadRequest {
			httpRequestsErrorsTotal.Add(1)
			httpRequestErrorsByRoute.Add(key, 1)
		}

		httpRequestLatencyMsTotal.Add(time.Since(start).Milliseconds())
		httpRequestLatencySamples.Add(1)
	})
}

func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return strings.TrimSpace(r.URL.Path)
}

// UpstreamCall counts one provider call; op is "quote" or "history".
func UpstreamCall(op string) {
	upstreamCallsTotal.Add(op, 1)
}

// UpstreamFailure counts a failed provider call by failure kind.
func UpstreamFailure(kind string) {
	upstreamFailuresTotal.Add(kind, 1)
}

func SymbolServed() { symbolsServedTotal.Add(1) }

func SymbolFailed() { symbolsFailedTotal.Add(1) }

func ShellCacheHit() { shellCacheHitsTotal.Add(1) }

func ShellCacheMiss() { shellCacheMissesTotal.Add(1) }

func ShellNetworkFailure() { shellNetworkFailuresTotal.Add(1) }

func ShellBucketsDeleted(n int) { shellBucketsDeletedTotal.Add(int64(n)) }
