package telemetry

import (
	"expvar"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRequestMetricsMiddleware_CountsByRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(RequestMetricsMiddleware)
	router.Get("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	before := httpRequestsTotal.Value()
	errorsBefore := httpRequestsErrorsTotal.Value()

	for _, path := range []string{"/api/quotes", "/api/quotes", "/fail"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, before+3, httpRequestsTotal.Value())
	require.Equal(t, errorsBefore+1, httpRequestsErrorsTotal.Value())

	byRoute, ok := httpRequestsByRoute.Get("GET /api/quotes").(*expvar.Int)
	require.True(t, ok)
	require.GreaterOrEqual(t, byRoute.Value(), int64(2))
}

func TestUpstreamCounters(t *testing.T) {
	UpstreamCall("quote")
	UpstreamFailure("no_data")

	calls, ok := upstreamCallsTotal.Get("quote").(*expvar.Int)
	require.True(t, ok)
	require.GreaterOrEqual(t, calls.Value(), int64(1))

	failures, ok := upstreamFailuresTotal.Get("no_data").(*expvar.Int)
	require.True(t, ok)
	require.GreaterOrEqual(t, failures.Value(), int64(1))
}
