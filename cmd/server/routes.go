package main

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stocktool/internal/config"
	"stocktool/internal/telemetry"
)

// newRouter mounts the quotes endpoint under its path and aliases. When shell
// is non-nil every other path is served through the shell cache.
func newRouter(cfg config.Server, quotes http.Handler, shell http.Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(requestLogger, recoverPanic, telemetry.RequestMetricsMiddleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/debug/vars", expvar.Handler())

	router.Group(func(r chi.Router) {
		r.Use(withCORS, withGzip, limitBody, withTimeout(cfg.RequestTimeout()))
		for _, path := range quotePaths(cfg) {
			r.Handle(path, quotes)
		}
	})

	if shell != nil {
		router.Handle("/*", shell)
	}
	return router
}

func quotePaths(cfg config.Server) []string {
	paths := make([]string, 0, 1+len(cfg.QuotesAliases))
	seen := map[string]bool{}
	for _, p := range append([]string{cfg.QuotesPath}, cfg.QuotesAliases...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		paths = append(paths, "/api/quotes")
	}
	return paths
}
