package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stocktool/internal/aggregate"
	"stocktool/internal/config"
	"stocktool/internal/httpx"
	"stocktool/internal/logging"
	"stocktool/internal/provider/factory"
	"stocktool/internal/shellcache"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	undo, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer undo()

	if err := run(cfg); err != nil {
		zap.L().Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config) error {
	if err := cfg.Quotes.Validate(); err != nil {
		return err
	}
	if err := cfg.Shell.Validate(); err != nil {
		return err
	}

	p, err := factory.NewFromConfig(cfg.Quotes)
	if err != nil {
		return err
	}
	agg := aggregate.New(cfg.Quotes, p)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var shell http.Handler
	if cfg.Shell.Enabled {
		store, err := shellcache.NewStorage(cfg.Shell)
		if err != nil {
			return err
		}
		defer store.Close()

		worker, err := shellcache.New(cfg.Shell, store, httpx.New(cfg.Server.RequestTimeout()),
			shellcache.WithFetchTimeout(cfg.Server.RequestTimeout()))
		if err != nil {
			return err
		}
		// A worker that fails to install stays redundant and proxies to the origin.
		if cfg.Shell.SkipWaiting {
			err = worker.Start(ctx)
		} else if err = worker.Install(ctx); err == nil {
			go activateOnHangup(ctx, worker)
		}
		if err != nil {
			zap.L().Warn("shell cache not installed", zap.Error(err))
		}
		shell = worker
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(cfg.Server, agg.Handler(), shell),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("provider", p.Name()),
			zap.Strings("symbols", cfg.Quotes.Symbols),
			zap.Bool("shell", shell != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// activateOnHangup keeps an installed worker waiting until SIGHUP, the way a
// browser worker waits for the old clients to go away.
func activateOnHangup(ctx context.Context, worker *shellcache.Worker) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	zap.L().Info("shell cache installed, send SIGHUP to activate", zap.String("cache", worker.CacheName()))
	select {
	case <-ctx.Done():
	case <-hup:
		if err := worker.Activate(ctx); err != nil {
			zap.L().Warn("shell cache activation failed", zap.Error(err))
			return
		}
		zap.L().Info("shell cache activated", zap.String("cache", worker.CacheName()))
	}
}
