package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"pollster/internal/platform/config"
	"pollster/internal/platform/logger"
	httptransport "pollster/internal/transport/http"
	"pollster/internal/workers/cleanup"
)

const shutdownTimeout = 10 * time.Second

// main wires the guards, stores and handlers, then runs the HTTP server and
// the cleanup workers until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	log.Info("initializing pollster",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"redis", cfg.Redis.URL != "",
		"database", cfg.DatabaseURL != "",
	)

	infra, err := newInfra(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer infra.Close()

	app, err := newApp(cfg, log, reg, infra)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httptransport.NewRouter(app.deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      httptransport.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	for _, w := range app.workers {
		g.Go(func() error {
			return ignoreCanceled(w.Start(gctx))
		})
	}

	if infra.redis != nil {
		g.Go(func() error {
			return ignoreCanceled(poolStatsLoop(gctx, infra.redis.RecordPoolStats))
		})
	}

	return g.Wait()
}

func poolStatsLoop(ctx context.Context, record func()) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			record()
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// application is everything the server runs.
type application struct {
	deps    httptransport.Deps
	workers []*cleanup.Worker
}
