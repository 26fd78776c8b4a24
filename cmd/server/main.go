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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	_ "github.com/JonMunkholm/tabx/internal/codec/all" // Register all codecs
	"github.com/JonMunkholm/tabx/internal/config"
	"github.com/JonMunkholm/tabx/internal/core"
	"github.com/JonMunkholm/tabx/internal/logging"
	"github.com/JonMunkholm/tabx/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Values in .env take precedence over the process environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting", "config", cfg.String(),
		"export_codecs", len(core.ExportFormats()),
		"import_codecs", len(core.ImportFormats()),
	)

	jobs, err := web.NewJobStore(web.JobStoreConfig{
		Dir:           cfg.Jobs.Dir,
		ResultTTL:     cfg.Jobs.ResultTTL,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		MaxWaitTime:   cfg.Jobs.MaxWaitTime,
	})
	if err != nil {
		return fmt.Errorf("job store: %w", err)
	}
	server := web.NewServer(cfg, jobs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		jobs.Run(ctx, sweepInterval(cfg.Jobs.ResultTTL))
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop taking requests before stopping the exports they queued.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown", "error", err)
		}
		if active := jobs.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for jobs to stop", "active", active)
		}
		if err := jobs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("jobs did not stop in time", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// sweepInterval checks for expired results a few times per TTL, at most once
// a minute.
func sweepInterval(ttl time.Duration) time.Duration {
	return max(ttl/4, time.Minute)
}
