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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/repograder/internal/api"
	"github.com/kiranshivaraju/repograder/internal/api/handler"
	mw "github.com/kiranshivaraju/repograder/internal/api/middleware"
	"github.com/kiranshivaraju/repograder/internal/config"
	"github.com/kiranshivaraju/repograder/internal/observability"
)

const shutdownTimeout = 30 * time.Second

var serveSkipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the evaluation worker",
	Long: "Starts the staff API and a single in-process worker that drains the evaluation " +
		"queue. Both stop gracefully on SIGINT or SIGTERM.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrations, "skip-migrations", false, "Do not apply database migrations on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	// Fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry, cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, !serveSkipMigrations)
	if err != nil {
		return err
	}
	defer a.Close()

	router := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(cfg.Auth.StaffTokenHash),
		RateLimit: mw.NewRateLimit(a.cache, cfg.Auth.RateLimitPerMinute),

		HealthHandler:        handler.NewHealthHandler(a.store, a.cache),
		EnqueueHandler:       handler.NewEnqueueHandler(a.store, a.queue),
		QueueStatusHandler:   handler.NewQueueStatusHandler(a.queue),
		GetEvaluationHandler: handler.NewGetEvaluationHandler(a.store),
		StatusHandler:        handler.NewStatusHandler(a.store, a.cache, a.queue),
		CheckAccessHandler:   handler.NewCheckAccessHandler(a.analyzer),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}
