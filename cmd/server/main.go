package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-converter/internal/config"
	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/httpapi"
	"github.com/tendant/simple-converter/internal/logging"
	"github.com/tendant/simple-converter/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "load config", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	pipeline, err := convert.New(convert.OptionsFromConfig(cfg), logger)
	if err != nil {
		fatal(logger, "create pipeline", err)
	}
	defer pipeline.Close()

	m := metrics.New()
	app := httpapi.NewApp(logger, pipeline, m, httpapi.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxSourceBytes: cfg.MaxSourceBytes,
		BatchTimeout:   cfg.BatchTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.StartCleanupLoop(ctx, cfg.BatchTTL/4, cfg.BatchTTL)

	// load the optional backends in the background so the first
	// request does not pay for it
	go pipeline.Warmup(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server failed", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Warn("batches still running at shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
