package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"docnest/internal/bootstrap"
	"docnest/internal/config"
	"docnest/internal/httpserver"
	"docnest/internal/repository"
	"docnest/pkg/logger"
	"docnest/pkg/otel"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.NewLoggerForEnv(cfg.App.Env)
	defer log.Sync()

	log.Info("Starting reminder worker...",
		zap.String("env", cfg.App.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.Duration("scan_interval", cfg.Reminders.ScanInterval()),
		zap.Ints("days_before", cfg.Reminders.DaysBefore),
		zap.Strings("channels", cfg.Notifier.Channels),
	)

	shutdownTracing, err := otel.Init(cfg.Otel, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	stores, err := repository.Open(ctx, cfg.Storage, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer stores.Close()
	log.Info("Store ready", zap.String("driver", stores.Driver))

	// Notifier chain (MQ publisher and Redis only when configured)
	notifier, err := bootstrap.OpenNotifier(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init notifier", zap.Error(err))
	}
	defer notifier.Close()

	// Engine + scheduler
	engine := bootstrap.NewEngine(cfg.Reminders, stores.Reminders, notifier, log)
	scheduler := bootstrap.NewScheduler(cfg.Reminders, engine, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start reminder scheduler", zap.Error(err))
	}

	// HTTP server for probes, status and metrics
	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := ":" + strings.TrimPrefix(cfg.Health.Port, ":")
	srv := &http.Server{
		Addr:    addr,
		Handler: httpserver.NewHealthRouter(stores, scheduler),
	}
	go func() {
		log.Info("Health server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Health server failed", zap.Error(err))
		}
	}()

	log.Info("Reminder worker is running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down reminder worker gracefully...")

	// Stop waits for an in-flight tick to finish.
	scheduler.Stop()
	log.Info("Reminder scheduler stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Health server shutdown error", zap.Error(err))
	}

	log.Info("Reminder worker shutdown complete")
}
