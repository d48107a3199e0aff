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
	"docnest/internal/handler"
	"docnest/internal/httpserver"
	"docnest/internal/repository"
	"docnest/internal/service"
	"docnest/pkg/filestore"
	"docnest/pkg/logger"
	"docnest/pkg/otel"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.NewLoggerForEnv(cfg.App.Env)
	defer log.Sync()

	log.Info("Starting DocNest API...",
		zap.String("env", cfg.App.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("port", cfg.Server.Port),
		zap.Bool("dev_mode", cfg.DevMode()),
	)

	shutdownTracing, err := otel.Init(cfg.Otel, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	ctx := context.Background()

	// Store
	stores, err := repository.Open(ctx, cfg.Storage, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer stores.Close()

	files, err := filestore.NewLocalStore(cfg.FileStore.RootPath)
	if err != nil {
		log.Fatal("Failed to open file store", zap.Error(err))
	}
	log.Info("File store ready", zap.String("root", files.Root()))

	// Demo data
	var resetter handler.DemoResetter
	if cfg.Demo.Enabled {
		seeder := bootstrap.NewSeeder(cfg, stores, files, log)
		if _, err := seeder.SeedIfNeeded(ctx); err != nil {
			log.Fatal("Demo seeding failed", zap.Error(err))
		}
		resetter = seeder
	}
	devHandler := handler.NewDevHandler(resetter, cfg.App.Env, cfg.Demo.Enabled, log)

	// Services + handlers
	documentService := service.NewDocumentService(stores.Documents, files, cfg.DemoSubjectID(), log)
	documentHandler := handler.NewDocumentHandler(documentService, log)

	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		JWTSecret: cfg.JWT.Secret,
		DevUserID: cfg.DemoUserID(),
	}, documentHandler, devHandler, stores, log)

	addr := ":" + strings.TrimPrefix(cfg.Server.Port, ":")
	srv := &http.Server{
		Addr:    addr,
		Handler: router.Engine,
	}
	go func() {
		log.Info("HTTP server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("DocNest API is running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down DocNest API gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("DocNest API shutdown complete")
}
