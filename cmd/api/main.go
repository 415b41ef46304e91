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

	"brain2-canvas/internal/config"
	"brain2-canvas/internal/di"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	loader := config.FromEnvironment()
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	logger.Info("Configuration loaded",
		zap.Strings("sources", cfg.LoadedFrom),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("auth", cfg.Auth.Enabled),
	)

	// Hot reload only touches the log level; everything else needs a restart.
	watcher, err := config.NewWatcher(loader, cfg, logger)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Close()
		watcher.OnChange(func(next *config.Config) {
			level := di.ParseLevel(next.Logging.Level)
			if level != container.LogLevel.Level() {
				container.LogLevel.SetLevel(level)
				logger.Info("Log level changed", zap.String("level", level.String()))
			}
		})
	}

	// Keep-alives and connection teardown
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		container.Hub.Run(ctx)
	}()

	srv := container.Server
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.String("environment", string(cfg.Environment)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serveErr:
		logger.Error("Server failed", zap.Error(err))
		stop()
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	<-hubDone

	logger.Info("Server stopped")
}
