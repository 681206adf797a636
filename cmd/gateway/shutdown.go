package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/observability"
)

// runGateway runs the gateway and handles shutdown.
func runGateway(app *application, flags cliFlags, level observability.LevelController, logger observability.Logger) {
	if err := app.gateway.Start(context.Background()); err != nil {
		logger.Fatal("failed to start gateway", observability.Error(err))
	}

	watcher := startConfigWatcher(&reloader{app: app, flags: flags, level: level, logger: logger}, flags.configPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdown(app, watcher, logger)
}

// shutdown stops the watcher, drains the gateway and flushes traces.
func shutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.gateway.Stop(ctx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("IndyzAI API Gateway stopped")
}
