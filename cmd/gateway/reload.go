package main

import (
	"context"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/observability"
)

// reloader applies hot-reloadable settings from a changed config file.
type reloader struct {
	app    *application
	flags  cliFlags
	level  observability.LevelController
	logger observability.Logger
}

// apply updates the log level, unless pinned by a flag, and reconciles the
// service registry.
func (r *reloader) apply(cfg *config.Config) {
	if r.flags.logLevel == "" && r.level != nil && cfg.Logging.Level != r.level.Level() {
		if err := r.level.SetLevel(cfg.Logging.Level); err != nil {
			r.logger.Warn("failed to apply log level",
				observability.String("level", cfg.Logging.Level),
				observability.Error(err),
			)
		} else {
			r.logger.Info("log level changed", observability.String("level", cfg.Logging.Level))
		}
	}

	r.app.gateway.ApplyConfig(cfg)
}

// startConfigWatcher watches the config file when one was given.
func startConfigWatcher(r *reloader, configPath string) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, r.apply, config.WithLogger(r.logger))
	if err != nil {
		r.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		r.logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}
