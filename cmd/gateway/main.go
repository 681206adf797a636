// Package main is the entry point for the IndyzAI API Gateway.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/observability"
)

// Version information (set at build time).
var (
	version   = "1.0.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, level, err := initLogger(cfg, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting IndyzAI API Gateway",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("environment", cfg.Environment),
	)

	app, err := initApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", observability.Error(err))
	}

	runGateway(app, flags, level, logger)
}

// parseFlags parses command line flags. Empty log flags defer to the
// configuration.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", getEnvOrDefault("GATEWAY_CONFIG_PATH", ""),
		"Path to configuration file")
	fs.StringVar(&f.logLevel, "log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", ""),
		"Log format (json, console)")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	_ = fs.Parse(args)
	return f
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("indyz-gateway version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// logConfig merges the configured logging settings with the flags.
func logConfig(cfg *config.Config, flags cliFlags) observability.LogConfig {
	lc := observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if flags.logLevel != "" {
		lc.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		lc.Format = flags.logFormat
	}
	return lc
}

// initLogger initializes the process logger.
func initLogger(cfg *config.Config, flags cliFlags) (observability.Logger, observability.LevelController, error) {
	return observability.NewLoggerWithLevel(logConfig(cfg, flags))
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
