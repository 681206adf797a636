package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/observability"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want cliFlags
	}{
		{
			name: "defaults",
			args: nil,
			want: cliFlags{},
		},
		{
			name: "all flags",
			args: []string{"-config", "gw.yaml", "-log-level", "debug", "-log-format", "console", "-version"},
			want: cliFlags{configPath: "gw.yaml", logLevel: "debug", logFormat: "console", showVersion: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GATEWAY_CONFIG_PATH", "")
			t.Setenv("GATEWAY_LOG_LEVEL", "")
			t.Setenv("GATEWAY_LOG_FORMAT", "")

			got := parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), tt.args)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlags_EnvDefaults(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG_PATH", "/etc/gateway.yaml")
	t.Setenv("GATEWAY_LOG_LEVEL", "warn")

	got := parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), nil)

	assert.Equal(t, "/etc/gateway.yaml", got.configPath)
	assert.Equal(t, "warn", got.logLevel)
}

func TestLogConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	lc := logConfig(cfg, cliFlags{})
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "json", lc.Format)

	lc = logConfig(cfg, cliFlags{logLevel: "debug", logFormat: "console"})
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "console", lc.Format)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("INDYZ_TEST_VALUE", "set")

	assert.Equal(t, "set", getEnvOrDefault("INDYZ_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("INDYZ_TEST_UNSET", "fallback"))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Environment = config.EnvTest
	cfg.Security.BcryptCost = 4
	return cfg
}

type fakeLevel struct {
	level string
	sets  int
}

func (f *fakeLevel) SetLevel(level string) error {
	f.level = level
	f.sets++
	return nil
}

func (f *fakeLevel) Level() string {
	return f.level
}

func TestReloader_Apply(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))

	app, err := initApplication(testConfig(), logger)
	require.NoError(t, err)

	level := &fakeLevel{level: "info"}
	r := &reloader{app: app, level: level, logger: logger}

	next := testConfig()
	next.Logging.Level = "debug"
	next.Services = append(next.Services, config.ServiceConfig{Name: "search", BaseURL: "http://search.internal"})
	r.apply(next)

	assert.Equal(t, "debug", level.level)
	assert.Equal(t, 1, logs.FilterMessage("log level changed").Len())
	_, err = app.gateway.Registry().Get("search")
	assert.NoError(t, err)

	r.apply(next)
	assert.Equal(t, 1, level.sets)
}

func TestReloader_Apply_PinnedLevel(t *testing.T) {
	app, err := initApplication(testConfig(), observability.NopLogger())
	require.NoError(t, err)

	level := &fakeLevel{level: "warn"}
	r := &reloader{app: app, flags: cliFlags{logLevel: "warn"}, level: level, logger: observability.NopLogger()}

	next := testConfig()
	next.Logging.Level = "debug"
	r.apply(next)

	assert.Equal(t, "warn", level.level)
	assert.Zero(t, level.sets)
}

func TestStartConfigWatcher_NoPath(t *testing.T) {
	assert.Nil(t, startConfigWatcher(&reloader{logger: observability.NopLogger()}, ""))
}

func TestInitApplication(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app, err := initApplication(testConfig(), observability.NewLoggerFromZap(zap.New(core)))

	require.NoError(t, err)
	assert.NotNil(t, app.gateway)
	assert.NotNil(t, app.tracer)
	assert.Equal(t, 3, app.gateway.Registry().Len())

	entries := logs.FilterMessage("configuration loaded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["services"])
}
