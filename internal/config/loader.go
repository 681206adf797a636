package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LookupEnvFunc resolves an environment variable.
type LookupEnvFunc func(key string) (string, bool)

// Loader builds a Config from defaults, an optional YAML file and the
// process environment, in that order of precedence.
type Loader struct {
	lookupEnv LookupEnvFunc
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(fn LookupEnvFunc) LoaderOption {
	return func(l *Loader) {
		l.lookupEnv = fn
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration using the process environment. An empty path
// skips the file layer.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Load loads, overrides and validates the configuration.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
		}
		data, err := os.ReadFile(absPath) //nolint:gosec // operator supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := l.decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, l.lookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of the defaults without
// applying environment overrides.
func (l *Loader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := l.decode(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) decode(data []byte, cfg *Config) error {
	content := l.substituteEnvVars(string(data))
	return yaml.Unmarshal([]byte(content), cfg)
}

// substituteEnvVars expands ${VAR} and ${VAR:-default} references.
func (l *Loader) substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if value, ok := l.lookupEnv(parts[1]); ok && value != "" {
			return value
		}
		return parts[2]
	})
}
