// Package config provides configuration types and loading for the gateway.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (with ${VAR} and ${VAR:-default} expansion), then well-known environment
// variables such as PORT, JWT_SECRET and RATE_LIMIT_MAX_REQUESTS.
//
//	cfg, err := config.Load("configs/gateway.yaml")
//
// A Watcher reloads the file on change and hands the new configuration to
// a callback; the gateway applies the hot-reloadable subset (log level).
package config
