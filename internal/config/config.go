// Package config defines service configuration structures and loading rules.
//
// Conventions:
// - Defaults live in New; Load layers an optional YAML file and env vars on top.
// - External errors must be wrapped via this package's sentinel kinds.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// AdminKey is the shared operator credential. The default is a
	// placeholder and the server warns loudly when it is left in place.
	AdminKey string `koanf:"admin_key"`

	// Store selects the persistence backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the postgres connection string. Required when
	// Store is postgres, ignored otherwise.
	DatabaseURL string `koanf:"database_url"`

	// DatabaseMaxConns caps the postgres connection pool.
	DatabaseMaxConns int `koanf:"database_max_conns"`

	// StartingBalance is the balance handed to every new team.
	StartingBalance float64 `koanf:"starting_balance"`

	// AllowedOrigins lists CORS origins. "*" allows everyone.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// WSSendBuffer bounds the per-viewer outbound message queue.
	WSSendBuffer int `koanf:"ws_send_buffer"`

	// WSBroadcastBuffer bounds the hub's inbound event queue.
	WSBroadcastBuffer int `koanf:"ws_broadcast_buffer"`
}

// New creates a Config holding the defaults that Load layers file and
// environment values on top of.
func New() *Config {
	c := &Config{
		LogLevel:          "info",
		Addr:              ":8080",
		AdminKey:          "change-me",
		Store:             "memory",
		DatabaseMaxConns:  8,
		StartingBalance:   2000,
		AllowedOrigins:    []string{"*"},
		WSSendBuffer:      256,
		WSBroadcastBuffer: 1024,
	}
	return c
}
