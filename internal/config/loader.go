package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if BALLPARK_CONFIG is set
//  3. env (prefix BALLPARK_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("BALLPARK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: BALLPARK_ADDR, BALLPARK_ADMIN_KEY, ...
	// Map env keys like BALLPARK_ADMIN_KEY -> admin_key (flat keys)
	// and split list-valued keys on commas.
	envProvider := env.ProviderWithValue("BALLPARK_", ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, "ballpark_")
		if key == "allowed_origins" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.Store != "memory" && cfg.Store != "postgres":
		return fmt.Errorf("%w: store must be memory or postgres, got %q", ErrInvalidConfig, cfg.Store)
	case cfg.Store == "postgres" && cfg.DatabaseURL == "":
		return fmt.Errorf("%w: database_url is required when store is postgres", ErrInvalidConfig)
	case cfg.StartingBalance <= 0:
		return fmt.Errorf("%w: starting_balance must be positive", ErrInvalidConfig)
	}
	return nil
}
