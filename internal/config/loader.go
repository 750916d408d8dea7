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
//  1. defaults (New())
//  2. file (YAML) if AFFINITY_CONFIG is set
//  3. env (prefix AFFINITY_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("AFFINITY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: AFFINITY_ADDR, AFFINITY_EMA_ALPHA, ...
	// Map env keys like AFFINITY_EMA_ALPHA -> ema_alpha (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("AFFINITY_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "affinity_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the pipeline cannot run with.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.EMAAlpha <= 0 || c.EMAAlpha > 1:
		return fmt.Errorf("%w: ema_alpha must be in (0,1], got %v", ErrInvalidConfig, c.EMAAlpha)
	case c.AggregateMode != "sum" && c.AggregateMode != "average":
		return fmt.Errorf("%w: aggregate_mode must be sum or average, got %q", ErrInvalidConfig, c.AggregateMode)
	case c.AuthEnabled && c.JWTSecret == "":
		return fmt.Errorf("%w: jwt_secret required when auth_enabled", ErrInvalidConfig)
	}
	for activity, w := range c.EventWeights {
		if w < 0 {
			return fmt.Errorf("%w: event weight for %s must be non-negative", ErrInvalidConfig, activity)
		}
	}
	return nil
}
