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

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REPSENSE_"

// knownExercises mirrors the movement families the phase package provides.
var knownExercises = map[string]bool{
	"squat":            true,
	"hinge":            true,
	"lunge":            true,
	"horizontal_press": true,
	"vertical_press":   true,
}

var knownWearables = map[string]bool{
	"unavailable":             true,
	"paired_only":             true,
	"installed_not_reachable": true,
	"ready":                   true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if REPSENSE_CONFIG is set
//  3. env (prefix REPSENSE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// REPSENSE_TICK_HZ -> tick_hz. Underscores are preserved to match the
	// flat koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TickHz <= 0:
		return fmt.Errorf("%w: tick_hz must be positive", ErrInvalidConfig)
	case !knownExercises[c.Exercise]:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownExercise, c.Exercise)
	case c.MaxSkewTicks <= 0:
		return fmt.Errorf("%w: max_skew_ticks must be positive", ErrInvalidConfig)
	case c.LowConfidence < 0 || c.LowConfidence > 1:
		return fmt.Errorf("%w: low_confidence must be within [0,1]", ErrInvalidConfig)
	case !knownWearables[c.Wearable]:
		return fmt.Errorf("%w: unknown wearable state %q", ErrInvalidConfig, c.Wearable)
	}
	return nil
}
