package config

import (
	"context"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/sethvargo/go-envconfig"
)

// Settings are the resolved values after defaults, file, environment and
// flags have been applied.
type Settings struct {
	MashRO           float64 `default:"0"`
	SpargeRO         float64 `default:"0"`
	Base             string
	Target           string
	LegacyGristColor bool    `default:"false"`
	PHLow            float64 `default:"5.2"`
	PHHigh           float64 `default:"5.5"`
	TargetTolerance  float64 `default:"0.05"`
	LogLevel         string  `default:"warn"`
	LogPath          string
	DB               string
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	var s Settings
	defaults.MustSet(&s)
	s.DB = DefaultDBPath()
	return s
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.MashRO < 0 || s.MashRO > 1 {
		return fmt.Errorf("mash-ro must be between 0 and 1")
	}
	if s.SpargeRO < 0 || s.SpargeRO > 1 {
		return fmt.Errorf("sparge-ro must be between 0 and 1")
	}
	if !(s.PHLow < s.PHHigh) {
		return fmt.Errorf("ph-low must be below ph-high")
	}
	if s.TargetTolerance < 0 || s.TargetTolerance >= 1 {
		return fmt.Errorf("target-tolerance must be between 0 and 1")
	}
	if s.DB == "" {
		return fmt.Errorf("db path must not be empty")
	}
	return nil
}

// EnvConfig holds environment overrides.
type EnvConfig struct {
	DB       string `env:"MASHPH_DB"`
	LogLevel string `env:"MASHPH_LOG_LEVEL"`
	LogPath  string `env:"MASHPH_LOG_PATH"`
}

// LoadEnv reads overrides from the process environment.
func LoadEnv(ctx context.Context) (EnvConfig, error) {
	return LoadEnvWith(ctx, envconfig.OsLookuper())
}

// LoadEnvWith reads overrides through l.
func LoadEnvWith(ctx context.Context, l envconfig.Lookuper) (EnvConfig, error) {
	var env EnvConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: l,
	}); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return env, nil
}

// WithEnv returns cfg with the set environment values layered on top.
func WithEnv(cfg FileConfig, env EnvConfig) FileConfig {
	if env.DB != "" {
		v := env.DB
		cfg.Store.DB = &v
	}
	if env.LogLevel != "" {
		v := env.LogLevel
		cfg.Log.Level = &v
	}
	if env.LogPath != "" {
		v := env.LogPath
		cfg.Log.Path = &v
	}
	return cfg
}
