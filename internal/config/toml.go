// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Water     WaterConfig     `toml:"water"`
	Chemistry ChemistryConfig `toml:"chemistry"`
	Log       LogConfig       `toml:"log"`
	Store     StoreConfig     `toml:"store"`
}

// WaterConfig maps default water selection settings.
type WaterConfig struct {
	MashRO   *float64 `toml:"mash-ro"`
	SpargeRO *float64 `toml:"sparge-ro"`
	Base     *string  `toml:"base"`
	Target   *string  `toml:"target"`
}

// ChemistryConfig maps predictor and report settings.
type ChemistryConfig struct {
	LegacyGristColor *bool    `toml:"legacy-grist-color"`
	PHLow            *float64 `toml:"ph-low"`
	PHHigh           *float64 `toml:"ph-high"`
	TargetTolerance  *float64 `toml:"target-tolerance"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	Path  *string `toml:"path"`
}

// StoreConfig maps database settings.
type StoreConfig struct {
	DB *string `toml:"db"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg, nil
}
