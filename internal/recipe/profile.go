package recipe

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/mashph/internal/model"
)

// LoadWaterProfile reads a water profile from a TOML file.
func LoadWaterProfile(path string) (model.WaterProfile, error) {
	if strings.TrimSpace(path) == "" {
		return model.WaterProfile{}, fmt.Errorf("water profile path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return model.WaterProfile{}, fmt.Errorf("failed to stat water profile: %w", err)
	}
	var w model.WaterProfile
	md, err := toml.DecodeFile(path, &w)
	if err != nil {
		return model.WaterProfile{}, fmt.Errorf("failed to decode water profile: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return model.WaterProfile{}, fmt.Errorf("unknown water profile keys: %v", undecoded)
	}
	w.Name = strings.TrimSpace(w.Name)
	if err := w.Validate(); err != nil {
		return model.WaterProfile{}, err
	}
	return w, nil
}
