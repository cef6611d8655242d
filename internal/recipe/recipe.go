// Package recipe loads recipe snapshots and derives mash totals.
package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/mashph/internal/model"
)

// Load reads a recipe snapshot from a TOML file.
func Load(path string) (model.Recipe, error) {
	if strings.TrimSpace(path) == "" {
		return model.Recipe{}, fmt.Errorf("recipe path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return model.Recipe{}, fmt.Errorf("failed to stat recipe: %w", err)
	}
	var r model.Recipe
	md, err := toml.DecodeFile(path, &r)
	if err != nil {
		return model.Recipe{}, fmt.Errorf("failed to decode recipe: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return model.Recipe{}, fmt.Errorf("unknown recipe keys: %v", undecoded)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := Validate(r); err != nil {
		return model.Recipe{}, err
	}
	return r, nil
}

// Validate checks a recipe snapshot's value ranges.
func Validate(r model.Recipe) error {
	if len(r.Fermentables) > 0 && !(r.OG > 1) {
		return fmt.Errorf("recipe %q: og must be > 1.000", r.Name)
	}
	if r.ColorSRM < 0 {
		return fmt.Errorf("recipe %q: color-srm must be >= 0", r.Name)
	}
	for i, f := range r.Fermentables {
		if f.AmountKg < 0 {
			return fmt.Errorf("recipe %q: fermentable %d amount-kg must be >= 0", r.Name, i+1)
		}
		if f.ColorSRM < 0 {
			return fmt.Errorf("recipe %q: fermentable %d color-srm must be >= 0", r.Name, i+1)
		}
	}
	if r.Mash != nil {
		if r.Mash.InfusionL < 0 || r.Mash.SpargeL < 0 {
			return fmt.Errorf("recipe %q: mash volumes must be >= 0", r.Name)
		}
	}
	return nil
}

// Geometry derives the mash totals the chemistry models need. A recipe
// without a mash yields zero volumes; zero grain yields zero colour and
// thickness.
func Geometry(r model.Recipe) model.MashGeometry {
	var g model.MashGeometry
	if r.Mash != nil {
		g.TotalInfusionL = r.Mash.InfusionL
		g.TotalSpargeL = r.Mash.SpargeL
		g.TotalMashWaterL = r.Mash.InfusionL + r.Mash.SpargeL
	}
	for _, f := range r.Fermentables {
		g.TotalGrainKg += f.AmountKg
	}
	if g.TotalGrainKg <= 0 {
		return g
	}
	for _, f := range r.Fermentables {
		g.WeightedGrainColor += (f.AmountKg / g.TotalGrainKg) * Lovibond(f.ColorSRM)
	}
	g.Thickness = g.TotalInfusionL / g.TotalGrainKg
	return g
}

// Lovibond converts an SRM colour to degrees Lovibond.
func Lovibond(srm float64) float64 {
	return (srm + 0.6) / 1.35
}

// HasMash reports whether the recipe carries a mash with at least one step.
func HasMash(r model.Recipe) bool {
	return r.Mash != nil && r.Mash.Steps > 0
}

// SGToPlato converts specific gravity to degrees Plato.
func SGToPlato(sg float64) float64 {
	return -616.868 + 1111.14*sg - 630.272*sg*sg + 135.997*sg*sg*sg
}
