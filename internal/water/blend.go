// Package water blends base water, RO dilution and salt additions into mash
// water ion concentrations.
package water

import (
	"errors"

	"github.com/verte-zerg/mashph/internal/model"
)

// ErrDegenerateInput is returned when there is no mash water to dilute into.
var ErrDegenerateInput = errors.New("total mash water must be > 0")

// hco3PerCaCO3 converts alkalinity expressed as CaCO3 to HCO3.
const hco3PerCaCO3 = 1.22

// Input is everything the blend depends on.
type Input struct {
	Geometry model.MashGeometry
	// Base is nil when no base profile is selected.
	Base     *model.WaterProfile
	MashRO   float64
	SpargeRO float64
	// SaltIons are ledger totals in mg per ion.
	SaltIons model.IonValues
}

// Blend is the computed mash water.
type Blend struct {
	Ions               model.IonValues `json:"ions_ppm"`
	Modifier           float64         `json:"ro_modifier"`
	ResidualAlkalinity float64         `json:"residual_alkalinity"`
	HasBase            bool            `json:"has_base"`
}

// Compute blends the input into per-ion ppm for the whole mash water volume.
func Compute(in Input) (Blend, error) {
	total := in.Geometry.TotalMashWaterL
	if !(total > 0) {
		return Blend{}, ErrDegenerateInput
	}
	out := Blend{HasBase: in.Base != nil}
	if in.Base != nil {
		out.Modifier = ROModifier(in.MashRO, in.SpargeRO, in.Geometry)
	}
	for _, ion := range model.AllIons {
		ppm := in.SaltIons.Get(ion) / total
		if in.Base != nil {
			ppm += out.Modifier * in.Base.PPM(ion)
		}
		out.Ions[ion] = ppm
	}
	out.ResidualAlkalinity = ResidualAlkalinity(in.Base)
	return out, nil
}

// ROModifier is the fraction of the mash water still carrying base water ions
// after RO replacement. A zero total returns 1 (no dilution).
func ROModifier(mashRO, spargeRO float64, g model.MashGeometry) float64 {
	if !(g.TotalMashWaterL > 0) {
		return 1
	}
	return 1 - (mashRO*g.TotalInfusionL+spargeRO*g.TotalSpargeL)/g.TotalMashWaterL
}

// ResidualAlkalinity returns the base water's residual alkalinity in mEq/L.
// Without a base profile it is 0.
func ResidualAlkalinity(base *model.WaterProfile) float64 {
	if base == nil {
		return 0
	}
	alk := (1 - base.MashRO) * base.Alkalinity
	if !base.AlkalinityAsHCO3 {
		alk *= hco3PerCaCO3
	}
	return alk / 61
}
