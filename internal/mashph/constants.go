// Package mashph predicts mash pH from grist colour, water ions and acid
// additions, following Kai Troester's colour-to-pH model.
package mashph

import "github.com/creasty/defaults"

// Constants is the immutable table of empirical values used by the Predictor.
type Constants struct {
	// MEq is the grist buffering reference, in mEq per kg per pH.
	MEq float64 `default:"50.0"`

	CaGramsPerMole     float64 `default:"40.0"`
	MgGramsPerMole     float64 `default:"24.30"`
	HCO3GramsPerMole   float64 `default:"61.01"`
	H3PO4GramsPerMole  float64 `default:"98"`
	LacticGramsPerMole float64 `default:"90"`

	// ColorlessWortPH is the distilled water mash pH of a colourless grist.
	ColorlessWortPH float64 `default:"5.6"`
	PHSlopeLight    float64 `default:"0.21"`
	PHSlopeDark     float64 `default:"0.06"`

	// Kohlbach divisors for calcium and magnesium.
	KohlbachCa float64 `default:"3.5"`
	KohlbachMg float64 `default:"7"`

	// Specialty malts darker than DarkMaltSRM are capped at DarkMaltLovibond.
	DarkMaltSRM      float64 `default:"120"`
	DarkMaltLovibond float64 `default:"19.0"`

	// BaseMaltDiastaticPower is the Lintner value below which a
	// fermentable counts as crystal or roasted malt.
	BaseMaltDiastaticPower float64 `default:"1"`

	// SaltHCO3Divisor scales bicarbonate added by salts.
	SaltHCO3Divisor float64 `default:"61"`
}

// DefaultConstants returns the published constant table.
func DefaultConstants() Constants {
	var c Constants
	defaults.MustSet(&c)
	return c
}
