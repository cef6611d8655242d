package mashph

import (
	"github.com/verte-zerg/mashph/internal/model"
	"github.com/verte-zerg/mashph/internal/recipe"
	"github.com/verte-zerg/mashph/internal/water"
)

// Ledger is the part of the salt ledger the predictor reads.
type Ledger interface {
	TotalIon(ion model.Ion) float64
	TotalAcidWeight(kind model.SaltKind) float64
}

// Input is everything one prediction depends on.
type Input struct {
	Recipe   model.Recipe
	Geometry model.MashGeometry
	Blend    water.Blend
	Ledger   Ledger
}

// Prediction holds the three pH components and their sum.
type Prediction struct {
	GristPH     float64 `json:"grist_ph"`
	StrikeDelta float64 `json:"strike_ph_delta"`
	AcidDelta   float64 `json:"acid_ph_delta"`
	MashPH      float64 `json:"mash_ph"`
	// NoData is set when the recipe has no fermentables; MashPH is then 0.
	NoData bool `json:"no_data,omitempty"`
}

// Predictor computes mash pH with a fixed constant table.
type Predictor struct {
	c Constants
	// legacyGristColor keeps only the last specialty malt's colour share
	// instead of summing them.
	legacyGristColor bool
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithLegacyGristColor makes only the last specialty malt count towards the
// grist colour ratio, matching older calculators.
func WithLegacyGristColor(enabled bool) Option {
	return func(p *Predictor) {
		p.legacyGristColor = enabled
	}
}

// New returns a Predictor using c.
func New(c Constants, opts ...Option) *Predictor {
	p := &Predictor{c: c}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Constants returns the predictor's constant table.
func (p *Predictor) Constants() Constants {
	return p.c
}

// Predict sums the grist, strike and acid components. With no fermentables
// it returns a zero pH flagged NoData.
func (p *Predictor) Predict(in Input) Prediction {
	if len(in.Recipe.Fermentables) == 0 {
		return Prediction{NoData: true}
	}
	out := Prediction{
		GristPH:     p.GristPH(in.Recipe, in.Geometry),
		StrikeDelta: p.StrikeDelta(in.Blend, in.Ledger, in.Geometry),
		AcidDelta:   p.AcidDelta(in.Ledger, in.Geometry),
	}
	out.MashPH = out.GristPH + out.StrikeDelta - out.AcidDelta
	return out
}

// GristPH is the distilled water mash pH estimated from grist colour.
func (p *Predictor) GristPH(r model.Recipe, g model.MashGeometry) float64 {
	ph := p.c.ColorlessWortPH
	if len(r.Fermentables) == 0 || !(g.TotalGrainKg > 0) {
		return ph
	}
	plato := recipe.SGToPlato(r.OG)
	if !(plato > 0) {
		return ph
	}
	platoRatio := 1 / plato

	colorFromGrain := 0.0
	for _, f := range r.Fermentables {
		if f.DiastaticPower >= p.c.BaseMaltDiastaticPower {
			continue
		}
		lovi := p.c.DarkMaltLovibond
		if f.ColorSRM <= p.c.DarkMaltSRM {
			lovi = recipe.Lovibond(f.ColorSRM)
		}
		share := (f.AmountKg / g.TotalGrainKg) * lovi
		if p.legacyGristColor {
			colorFromGrain = share
		} else {
			colorFromGrain += share
		}
	}

	colorRatio := 0.0
	if g.WeightedGrainColor > 0 {
		colorRatio = colorFromGrain / g.WeightedGrainColor
	}
	adjustment := platoRatio * (p.c.PHSlopeLight*(1-colorRatio) + p.c.PHSlopeDark*colorRatio) * r.ColorSRM
	return ph - adjustment
}

// StrikeDelta is the pH shift caused by calcium, magnesium, salt bicarbonate
// and residual alkalinity of the strike water. A zero thickness yields 0.
func (p *Predictor) StrikeDelta(b water.Blend, l Ledger, g model.MashGeometry) float64 {
	if g.Thickness == 0 {
		return 0
	}
	caMEq := b.Ions.Get(model.IonCa) / p.c.CaGramsPerMole * 2
	mgMEq := b.Ions.Get(model.IonMg) / p.c.MgGramsPerMole * 2
	// Base water HCO3 is already part of the residual alkalinity.
	hco3MEq := 0.0
	if l != nil {
		hco3MEq = l.TotalIon(model.IonHCO3) / p.c.HCO3GramsPerMole
	}
	totalDelta := (b.ResidualAlkalinity - caMEq/p.c.KohlbachCa - mgMEq/p.c.KohlbachMg + hco3MEq/p.c.SaltHCO3Divisor) * g.TotalInfusionL
	return totalDelta / g.Thickness / p.c.MEq
}

// AcidDelta is the pH drop caused by lactic acid, acid malt and phosphoric
// acid. A zero thickness yields 0.
func (p *Predictor) AcidDelta(l Ledger, g model.MashGeometry) float64 {
	if l == nil || g.Thickness == 0 {
		return 0
	}
	totalDelta := 0.0
	lactic := l.TotalAcidWeight(model.Lactic) + l.TotalAcidWeight(model.AcidMalt)
	if lactic > 0 {
		totalDelta += 1000 * lactic / p.c.LacticGramsPerMole
	}
	if h3po4 := l.TotalAcidWeight(model.H3PO4); h3po4 > 0 {
		totalDelta += 1000 * h3po4 / p.c.H3PO4GramsPerMole
	}
	return totalDelta / p.c.MEq / g.Thickness
}
