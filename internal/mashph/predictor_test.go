package mashph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/mashph/internal/model"
	"github.com/verte-zerg/mashph/internal/recipe"
	"github.com/verte-zerg/mashph/internal/salts"
	"github.com/verte-zerg/mashph/internal/water"
)

func paleAle() model.Recipe {
	return model.Recipe{
		Name:     "pale",
		OG:       1.050,
		ColorSRM: 8,
		Mash:     &model.Mash{InfusionL: 16, SpargeL: 14, Steps: 1},
		Fermentables: []model.Fermentable{
			{Name: "Pale", AmountKg: 4.5, ColorSRM: 3, DiastaticPower: 100},
			{Name: "Crystal 60", AmountKg: 0.3, ColorSRM: 60, DiastaticPower: 0},
			{Name: "Chocolate", AmountKg: 0.2, ColorSRM: 350, DiastaticPower: 0},
		},
	}
}

func ledger(t *testing.T, additions ...model.SaltAddition) *salts.Ledger {
	t.Helper()
	l, err := salts.NewLedger(additions)
	require.NoError(t, err)
	return l
}

func predict(t *testing.T, p *Predictor, r model.Recipe, base *model.WaterProfile, l *salts.Ledger) Prediction {
	t.Helper()
	g := recipe.Geometry(r)
	b, err := water.Compute(water.Input{Geometry: g, Base: base, SaltIons: l.TotalIons()})
	require.NoError(t, err)
	return p.Predict(Input{Recipe: r, Geometry: g, Blend: b, Ledger: l})
}

func TestDefaultConstants(t *testing.T) {
	c := DefaultConstants()
	assert.Equal(t, 50.0, c.MEq)
	assert.Equal(t, 40.0, c.CaGramsPerMole)
	assert.Equal(t, 24.30, c.MgGramsPerMole)
	assert.Equal(t, 61.01, c.HCO3GramsPerMole)
	assert.Equal(t, 98.0, c.H3PO4GramsPerMole)
	assert.Equal(t, 90.0, c.LacticGramsPerMole)
	assert.Equal(t, 5.6, c.ColorlessWortPH)
	assert.Equal(t, 0.21, c.PHSlopeLight)
	assert.Equal(t, 0.06, c.PHSlopeDark)
	assert.Equal(t, 3.5, c.KohlbachCa)
	assert.Equal(t, 7.0, c.KohlbachMg)
}

func TestPredictWithoutFermentablesIsNoData(t *testing.T) {
	p := New(DefaultConstants())
	r := paleAle()
	r.Fermentables = nil
	l := ledger(t, model.SaltAddition{Kind: model.H3PO4, AmountG: 3})
	got := p.Predict(Input{Recipe: r, Geometry: recipe.Geometry(r), Ledger: l})
	assert.True(t, got.NoData)
	assert.Equal(t, 0.0, got.MashPH)
}

func TestGristPHBaseMaltOnly(t *testing.T) {
	p := New(DefaultConstants())
	r := model.Recipe{
		OG:           1.040,
		ColorSRM:     4,
		Fermentables: []model.Fermentable{{AmountKg: 5, ColorSRM: 2, DiastaticPower: 120}},
	}
	want := 5.6 - (1/recipe.SGToPlato(1.040))*0.21*4
	assert.InDelta(t, want, p.GristPH(r, recipe.Geometry(r)), 1e-12)
}

func TestGristPHWithoutGrainIsBaseline(t *testing.T) {
	p := New(DefaultConstants())
	r := model.Recipe{OG: 1.05, ColorSRM: 10, Fermentables: []model.Fermentable{{AmountKg: 0, ColorSRM: 3}}}
	assert.Equal(t, 5.6, p.GristPH(r, recipe.Geometry(r)))
}

func TestGristPHColourAccumulation(t *testing.T) {
	r := paleAle()
	g := recipe.Geometry(r)
	platoRatio := 1 / recipe.SGToPlato(r.OG)
	crystal := (0.3 / 5.0) * recipe.Lovibond(60)
	chocolate := (0.2 / 5.0) * 19.0

	expect := func(colorFromGrain float64) float64 {
		ratio := colorFromGrain / g.WeightedGrainColor
		return 5.6 - platoRatio*(0.21*(1-ratio)+0.06*ratio)*r.ColorSRM
	}

	summed := New(DefaultConstants()).GristPH(r, g)
	assert.InDelta(t, expect(crystal+chocolate), summed, 1e-12)

	legacy := New(DefaultConstants(), WithLegacyGristColor(true)).GristPH(r, g)
	assert.InDelta(t, expect(chocolate), legacy, 1e-12)
	assert.NotEqual(t, summed, legacy)
}

func TestStrikeDeltaFormula(t *testing.T) {
	p := New(DefaultConstants())
	g := model.MashGeometry{TotalInfusionL: 16, TotalSpargeL: 14, TotalMashWaterL: 30, TotalGrainKg: 5, Thickness: 16.0 / 5}
	l := ledger(t, model.SaltAddition{Kind: model.NaHCO3, AmountG: 2})
	b := water.Blend{ResidualAlkalinity: 1.2}
	b.Ions[model.IonCa] = 80
	b.Ions[model.IonMg] = 12

	caMEq := 80 / 40.0 * 2
	mgMEq := 12 / 24.30 * 2
	hco3 := l.TotalIon(model.IonHCO3) / 61.01
	want := (1.2 - caMEq/3.5 - mgMEq/7 + hco3/61) * 16 / g.Thickness / 50
	assert.InDelta(t, want, p.StrikeDelta(b, l, g), 1e-12)
	assert.Zero(t, p.StrikeDelta(b, l, model.MashGeometry{TotalInfusionL: 16}))
}

func TestAcidDeltaFormula(t *testing.T) {
	p := New(DefaultConstants())
	g := model.MashGeometry{TotalInfusionL: 15, TotalGrainKg: 5, Thickness: 3}
	l := ledger(t,
		model.SaltAddition{Kind: model.Lactic, AmountG: 2},
		model.SaltAddition{Kind: model.AcidMalt, AmountG: 1},
		model.SaltAddition{Kind: model.H3PO4, AmountG: 4},
	)
	want := (1000*3.0/90 + 1000*4.0/98) / 50 / 3
	assert.InDelta(t, want, p.AcidDelta(l, g), 1e-12)
	assert.Zero(t, p.AcidDelta(ledger(t), g))
	assert.Zero(t, p.AcidDelta(l, model.MashGeometry{}))
}

func TestMoreAcidLowersPH(t *testing.T) {
	p := New(DefaultConstants())
	r := paleAle()
	prev := predict(t, p, r, nil, ledger(t)).MashPH
	for _, grams := range []float64{0.5, 1, 2, 4} {
		got := predict(t, p, r, nil, ledger(t, model.SaltAddition{Kind: model.H3PO4, AmountG: grams})).MashPH
		assert.Less(t, got, prev, "%.1f g H3PO4", grams)
		prev = got
	}
}

func acidDrop(t *testing.T, p *Predictor, r model.Recipe, acid model.SaltAddition) float64 {
	t.Helper()
	return predict(t, p, r, nil, ledger(t)).MashPH - predict(t, p, r, nil, ledger(t, acid)).MashPH
}

func TestThinnerMashAttenuatesAcid(t *testing.T) {
	p := New(DefaultConstants())
	acid := model.SaltAddition{Kind: model.H3PO4, AmountG: 2}

	// 5 kg of grain: 2 L/kg against 6 L/kg.
	thick := paleAle()
	thick.Mash = &model.Mash{InfusionL: 10, SpargeL: 20, Steps: 1}
	thin := paleAle()
	thin.Mash = &model.Mash{InfusionL: 30, SpargeL: 0, Steps: 1}

	assert.Greater(t, acidDrop(t, p, thick, acid), acidDrop(t, p, thin, acid))
	assert.Greater(t, acidDrop(t, p, thin, acid), 0.0)
}

func TestMoreGrainAmplifiesAcid(t *testing.T) {
	p := New(DefaultConstants())
	acid := model.SaltAddition{Kind: model.H3PO4, AmountG: 2}

	light := paleAle()
	heavy := paleAle()
	heavy.Fermentables = append([]model.Fermentable(nil), light.Fermentables...)
	for i := range heavy.Fermentables {
		heavy.Fermentables[i].AmountKg *= 2
	}

	// Same infusion over twice the grain halves L/kg and doubles the drop.
	assert.InDelta(t, 2*acidDrop(t, p, light, acid), acidDrop(t, p, heavy, acid), 1e-9)
}

func TestPredictSumsComponents(t *testing.T) {
	p := New(DefaultConstants())
	base := &model.WaterProfile{Name: "tap", Calcium: 40, Magnesium: 8, Bicarbonate: 120, Alkalinity: 100}
	l := ledger(t,
		model.SaltAddition{Kind: model.CaSO4, AmountG: 4},
		model.SaltAddition{Kind: model.Lactic, AmountG: 1.5},
	)
	got := predict(t, p, paleAle(), base, l)
	assert.False(t, got.NoData)
	assert.InDelta(t, got.GristPH+got.StrikeDelta-got.AcidDelta, got.MashPH, 1e-12)
	assert.Greater(t, got.MashPH, 4.5)
	assert.Less(t, got.MashPH, 6.5)
}
