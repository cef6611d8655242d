package recipe

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/mashph/internal/model"
)

const stoutRecipe = `
og = 1.048
color-srm = 38

[mash]
infusion-l = 15
sparge-l = 12
steps = 1

[[fermentable]]
name = "Maris Otter"
amount-kg = 4.0
color-srm = 3
diastatic-power = 120

[[fermentable]]
name = "Roasted Barley"
amount-kg = 0.5
color-srm = 300
diastatic-power = 0

[[salt]]
kind = "CaCl2"
amount-g = 3
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadRecipe(t *testing.T) {
	path := writeFile(t, "dry-stout.toml", stoutRecipe)
	r, err := Load(path)
	if err != nil {
		t.Fatalf("load recipe: %v", err)
	}
	if r.Name != "dry-stout" {
		t.Fatalf("expected name from file, got %q", r.Name)
	}
	if r.Mash == nil || r.Mash.InfusionL != 15 || r.Mash.SpargeL != 12 {
		t.Fatalf("unexpected mash: %+v", r.Mash)
	}
	if len(r.Fermentables) != 2 {
		t.Fatalf("expected 2 fermentables, got %d", len(r.Fermentables))
	}
	if len(r.Salts) != 1 || r.Salts[0].Kind != model.CaCl2 {
		t.Fatalf("unexpected salts: %+v", r.Salts)
	}
}

func TestLoadRecipeRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "bad.toml", "og = 1.05\nbitterness = 40\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown recipe keys") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRecipeRejectsFlatGravity(t *testing.T) {
	path := writeFile(t, "flat.toml", "og = 1.0\n[[fermentable]]\nname = \"Pils\"\namount-kg = 1\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected og validation error")
	}
}

func TestGeometry(t *testing.T) {
	r := model.Recipe{
		Mash: &model.Mash{InfusionL: 15, SpargeL: 12, Steps: 1},
		Fermentables: []model.Fermentable{
			{AmountKg: 4, ColorSRM: 3},
			{AmountKg: 1, ColorSRM: 300},
		},
	}
	g := Geometry(r)
	if g.TotalMashWaterL != 27 {
		t.Fatalf("expected 27 L mash water, got %v", g.TotalMashWaterL)
	}
	if g.TotalGrainKg != 5 {
		t.Fatalf("expected 5 kg grain, got %v", g.TotalGrainKg)
	}
	if math.Abs(g.Thickness-3) > 1e-12 {
		t.Fatalf("expected thickness 3, got %v", g.Thickness)
	}
	want := 0.8*Lovibond(3) + 0.2*Lovibond(300)
	if math.Abs(g.WeightedGrainColor-want) > 1e-12 {
		t.Fatalf("expected weighted colour %v, got %v", want, g.WeightedGrainColor)
	}
}

func TestGeometryWithoutGrainOrMash(t *testing.T) {
	g := Geometry(model.Recipe{})
	if g != (model.MashGeometry{}) {
		t.Fatalf("expected zero geometry, got %+v", g)
	}
	if HasMash(model.Recipe{Mash: &model.Mash{InfusionL: 10}}) {
		t.Fatalf("mash without steps should not count")
	}
}

func TestSGToPlato(t *testing.T) {
	cases := []struct {
		sg    float64
		plato float64
	}{
		{1.040, 10.0},
		{1.060, 14.7},
		{1.080, 19.3},
	}
	for _, c := range cases {
		if got := SGToPlato(c.sg); math.Abs(got-c.plato) > 0.1 {
			t.Fatalf("SGToPlato(%v) = %v, want about %v", c.sg, got, c.plato)
		}
	}
}

func TestLoadWaterProfile(t *testing.T) {
	path := writeFile(t, "burton.toml", `
name = " Burton "
calcium = 295
magnesium = 45
sodium = 55
chloride = 25
bicarbonate = 300
sulfate = 725
alkalinity = 246
`)
	w, err := LoadWaterProfile(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if w.Name != "Burton" || w.Sulfate != 725 || w.AlkalinityAsHCO3 {
		t.Fatalf("unexpected profile: %+v", w)
	}

	bad := writeFile(t, "bad.toml", "name = \"x\"\nmash-ro = 2\n")
	if _, err := LoadWaterProfile(bad); err == nil {
		t.Fatalf("expected mash-ro range error")
	}
}
