package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/verte-zerg/mashph/internal/mashph"
	"github.com/verte-zerg/mashph/internal/model"
	"github.com/verte-zerg/mashph/internal/salts"
	"github.com/verte-zerg/mashph/internal/session"
	"github.com/verte-zerg/mashph/internal/water"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Ion", "ppm", "Status"}
	rows := [][]string{
		{"Ca", "68.0", "ok"},
		{"HCO3", "120.5", "high"},
	}
	lines := formatTable(headers, rows, map[int]bool{1: true})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Ion    ppm Status" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Ca    68.0 ok" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "HCO3 120.5 high" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestClip(t *testing.T) {
	if got := clip("abcdef", 0); got != "abcdef" {
		t.Fatalf("width 0 should not clip, got %q", got)
	}
	if got := clip("abcdef", 4); displayWidth(got) > 4 {
		t.Fatalf("expected clipped line, got %q", got)
	}
}

func TestWindowAndCompare(t *testing.T) {
	low, high := Window(100, 0.05)
	if low != 95 || high != 105 {
		t.Fatalf("unexpected window %v-%v", low, high)
	}
	cases := []struct {
		v    float64
		want Status
	}{
		{94.9, StatusLow},
		{95, StatusOK},
		{105, StatusOK},
		{105.1, StatusHigh},
	}
	for _, c := range cases {
		if got := Compare(c.v, low, high); got != c.want {
			t.Fatalf("Compare(%v) = %v, want %v", c.v, got, c.want)
		}
	}
	low, high = Window(0, 0.05)
	if got := Compare(3, low, high); got != StatusHigh {
		t.Fatalf("expected high against zero target, got %v", got)
	}
}

func sampleResult() session.Result {
	var b water.Blend
	b.HasBase = true
	b.Modifier = 0.75
	b.ResidualAlkalinity = 1.5
	b.Ions[model.IonCa] = 60
	b.Ions[model.IonSO4] = 200
	return session.Result{
		Recipe:   "stout",
		Geometry: model.MashGeometry{TotalInfusionL: 15, TotalSpargeL: 5, TotalMashWaterL: 20, TotalGrainKg: 5, Thickness: 3},
		Blend:    b,
		Prediction: mashph.Prediction{
			GristPH: 5.55, StrikeDelta: 0.02, AcidDelta: 0.1, MashPH: 5.47,
		},
		SaltTotals: map[model.SaltKind]float64{model.CaSO4: 3, model.Lactic: 1.234},
		Base:       &model.WaterProfile{Name: "tap", Transient: true},
		Target:     &model.WaterProfile{Name: "burton", Calcium: 100, Sulfate: 200},
		MashRO:     0.5,
	}
}

func TestIonRows(t *testing.T) {
	rows := IonRows(sampleResult(), 0.05)
	if len(rows) != len(model.AllIons) {
		t.Fatalf("expected %d rows, got %d", len(model.AllIons), len(rows))
	}
	if rows[model.IonCa].Status != StatusLow {
		t.Fatalf("expected Ca low, got %v", rows[model.IonCa].Status)
	}
	if rows[model.IonSO4].Status != StatusOK {
		t.Fatalf("expected SO4 ok, got %v", rows[model.IonSO4].Status)
	}
	if rows[model.IonMg].Status != StatusOK {
		t.Fatalf("expected Mg ok at zero target, got %v", rows[model.IonMg].Status)
	}

	res := sampleResult()
	res.Target = nil
	for _, r := range IonRows(res, 0.05) {
		if r.HasTarget || r.Status != StatusNone {
			t.Fatalf("expected no comparison without target: %+v", r)
		}
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleResult(), DefaultOptions()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Recipe: stout",
		"Base: tap (unsaved)  Target: burton",
		"Mash water: 20.00 L",
		"CaSO4     3.00",
		"Lactic    1.23",
		"Mash pH: 5.47  [ok, preferred 5.20-5.50]",
		"Residual alkalinity: 1.50 mEq/L",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected ANSI codes without color")
	}
}

func TestRenderNoData(t *testing.T) {
	res := sampleResult()
	res.Prediction = mashph.Prediction{NoData: true}
	res.SaltTotals = nil
	var buf bytes.Buffer
	if err := Render(&buf, res, DefaultOptions()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Mash pH: no data") {
		t.Fatalf("expected no data line, got:\n%s", out)
	}
	if !strings.Contains(out, "No salt additions.") {
		t.Fatalf("expected empty salt line, got:\n%s", out)
	}
	if PHStatus(res, DefaultOptions()) != StatusNone {
		t.Fatalf("expected no pH status")
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, sampleResult(), DefaultOptions()); err != nil {
		t.Fatalf("render json: %v", err)
	}
	var got struct {
		Recipe        string `json:"recipe"`
		PHStatus      string `json:"ph_status"`
		IonComparison []struct {
			Ion    string `json:"ion"`
			Status string `json:"status"`
		} `json:"ion_comparison"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Recipe != "stout" || got.PHStatus != "ok" {
		t.Fatalf("unexpected report: %+v", got)
	}
	if len(got.IonComparison) != 6 || got.IonComparison[0].Status != "low" {
		t.Fatalf("unexpected ion comparison: %+v", got.IonComparison)
	}
}

func TestRenderYields(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderYields(&buf, salts.Yield); err != nil {
		t.Fatalf("render yields: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(model.SaltKinds)+1 {
		t.Fatalf("expected %d lines, got %d", len(model.SaltKinds)+1, len(lines))
	}
	if !strings.HasPrefix(lines[1], "CaCl2") || !strings.Contains(lines[1], "0.272") {
		t.Fatalf("unexpected CaCl2 line: %q", lines[1])
	}
}

func TestRenderWaters(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderWaters(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No water profiles found." {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}

	buf.Reset()
	waters := []model.WaterProfile{
		{Name: "tap", Calcium: 40, Bicarbonate: 150, Alkalinity: 120, MashRO: 0.5},
		{Name: "burton", Calcium: 275, Sulfate: 610, Alkalinity: 200, AlkalinityAsHCO3: true},
	}
	if err := RenderWaters(&buf, waters); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "tap") || !strings.HasSuffix(lines[1], "50%/0%") {
		t.Fatalf("unexpected tap line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "200 HCO3") {
		t.Fatalf("unexpected burton line: %q", lines[2])
	}
}
