// Package report renders session results as text or JSON and compares the
// computed mash water against the target profile.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/verte-zerg/mashph/internal/model"
	"github.com/verte-zerg/mashph/internal/session"
)

// Defaults for Options.
const (
	DefaultPHLow     = 5.2
	DefaultPHHigh    = 5.5
	DefaultTolerance = 0.05
)

// Options controls rendering.
type Options struct {
	PHLow     float64
	PHHigh    float64
	Tolerance float64
	// Width clips lines to this many cells; 0 disables clipping.
	Width int
	Color bool
}

// DefaultOptions returns plain, unclipped options with the default windows.
func DefaultOptions() Options {
	return Options{PHLow: DefaultPHLow, PHHigh: DefaultPHHigh, Tolerance: DefaultTolerance}
}

// Status is the position of a value relative to its preferred window.
type Status int

// Window statuses.
const (
	StatusNone Status = iota
	StatusLow
	StatusOK
	StatusHigh
)

func (s Status) String() string {
	switch s {
	case StatusLow:
		return "low"
	case StatusOK:
		return "ok"
	case StatusHigh:
		return "high"
	default:
		return ""
	}
}

// MarshalText encodes the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	lowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4DA3FF"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	highStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
)

func (s Status) style() lipgloss.Style {
	switch s {
	case StatusLow:
		return lowStyle
	case StatusOK:
		return okStyle
	case StatusHigh:
		return highStyle
	default:
		return dimStyle
	}
}

// Window returns [target·(1−tol), target·(1+tol)].
func Window(target, tol float64) (low, high float64) {
	return target * (1 - tol), target * (1 + tol)
}

// Compare places value relative to [low, high].
func Compare(value, low, high float64) Status {
	switch {
	case value < low:
		return StatusLow
	case value > high:
		return StatusHigh
	default:
		return StatusOK
	}
}

// IonRow is one line of the ion comparison.
type IonRow struct {
	Ion       string  `json:"ion"`
	PPM       float64 `json:"ppm"`
	HasTarget bool    `json:"has_target"`
	Target    float64 `json:"target_ppm,omitempty"`
	Low       float64 `json:"low_ppm,omitempty"`
	High      float64 `json:"high_ppm,omitempty"`
	Status    Status  `json:"status,omitempty"`
}

// IonRows compares every computed ion with the target profile, if any.
func IonRows(res session.Result, tol float64) []IonRow {
	rows := make([]IonRow, 0, len(model.AllIons))
	for _, ion := range model.AllIons {
		row := IonRow{Ion: ion.String(), PPM: res.Blend.Ions.Get(ion)}
		if res.Target != nil {
			row.HasTarget = true
			row.Target = res.Target.PPM(ion)
			row.Low, row.High = Window(row.Target, tol)
			row.Status = Compare(row.PPM, row.Low, row.High)
		}
		rows = append(rows, row)
	}
	return rows
}

// PHStatus places a prediction relative to the preferred mash pH range.
// Predictions without data have no status.
func PHStatus(res session.Result, opts Options) Status {
	if res.Prediction.NoData {
		return StatusNone
	}
	return Compare(res.Prediction.MashPH, opts.PHLow, opts.PHHigh)
}

// Render writes the text report.
func Render(w io.Writer, res session.Result, opts Options) error {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("Recipe: %s", res.Recipe)
	add("Base: %s  Target: %s", profileLabel(res.Base), profileLabel(res.Target))
	g := res.Geometry
	add("Mash water: %.2f L (infusion %.2f L, sparge %.2f L)", g.TotalMashWaterL, g.TotalInfusionL, g.TotalSpargeL)
	add("Grain: %.2f kg  Thickness: %.2f L/kg", g.TotalGrainKg, g.Thickness)
	if res.Blend.HasBase {
		add("RO: mash %.0f%%  sparge %.0f%%  (base water share %.1f%%)", res.MashRO*100, res.SpargeRO*100, res.Blend.Modifier*100)
	}
	add("")

	ionRows := IonRows(res, opts.Tolerance)
	table := make([][]string, 0, len(ionRows))
	statuses := make([]Status, 0, len(ionRows))
	for _, r := range ionRows {
		row := []string{r.Ion, fmt.Sprintf("%.1f", r.PPM), "-", "-", "-"}
		if r.HasTarget {
			row[2] = fmt.Sprintf("%.1f", r.Target)
			row[3] = fmt.Sprintf("%.1f-%.1f", r.Low, r.High)
			row[4] = r.Status.String()
		}
		table = append(table, row)
		statuses = append(statuses, r.Status)
	}
	ionLines := formatTable([]string{"Ion", "ppm", "Target", "Window", "Status"}, table, map[int]bool{1: true, 2: true, 3: true})
	for i, line := range ionLines {
		line = clip(line, opts.Width)
		if i > 0 && opts.Color {
			line = colorTail(line, statuses[i-1])
		}
		lines = append(lines, line)
	}
	add("")

	saltRows := saltTable(res)
	if len(saltRows) == 0 {
		add("No salt additions.")
	} else {
		for _, line := range formatTable([]string{"Addition", "Grams"}, saltRows, map[int]bool{1: true}) {
			lines = append(lines, clip(line, opts.Width))
		}
	}
	add("")

	add("Residual alkalinity: %.2f mEq/L", res.Blend.ResidualAlkalinity)
	p := res.Prediction
	if p.NoData {
		add("Mash pH: no data (recipe has no fermentables)")
	} else {
		status := PHStatus(res, opts)
		label := status.String()
		if opts.Color {
			label = status.style().Render(label)
		}
		add("Mash pH: %.2f  [%s, preferred %.2f-%.2f]", p.MashPH, label, opts.PHLow, opts.PHHigh)
		add("  grist %.3f  strike %+.3f  acid -%.3f", p.GristPH, p.StrikeDelta, p.AcidDelta)
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// JSONReport is the machine readable report.
type JSONReport struct {
	session.Result
	IonComparison []IonRow `json:"ion_comparison"`
	PHStatus      Status   `json:"ph_status,omitempty"`
	PHLow         float64  `json:"ph_low"`
	PHHigh        float64  `json:"ph_high"`
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, res session.Result, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(JSONReport{
		Result:        res,
		IonComparison: IonRows(res, opts.Tolerance),
		PHStatus:      PHStatus(res, opts),
		PHLow:         opts.PHLow,
		PHHigh:        opts.PHHigh,
	})
}

// RenderYields prints the grams of each ion released per gram of salt.
func RenderYields(w io.Writer, yield func(model.SaltKind, model.Ion) float64) error {
	headers := []string{"Salt"}
	for _, ion := range model.AllIons {
		headers = append(headers, ion.String())
	}
	right := make(map[int]bool, len(model.AllIons))
	rows := make([][]string, 0, len(model.SaltKinds))
	for _, kind := range model.SaltKinds {
		row := []string{string(kind)}
		for i, ion := range model.AllIons {
			right[i+1] = true
			v := yield(kind, ion)
			if v == 0 {
				row = append(row, "-")
				continue
			}
			row = append(row, fmt.Sprintf("%.3f", v))
		}
		rows = append(rows, row)
	}
	for _, line := range formatTable(headers, rows, right) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderWaters prints the stored water profiles.
func RenderWaters(w io.Writer, waters []model.WaterProfile) error {
	if len(waters) == 0 {
		_, err := fmt.Fprintln(w, "No water profiles found.")
		return err
	}
	headers := []string{"Name"}
	for _, ion := range model.AllIons {
		headers = append(headers, ion.String())
	}
	headers = append(headers, "Alk", "RO mash/sparge")
	right := map[int]bool{}
	for i := 1; i < len(headers); i++ {
		right[i] = true
	}
	rows := make([][]string, 0, len(waters))
	for _, p := range waters {
		row := []string{p.Name}
		for _, ion := range model.AllIons {
			row = append(row, fmt.Sprintf("%.0f", p.PPM(ion)))
		}
		alk := fmt.Sprintf("%.0f", p.Alkalinity)
		if p.AlkalinityAsHCO3 {
			alk += " HCO3"
		}
		row = append(row, alk, fmt.Sprintf("%.0f%%/%.0f%%", p.MashRO*100, p.SpargeRO*100))
		rows = append(rows, row)
	}
	for _, line := range formatTable(headers, rows, right) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// FormatGrams formats a display total.
func FormatGrams(g float64) string {
	return fmt.Sprintf("%.2f", g)
}

func saltTable(res session.Result) [][]string {
	var rows [][]string
	kinds := append(append([]model.SaltKind(nil), model.SaltKinds...), model.AcidKinds...)
	for _, k := range kinds {
		if g := res.SaltTotals[k]; g > 0 {
			rows = append(rows, []string{string(k), FormatGrams(g)})
		}
	}
	return rows
}

func profileLabel(p *model.WaterProfile) string {
	if p == nil {
		return "none"
	}
	if p.Transient {
		return p.Name + " (unsaved)"
	}
	return p.Name
}

func colorTail(line string, s Status) string {
	word := s.String()
	if word == "" || !strings.HasSuffix(line, word) {
		return line
	}
	return strings.TrimSuffix(line, word) + s.style().Render(word)
}

// TerminalWidth returns the width of stdout, or 0 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

// ShouldUseColor reports whether w is a terminal and NO_COLOR is unset.
func ShouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
