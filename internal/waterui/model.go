// Package waterui provides the Bubble Tea water chemistry session.
package waterui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/mashph/internal/model"
	"github.com/verte-zerg/mashph/internal/report"
	"github.com/verte-zerg/mashph/internal/salts"
	"github.com/verte-zerg/mashph/internal/session"
	"github.com/verte-zerg/mashph/internal/water"
)

const roStep = 0.05

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	paneStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// Model implements the Bubble Tea session UI.
type Model struct {
	ctx       context.Context
	sess      *session.Session
	persister session.Persister
	library   []model.WaterProfile
	opts      report.Options

	baseIdx   int
	targetIdx int

	saltTable table.Model
	reportVP  viewport.Model

	inputMode bool
	input     textinput.Model

	width  int
	height int

	errMsg    string
	notice    string
	committed bool
}

// NewModel constructs a session UI. library holds the stored profiles that
// b and t cycle through.
func NewModel(ctx context.Context, sess *session.Session, p session.Persister, library []model.WaterProfile, opts report.Options) *Model {
	m := &Model{
		ctx:       ctx,
		sess:      sess,
		persister: p,
		library:   library,
		opts:      opts,
		baseIdx:   indexOf(library, sess.Base()),
		targetIdx: indexOf(library, sess.Target()),
		reportVP:  viewport.New(0, 0),
	}
	m.input = textinput.New()
	m.input.Prompt = "Add: "
	m.input.Placeholder = "CaSO4 2.5 mash"
	m.input.CharLimit = 64
	m.input.Cursor.SetMode(cursor.CursorBlink)
	m.saltTable = table.New(
		table.WithColumns(saltColumns()),
		table.WithFocused(true),
		table.WithHeight(5),
	)
	m.saltTable.SetStyles(saltTableStyles())
	m.refresh()
	return m
}

// Committed reports whether the session ended with a commit.
func (m *Model) Committed() bool {
	return m.committed
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.apply(m.sess.Discard(m.ctx))
			return m, tea.Quit
		}
		if m.inputMode {
			return m.updateInput(msg)
		}
		m.notice = ""
		switch msg.String() {
		case "q", "esc":
			m.apply(m.sess.Discard(m.ctx))
			return m, tea.Quit
		case "s", "enter":
			if err := m.sess.Commit(m.ctx, m.persister); err != nil && !isRecomputeErr(err) {
				m.errMsg = err.Error()
				return m, nil
			}
			m.committed = true
			return m, tea.Quit
		case "[":
			m.apply(m.sess.SetMashRO(m.ctx, m.sess.MashRO()-roStep))
		case "]":
			m.apply(m.sess.SetMashRO(m.ctx, m.sess.MashRO()+roStep))
		case "{":
			m.apply(m.sess.SetSpargeRO(m.ctx, m.sess.SpargeRO()-roStep))
		case "}":
			m.apply(m.sess.SetSpargeRO(m.ctx, m.sess.SpargeRO()+roStep))
		case "b":
			m.cycleBase()
		case "t":
			m.cycleTarget()
		case "B":
			m.baseIdx = -1
			m.apply(m.sess.ClearBase(m.ctx))
		case "T":
			m.targetIdx = -1
			m.apply(m.sess.ClearTarget(m.ctx))
		case "a":
			m.inputMode = true
			m.input.SetValue("")
			m.errMsg = ""
			return m, m.input.Focus()
		case "d", "delete", "backspace":
			if len(m.sess.Salts()) > 0 {
				m.apply(m.sess.RemoveSalts(m.ctx, m.saltTable.Cursor()))
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.reportVP, cmd = m.reportVP.Update(msg)
			return m, cmd
		default:
			var cmd tea.Cmd
			m.saltTable, cmd = m.saltTable.Update(msg)
			return m, cmd
		}
		m.refresh()
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputMode = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		a, err := salts.ParseAddition(m.input.Value())
		if err == nil {
			err = m.sess.AddSalt(m.ctx, a)
		}
		if err != nil && !isRecomputeErr(err) {
			m.errMsg = err.Error()
			return m, nil
		}
		m.apply(err)
		m.inputMode = false
		m.input.Blur()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply records the outcome of a session mutation.
func (m *Model) apply(err error) {
	if err == nil {
		m.errMsg = ""
		return
	}
	m.errMsg = err.Error()
}

func (m *Model) cycleBase() {
	if len(m.library) == 0 {
		m.notice = "no stored water profiles"
		return
	}
	m.baseIdx = (m.baseIdx + 1) % len(m.library)
	m.apply(m.sess.SelectBase(m.ctx, m.library[m.baseIdx]))
}

func (m *Model) cycleTarget() {
	if len(m.library) == 0 {
		m.notice = "no stored water profiles"
		return
	}
	m.targetIdx = (m.targetIdx + 1) % len(m.library)
	m.apply(m.sess.SelectTarget(m.ctx, m.library[m.targetIdx]))
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	inner := m.width - 4
	if inner < 10 {
		inner = 10
	}
	m.saltTable.SetWidth(inner)
	m.reportVP.Width = inner
	m.reportVP.Height = maxInt(3, m.height-14)
	m.input.Width = maxInt(10, inner-lipgloss.Width(m.input.Prompt))
}

func (m *Model) refresh() {
	additions := m.sess.Salts()
	rows := make([]table.Row, 0, len(additions))
	for i, a := range additions {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			string(a.Kind),
			report.FormatGrams(a.AmountG),
			string(a.Target),
		})
	}
	m.saltTable.SetRows(rows)
	// An empty table leaves the cursor at -1, even after rows come back.
	if c := m.saltTable.Cursor(); len(rows) > 0 {
		switch {
		case c < 0:
			m.saltTable.SetCursor(0)
		case c >= len(rows):
			m.saltTable.SetCursor(len(rows) - 1)
		}
	}

	res, ok := m.sess.Result()
	if !ok {
		m.reportVP.SetContent("No result yet.")
		return
	}
	var buf bytes.Buffer
	opts := m.opts
	opts.Width = m.reportVP.Width
	if err := report.Render(&buf, res, opts); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.reportVP.SetContent(strings.TrimRight(buf.String(), "\n"))
}

func (m *Model) renderHeader() string {
	r := m.sess.Recipe()
	title := titleStyle.Render(fmt.Sprintf("Water chemistry: %s", r.Name))
	dirty := ""
	if m.sess.Dirty() {
		dirty = noticeStyle.Render("  [unsaved]")
	}
	info := headerStyle.Render(fmt.Sprintf("mash RO %.0f%%  sparge RO %.0f%%", m.sess.MashRO()*100, m.sess.SpargeRO()*100))
	return title + dirty + "\n" + info
}

func (m *Model) renderBody() string {
	pane := paneStyle.Render(m.saltTable.View())
	if len(m.sess.Salts()) == 0 {
		pane = paneStyle.Render("No salt additions. Press a to add one.")
	}
	parts := []string{pane}
	if m.inputMode {
		parts = append(parts, m.input.View())
	}
	parts = append(parts, m.reportVP.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderFooter() string {
	var lines []string
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(m.errMsg))
	} else if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice))
	}
	if m.inputMode {
		lines = append(lines, footerStyle.Render("enter add  esc cancel  format: KIND GRAMS [mash|sparge]"))
	} else {
		lines = append(lines, footerStyle.Render(
			"[ ] mash RO  { } sparge RO  a add  d remove  b/t base/target  B/T clear  s save  q discard"))
	}
	return strings.Join(lines, "\n")
}

func saltColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Addition", Width: 10},
		{Title: "Grams", Width: 8},
		{Title: "Water", Width: 7},
	}
}

func saltTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// isRecomputeErr reports errors that leave the session usable.
func isRecomputeErr(err error) bool {
	return errors.Is(err, session.ErrMissingMash) || errors.Is(err, water.ErrDegenerateInput)
}

func indexOf(library []model.WaterProfile, p *model.WaterProfile) int {
	if p == nil {
		return -1
	}
	for i, w := range library {
		if w.Name == p.Name {
			return i
		}
	}
	return -1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
