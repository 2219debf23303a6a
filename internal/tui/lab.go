package tui

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"

	"github.com/san-kum/qlab/internal/chat"
	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/export"
	"github.com/san-kum/qlab/internal/logger"
	"github.com/san-kum/qlab/internal/session"
	"github.com/san-kum/qlab/internal/visualizer"
	"github.com/san-kum/qlab/internal/viz"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

// lucide icon names from the concept tables
var glyphs = map[string]string{
	"Zap":    "⚡",
	"Share2": "⛓",
	"Lock":   "🔒",
	"Cpu":    "▣",
	"Copy":   "⧉",
	"Shield": "⛨",
}

func glyph(icon string) string {
	if g, ok := glyphs[icon]; ok {
		return g
	}
	return "•"
}

type state int

const (
	stateMenu state = iota
	stateLab
)

type focus int

const (
	focusLab focus = iota
	focusChat
)

// Options configures the lab app.
type Options struct {
	Client      chat.Client
	Log         zerolog.Logger
	FPS         int
	Theme       string
	// Temperature is passed to the assistant. Nil keeps the session default.
	Temperature *float64
	// ExportDir receives files written by the export key.
	ExportDir string
}

// measureLog collects outcomes reported by the visualizer. It is shared
// by pointer because the bubbletea model is copied on every update.
type measureLog struct {
	last    string
	history []float64
}

func (l *measureLog) record(_ concept.ID, digit string) {
	l.last = digit
	v := 0.0
	if digit == "1" {
		v = 1
	}
	l.history = append(l.history, v)
	if len(l.history) > 60 {
		l.history = l.history[1:]
	}
}

type model struct {
	state  state
	focus  focus
	cursor int
	topics []concept.Descriptor

	ctrl     *session.Controller
	vis      *visualizer.Visualizer
	measures *measureLog
	log      zerolog.Logger
	frame    time.Duration
	theme    viz.Theme

	input    textinput.Model
	chatView viewport.Model
	spinner  spinner.Model
	md       *glamour.TermRenderer
	rendered uint64

	status    string
	exportDir string

	width  int
	height int
}

func NewLabApp(opts Options) *model {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}

	log := logger.Component(opts.Log, "tui")
	measures := &measureLog{}

	in := textinput.New()
	in.Placeholder = "向 AI 助理提问..."
	in.CharLimit = 2000
	in.Prompt = "› "

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = magenta

	sessOpts := []session.Option{session.WithLogger(opts.Log)}
	if opts.Temperature != nil {
		sessOpts = append(sessOpts, session.WithTemperature(*opts.Temperature))
	}

	m := &model{
		state:     stateMenu,
		topics:    concept.All(),
		ctrl:      session.New(opts.Client, sessOpts...),
		vis:       visualizer.New(visualizer.OnMeasure(measures.record)),
		measures:  measures,
		log:       log,
		frame:     time.Second / time.Duration(opts.FPS),
		theme:     viz.GetTheme(opts.Theme),
		input:     in,
		spinner:   sp,
		exportDir: opts.ExportDir,
		width:     100,
		height:    32,
	}
	m.resize()
	return m
}

type tickMsg time.Time

// replyMsg arrives when a chat exchange has finished.
type replyMsg struct {
	reply string
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tickMsg:
		m.vis.Advance(time.Time(msg))
		return m, m.tick()
	case replyMsg:
		m.sync()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateLab:
		if m.focus == focusChat {
			return m.chatKey(msg)
		}
		return m.labKey(msg)
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter", " ":
		m.state = stateLab
		cmd := m.selectCursor()
		return m, tea.Batch(tea.ClearScreen, cmd)
	}
	return m, nil
}

func (m model) labKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.state = stateMenu
		return m, tea.ClearScreen
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter", " ":
		cmd := m.selectCursor()
		return m, cmd
	case "m":
		// the lab action toggles like its button: measure, then reset
		if m.ctrl.Selection().Measured {
			m.ctrl.ResetLab()
			m.sync()
			return m, nil
		}
		ex := m.ctrl.Measure()
		m.sync()
		return m, m.run(ex)
	case "r":
		m.ctrl.ResetLab()
		m.sync()
	case "tab", "i":
		m.focus = focusChat
		return m, m.input.Focus()
	case "e":
		m.exportFiles()
	case "t":
		m.theme = viz.NextTheme(m.theme.Name)
		m.status = "theme: " + m.theme.Name
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) chatKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "tab", "esc":
		m.focus = focusLab
		m.input.Blur()
		return m, nil
	case "enter":
		ex := m.ctrl.Ask(m.input.Value())
		if ex == nil {
			return m, nil
		}
		m.input.Reset()
		m.sync()
		return m, m.run(ex)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) moveCursor(d int) {
	m.cursor += d
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor > len(m.topics)-1 {
		m.cursor = len(m.topics) - 1
	}
}

func (m *model) selectCursor() tea.Cmd {
	ex, err := m.ctrl.Select(m.topics[m.cursor].ID)
	if err != nil {
		m.status = err.Error()
		return nil
	}
	m.sync()
	return m.run(ex)
}

// run performs a prepared exchange off the update loop.
func (m model) run(ex *session.Exchange) tea.Cmd {
	if ex == nil {
		return nil
	}
	return func() tea.Msg {
		return replyMsg{reply: ex.Run(context.Background())}
	}
}

// sync pushes the controller's selection into the visualizer and refreshes
// the transcript when it changed.
func (m *model) sync() {
	sel := m.ctrl.Selection()
	m.vis.Update(sel.Topic, sel.Measured)

	if rev := m.ctrl.Revision(); rev != m.rendered {
		m.renderTranscript()
		m.rendered = rev
	}
}

func (m *model) exportFiles() {
	stamp := time.Now().Format("20060102-150405")
	sel := m.ctrl.Selection()
	svgPath := filepath.Join(m.exportDir, fmt.Sprintf("qlab-%s-%s.svg", concept.Mode(sel.Topic), stamp))
	mdPath := filepath.Join(m.exportDir, fmt.Sprintf("qlab-transcript-%s.md", stamp))

	err := export.WriteFile(svgPath, func(w io.Writer) error {
		_, err := io.WriteString(w, export.SceneSVG(m.vis.Surface()))
		return err
	})
	if err == nil {
		outcome, _ := m.vis.Outcome()
		err = export.WriteFile(mdPath, func(w io.Writer) error {
			return export.TranscriptMarkdown(w, export.Snapshot(m.ctrl, outcome))
		})
	}
	if err != nil {
		m.log.Error().Err(err).Msg("export failed")
		m.status = "export failed: " + err.Error()
		return
	}
	m.log.Info().Str("svg", svgPath).Str("transcript", mdPath).Msg("exported lab")
	m.status = "exported " + filepath.Base(svgPath) + ", " + filepath.Base(mdPath)
}

func (m *model) resize() {
	cw := m.chatWidth()
	if m.chatView.Width == 0 {
		m.chatView = viewport.New(cw, m.chatHeight())
	} else {
		m.chatView.Width = cw
		m.chatView.Height = m.chatHeight()
	}
	m.input.Width = cw - 4

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(cw-4),
	)
	if err != nil {
		m.log.Warn().Err(err).Msg("markdown renderer unavailable")
		md = nil
	}
	m.md = md
	m.renderTranscript()
}

const sidebarWidth = 30

func (m model) canvasSize() (int, int) {
	cols := m.width - sidebarWidth - 8
	if cols < 30 {
		cols = 30
	}
	rows := m.height/2 - 3
	if rows < 8 {
		rows = 8
	}
	return cols, rows
}

func (m model) chatWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (m model) chatHeight() int {
	_, rows := m.canvasSize()
	h := m.height - rows - 12
	if h < 4 {
		h = 4
	}
	return h
}

func (m *model) renderTranscript() {
	var b strings.Builder
	for _, e := range m.ctrl.Transcript() {
		if e.Speaker == session.User {
			b.WriteString(cyan.Render("你: ") + white.Render(e.Text) + "\n\n")
			continue
		}
		text := e.Text
		if m.md != nil {
			if rendered, err := m.md.Render(e.Text); err == nil {
				text = strings.TrimRight(rendered, "\n")
			}
		}
		b.WriteString(magenta.Render("AI") + "\n" + text + "\n\n")
	}
	m.chatView.SetContent(b.String())
	if m.chatView.Height > 0 && m.chatView.Width > 0 {
		m.chatView.GotoBottom()
	}
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateLab:
		return m.viewLab()
	}
	return ""
}

func (m model) viewMenu() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("       " + m.theme.Styles().Gradient("量子通信实验室  q l a b") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n\n")

	for i, step := range concept.IntroSteps() {
		b.WriteString(fmt.Sprintf("    %s %s\n", yellow.Render(fmt.Sprintf("%d.", i+1)), white.Render(step.Title)))
		b.WriteString(dim.Render(wrap(step.Content, 60, "       ")) + "\n\n")
	}

	b.WriteString("    " + cyan.Render("量子 vs 传统：核心差异") + "\n")
	for _, row := range concept.Comparisons() {
		b.WriteString(fmt.Sprintf("    %s %s %s %s\n",
			dim.Render(glyph(row.Icon)),
			white.Render(runewidth.FillRight(row.Feature, 10)),
			dim.Render(runewidth.FillRight(row.Traditional, 22)),
			green.Render(row.Quantum)))
	}
	b.WriteString("\n")

	for i, d := range m.topics {
		name := fmt.Sprintf("%s %s", glyph(d.Icon), runewidth.FillRight(d.Title, 26))
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(name) + dim.Render(d.Description) + "\n")
		} else {
			b.WriteString("        " + dim.Render(name) + dimmer.Render(d.Description) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter start   q quit") + "\n")
	return b.String()
}

func (m model) viewLab() string {
	sel := m.ctrl.Selection()
	st := m.theme.Styles()

	sidebar := m.viewSidebar(sel)

	cols, rows := m.canvasSize()
	canvas := viz.Rasterize(m.vis.Surface(), cols, rows).Render(m.theme)

	badge := dim.Render("MODE: ") + cyan.Render(strings.ToUpper(concept.Mode(sel.Topic)))
	action := ""
	if sel.Topic != concept.Idle {
		label := concept.ActionLabel(sel.Topic, sel.Measured)
		if sel.Measured {
			action = yellow.Render("[m] " + label)
		} else {
			action = green.Render("[m] " + label)
		}
	}
	lab := lipgloss.JoinVertical(lipgloss.Left,
		badge+"   "+action,
		st.Panel.Render(strings.TrimRight(canvas, "\n")),
		m.viewStatus(sel),
	)

	top := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", lab)

	chatTitle := "AI 助理"
	if m.focus == focusChat {
		chatTitle = cyan.Render("AI 助理") + dim.Render("  (tab: back to lab)")
	}
	typing := ""
	if m.ctrl.Typing() {
		typing = m.spinner.View() + dim.Render(" 正在思考...")
	}

	var b strings.Builder
	b.WriteString(top + "\n")
	b.WriteString(st.Rule(m.chatWidth()) + "\n")
	b.WriteString(" " + chatTitle + "\n")
	b.WriteString(m.chatView.View() + "\n")
	b.WriteString(" " + typing + "\n")
	b.WriteString(" " + m.input.View() + "\n")
	b.WriteString(st.Hint.Render(" ↑↓ topic  enter select  m measure  r reset  tab chat  e export  t theme  esc menu  q quit"))
	return b.String()
}

func (m model) viewSidebar(sel session.Selection) string {
	st := m.theme.Styles()
	var b strings.Builder
	b.WriteString(st.Title.Render("实验课题") + "\n\n")
	for i, d := range m.topics {
		marker := "  "
		if i == m.cursor {
			marker = cyan.Render("▸ ")
		}
		name := glyph(d.Icon) + " " + d.ShortTitle()
		switch {
		case d.ID == sel.Topic:
			b.WriteString(marker + st.Selected.Render(name) + "\n")
		case i == m.cursor:
			b.WriteString(marker + white.Render(name) + "\n")
		default:
			b.WriteString(marker + dim.Render(name) + "\n")
		}
		b.WriteString("    " + dimmer.Render(d.Description) + "\n")
	}

	if d, ok := concept.Get(sel.Topic); ok {
		b.WriteString("\n")
		b.WriteString(st.Box("核心原理", wrap(d.Detail, sidebarWidth-6, ""), sidebarWidth-4))
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Render(b.String())
}

func (m model) viewStatus(sel session.Selection) string {
	st := m.theme.Styles()
	parts := []string{}
	switch {
	case sel.Topic == concept.QKD && sel.Measured:
		parts = append(parts, st.Alarm.Render(fmt.Sprintf("窃听告警 ×%d", m.vis.Intercepts())))
	case sel.Measured:
		if outcome, ok := m.vis.Outcome(); ok {
			parts = append(parts, st.Outcome.Render("结果: "+outcome))
		}
	case sel.Topic != concept.Idle:
		parts = append(parts, st.Pending.Render("叠加中…"))
	}

	if h := m.measures.history; len(h) > 0 {
		ones := 0.0
		for _, v := range h {
			ones += v
		}
		p := ones / float64(len(h))
		parts = append(parts,
			st.Label.Render("P(1)")+" "+st.Probability(p, 12)+" "+st.Value.Render(fmt.Sprintf("%.2f", p)),
			st.Label.Render("history")+" "+st.Outcomes(h, 20))
	}
	if m.status != "" {
		parts = append(parts, dim.Render(m.status))
	}
	return strings.Join(parts, "  ")
}

// wrap breaks s into lines of at most width cells, each prefixed by indent.
func wrap(s string, width int, indent string) string {
	var lines []string
	var line strings.Builder
	w := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if w+rw > width {
			lines = append(lines, indent+line.String())
			line.Reset()
			w = 0
		}
		line.WriteRune(r)
		w += rw
	}
	if line.Len() > 0 {
		lines = append(lines, indent+line.String())
	}
	return strings.Join(lines, "\n")
}

func RunLab(opts Options) error {
	app := NewLabApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	// the visualizer is shared by every copy of the model
	app.vis.Close()
	return err
}
