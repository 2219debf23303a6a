package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/san-kum/qlab/internal/chat"
	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/session"
)

type echoClient struct{ calls int }

func (c *echoClient) Complete(_ context.Context, req chat.Request) (string, error) {
	c.calls++
	return "答: " + req.Messages[len(req.Messages)-1].Text, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, k string) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(k))
	return next.(model), cmd
}

// deliver runs cmd and feeds its reply back into the model.
func deliver(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if _, ok := msg.(replyMsg); !ok {
		t.Fatalf("expected replyMsg, got %T", msg)
	}
	next, _ := m.Update(msg)
	return next.(model)
}

func newTestApp(t *testing.T, client chat.Client) model {
	t.Helper()
	app := NewLabApp(Options{Client: client, Log: zerolog.Nop(), ExportDir: t.TempDir()})
	t.Cleanup(app.vis.Close)
	m := *app
	m.state = stateLab
	return m
}

func TestMenuCursorClamps(t *testing.T) {
	m := newTestApp(t, &echoClient{})
	m.state = stateMenu

	m, _ = press(t, m, "up")
	if m.cursor != 0 {
		t.Errorf("cursor moved above first topic: %d", m.cursor)
	}
	for i := 0; i < 10; i++ {
		m, _ = press(t, m, "down")
	}
	if m.cursor != len(concept.All())-1 {
		t.Errorf("cursor moved past last topic: %d", m.cursor)
	}
	if !strings.Contains(m.View(), "q quit") {
		t.Error("menu view missing key hints")
	}
}

func TestMenuEnterStartsLab(t *testing.T) {
	m := newTestApp(t, &echoClient{})
	m.state = stateMenu

	m, cmd := press(t, m, "enter")
	if m.state != stateLab {
		t.Fatal("expected lab state")
	}
	if cmd == nil {
		t.Fatal("expected batched command")
	}
	if got := m.ctrl.Selection().Topic; got != concept.Superposition {
		t.Errorf("expected superposition, got %q", got)
	}
}

func TestSelectTopicAsksAssistant(t *testing.T) {
	client := &echoClient{}
	m := newTestApp(t, client)

	m, _ = press(t, m, "down")
	m, cmd := press(t, m, "enter")
	if m.vis.Topic() != concept.Entanglement {
		t.Errorf("visualizer not synced, topic %q", m.vis.Topic())
	}
	if !m.ctrl.Typing() {
		t.Error("expected typing while the exchange is pending")
	}

	m = deliver(t, m, cmd)
	if m.ctrl.Typing() {
		t.Error("typing should clear after the reply")
	}
	entries := m.ctrl.Transcript()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if client.calls != 1 {
		t.Errorf("expected 1 call, got %d", client.calls)
	}
	if m.rendered != m.ctrl.Revision() {
		t.Error("transcript view not refreshed")
	}
	if !strings.Contains(m.View(), "ENTANGLEMENT") {
		t.Error("lab view missing mode badge")
	}
}

func TestMeasureKeyToggles(t *testing.T) {
	m := newTestApp(t, &echoClient{})

	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)

	m, cmd = press(t, m, "m")
	if !m.ctrl.Selection().Measured || !m.vis.Measured() {
		t.Fatal("expected measured lab")
	}
	m = deliver(t, m, cmd)
	if _, ok := m.vis.Outcome(); !ok {
		t.Error("expected an outcome after measuring")
	}
	if m.measures.last == "" || len(m.measures.history) != 1 {
		t.Errorf("measurement not recorded: %+v", m.measures)
	}

	m, cmd = press(t, m, "m")
	if cmd != nil {
		t.Error("reset should not ask the assistant")
	}
	if m.ctrl.Selection().Measured || m.vis.Measured() {
		t.Error("second press should reset the lab")
	}
}

func TestMeasureWithoutTopic(t *testing.T) {
	m := newTestApp(t, &echoClient{})

	m, cmd := press(t, m, "m")
	if cmd != nil {
		t.Error("measuring the idle lab should do nothing")
	}
	if m.ctrl.Selection().Measured {
		t.Error("idle lab cannot be measured")
	}
}

func TestChatInput(t *testing.T) {
	client := &echoClient{}
	m := newTestApp(t, client)

	m, _ = press(t, m, "tab")
	if m.focus != focusChat {
		t.Fatal("tab should focus the chat input")
	}

	m, cmd := press(t, m, "enter")
	if cmd != nil {
		t.Error("blank input should not be sent")
	}

	for _, r := range "什么是量子比特" {
		m, _ = press(t, m, string(r))
	}
	// q is text while the input has focus
	m, cmd = press(t, m, "q")
	if cmd != nil {
		if _, quit := cmd().(tea.QuitMsg); quit {
			t.Fatal("q quit while typing")
		}
	}

	m, cmd = press(t, m, "enter")
	if m.input.Value() != "" {
		t.Error("input should clear after sending")
	}
	m = deliver(t, m, cmd)

	entries := m.ctrl.Transcript()
	last := entries[len(entries)-1]
	if last.Speaker != session.Assistant || last.Text != "答: 什么是量子比特q" {
		t.Errorf("unexpected reply %+v", last)
	}

	m, _ = press(t, m, "esc")
	if m.focus != focusLab {
		t.Error("esc should return focus to the lab")
	}
}

func TestFailureShowsFallback(t *testing.T) {
	m := newTestApp(t, nil)

	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)

	entries := m.ctrl.Transcript()
	if entries[len(entries)-1].Text != session.FailureReply {
		t.Errorf("expected failure reply, got %q", entries[len(entries)-1].Text)
	}
}

type tempClient struct{ temps []float64 }

func (c *tempClient) Complete(_ context.Context, req chat.Request) (string, error) {
	c.temps = append(c.temps, req.Temperature)
	return "ok", nil
}

func TestTemperatureOption(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name string
		temp *float64
		want float64
	}{
		{"unset", nil, session.DefaultTemperature},
		{"zero", &zero, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &tempClient{}
			app := NewLabApp(Options{Client: client, Log: zerolog.Nop(), Temperature: tt.temp})
			t.Cleanup(app.vis.Close)
			m := *app
			m.state = stateLab

			m, cmd := press(t, m, "enter")
			deliver(t, m, cmd)
			if len(client.temps) != 1 || client.temps[0] != tt.want {
				t.Errorf("expected temperature %v, got %v", tt.want, client.temps)
			}
		})
	}
}

func TestThemeKeyCycles(t *testing.T) {
	m := newTestApp(t, &echoClient{})
	before := m.theme.Name

	m, _ = press(t, m, "t")
	if m.theme.Name == before {
		t.Error("theme did not change")
	}
}

func TestExportWritesFiles(t *testing.T) {
	m := newTestApp(t, &echoClient{})

	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)
	m, _ = press(t, m, "e")

	svgs, _ := filepath.Glob(filepath.Join(m.exportDir, "qlab-superposition-*.svg"))
	mds, _ := filepath.Glob(filepath.Join(m.exportDir, "qlab-transcript-*.md"))
	if len(svgs) != 1 || len(mds) != 1 {
		t.Fatalf("expected one svg and one transcript, got %v %v (status %q)", svgs, mds, m.status)
	}

	data, err := os.ReadFile(svgs[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `id="qubit"`) {
		t.Error("exported scene missing the qubit")
	}
}

func TestTickAdvancesAnimation(t *testing.T) {
	m := newTestApp(t, &echoClient{})
	m, _ = press(t, m, "enter")

	now := m.vis.Scheduler().Now()
	next, cmd := m.Update(tickMsg(now.Add(m.frame)))
	if cmd == nil {
		t.Error("tick should schedule the next frame")
	}
	if got := next.(model).vis.Scheduler().Now(); !got.After(now) {
		t.Error("scheduler clock did not advance")
	}
}

func TestWrap(t *testing.T) {
	got := wrap("量子通信实验室", 6, "> ")
	want := "> 量子通\n> 信实验\n> 室"
	if got != want {
		t.Errorf("wrap = %q, want %q", got, want)
	}
}
