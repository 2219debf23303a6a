package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"
)

// Styles is the lab chrome rendered in one theme.
type Styles struct {
	Title    lipgloss.Style
	Selected lipgloss.Style
	Panel    lipgloss.Style
	Hint     lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Outcome  lipgloss.Style
	Pending  lipgloss.Style
	Alarm    lipgloss.Style

	rule lipgloss.Style
	beam lipgloss.Color
	glow lipgloss.Color
}

func (t Theme) Styles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Beam),
		Selected: lipgloss.NewStyle().Bold(true).Underline(true).Foreground(t.Beam),
		Panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Frame).Padding(0, 1),
		Hint:     lipgloss.NewStyle().Italic(true).Foreground(t.Frame),
		Label:    lipgloss.NewStyle().Foreground(t.Label),
		Value:    lipgloss.NewStyle().Bold(true).Foreground(t.Value),
		Outcome:  lipgloss.NewStyle().Bold(true).Foreground(t.Clear),
		Pending:  lipgloss.NewStyle().Foreground(t.Pending),
		Alarm:    lipgloss.NewStyle().Bold(true).Blink(true).Foreground(t.Alarm),
		rule:     lipgloss.NewStyle().Foreground(t.Frame),
		beam:     t.Beam,
		glow:     t.Glow,
	}
}

// Gradient colours text rune by rune from the beam colour to the glow,
// blending in Lab space.
func (s Styles) Gradient(text string) string {
	from, err := colorful.Hex(string(s.beam))
	if err != nil {
		return s.Title.Render(text)
	}
	to, err := colorful.Hex(string(s.glow))
	if err != nil {
		return s.Title.Render(text)
	}

	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		t := 0.0
		if len(runes) > 1 {
			t = float64(i) / float64(len(runes)-1)
		}
		c := lipgloss.Color(from.BlendLab(to, t).Clamped().Hex())
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(c).Render(string(r)))
	}
	return b.String()
}

// Probability draws p, the share of ones, as a bar of width cells.
func (s Styles) Probability(p float64, width int) string {
	filled := int(math.Round(p * float64(width)))
	filled = min(max(filled, 0), width)
	return s.Outcome.Render(strings.Repeat("█", filled)) +
		s.rule.Render(strings.Repeat("░", width-filled))
}

// Outcomes draws the most recent measured bits, newest last, one cell each.
func (s Styles) Outcomes(bits []float64, width int) string {
	if len(bits) > width {
		bits = bits[len(bits)-width:]
	}
	var b strings.Builder
	for _, v := range bits {
		if v >= 0.5 {
			b.WriteString(s.Outcome.Render("▇"))
		} else {
			b.WriteString(s.Label.Render("▁"))
		}
	}
	return b.String()
}

// Box sets content under a titled rule of the given width.
func (s Styles) Box(title, content string, width int) string {
	fill := max(width-runewidth.StringWidth(title)-4, 0)
	header := s.rule.Render("── ") + s.Title.Render(title) + " " + s.rule.Render(strings.Repeat("─", fill))
	return header + "\n" + lipgloss.NewStyle().Width(width).PaddingLeft(1).Render(content)
}

// Rule is a horizontal divider with a ket at its centre.
func (s Styles) Rule(width int) string {
	width = max(width, 8)
	left := (width - 3) / 2
	return s.rule.Render(strings.Repeat("─", left) + "|ψ⟩" + strings.Repeat("─", width-3-left))
}
