package viz

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestProbabilityWidth(t *testing.T) {
	st := GetTheme("slate").Styles()

	for _, p := range []float64{-0.5, 0, 0.25, 0.5, 1, 3} {
		bar := st.Probability(p, 12)
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 12 {
			t.Errorf("p=%v: expected 12 cells, got %d", p, got)
		}
	}
	bar := st.Probability(0.5, 10)
	if strings.Count(bar, "█") != 5 || strings.Count(bar, "░") != 5 {
		t.Errorf("expected half-filled bar, got %q", bar)
	}
}

func TestOutcomesKeepsNewest(t *testing.T) {
	st := GetTheme("slate").Styles()

	got := st.Outcomes([]float64{1, 1, 1, 0, 0}, 3)
	if strings.Count(got, "▇") != 1 || strings.Count(got, "▁") != 2 {
		t.Errorf("expected the last three bits (1 0 0), got %q", got)
	}
}

func TestGradient(t *testing.T) {
	st := GetTheme("bloch").Styles()
	if st.Gradient("") != "" {
		t.Error("empty text should stay empty")
	}
	if got := st.Gradient("量子通信"); lipgloss.Width(got) != 8 {
		t.Errorf("expected 8 cells, got %d", lipgloss.Width(got))
	}
}

func TestBoxAndRule(t *testing.T) {
	st := GetTheme("chalk").Styles()

	box := st.Box("核心原理", "content", 30)
	if !strings.Contains(box, "核心原理") || !strings.Contains(box, "content") {
		t.Errorf("unexpected box:\n%s", box)
	}
	rule := st.Rule(40)
	if !strings.Contains(rule, "|ψ⟩") || strings.Count(rule, "─") != 37 {
		t.Errorf("unexpected rule %q", rule)
	}
}
