package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours the lab chrome. Scene drawings keep their own colours
// unless the theme is mono.
type Theme struct {
	Name string
	Mono bool

	Beam    lipgloss.Color // titles, selection, mono ink
	Glow    lipgloss.Color // far end of the title gradient
	Frame   lipgloss.Color // borders, rules, key hints
	Label   lipgloss.Color
	Value   lipgloss.Color
	Clear   lipgloss.Color // a settled measurement
	Pending lipgloss.Color // still in superposition
	Alarm   lipgloss.Color // eavesdropper on the channel
}

// Themes lists the built-in themes; the first is the default.
var Themes = []Theme{
	{
		Name: "slate",
		Beam: "#22d3ee", Glow: "#818cf8", Frame: "#334155",
		Label: "#94a3b8", Value: "#e2e8f0",
		Clear: "#34d399", Pending: "#fbbf24", Alarm: "#f87171",
	},
	{
		Name: "bloch",
		Beam: "#60a5fa", Glow: "#c084fc", Frame: "#1e3a8a",
		Label: "#93c5fd", Value: "#eff6ff",
		Clear: "#2dd4bf", Pending: "#facc15", Alarm: "#fb7185",
	},
	{
		Name: "photon",
		Beam: "#fb923c", Glow: "#f472b6", Frame: "#57534e",
		Label: "#d6d3d1", Value: "#fafaf9",
		Clear: "#a3e635", Pending: "#fde047", Alarm: "#ef4444",
	},
	{
		Name: "phosphor", Mono: true,
		Beam: "#4ade80", Glow: "#bbf7d0", Frame: "#166534",
		Label: "#22c55e", Value: "#dcfce7",
		Clear: "#86efac", Pending: "#4ade80", Alarm: "#f0fdf4",
	},
	{
		Name: "chalk", Mono: true,
		Beam: "#f8fafc", Glow: "#94a3b8", Frame: "#475569",
		Label: "#cbd5e1", Value: "#ffffff",
		Clear: "#f8fafc", Pending: "#cbd5e1", Alarm: "#ffffff",
	},
}

func themeIndex(name string) int {
	for i, t := range Themes {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// GetTheme returns the named theme, or the default for unknown names.
func GetTheme(name string) Theme {
	if i := themeIndex(name); i >= 0 {
		return Themes[i]
	}
	return Themes[0]
}

func HasTheme(name string) bool { return themeIndex(name) >= 0 }

// NextTheme cycles through Themes after name.
func NextTheme(name string) Theme {
	return Themes[(themeIndex(name)+1)%len(Themes)]
}

// Ink maps a drawing colour to the colour shown in this theme.
func (t Theme) Ink(c string) lipgloss.Color {
	if t.Mono || c == "" {
		return t.Beam
	}
	return lipgloss.Color(c)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
