package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/qlab/internal/scene"
	"github.com/san-kum/qlab/internal/viz"
)

const background = "#0f172a"

// SceneSVG returns the lab drawing as a standalone SVG document on a dark
// background.
func SceneSVG(s *scene.Surface) string {
	doc := s.SVG()
	// the background goes right after the opening <svg ...> tag
	i := strings.Index(doc, "<svg")
	if i < 0 {
		return doc
	}
	j := strings.Index(doc[i:], ">")
	if j < 0 {
		return doc
	}
	at := i + j + 1
	bg := fmt.Sprintf("\n  <rect width=\"%d\" height=\"%d\" fill=\"%s\"/>", scene.Width, scene.Height, background)
	if strings.HasPrefix(doc[at-2:], "/>") {
		// empty drawing
		return doc[:at-2] + ">" + bg + "\n</svg>\n"
	}
	return doc[:at] + bg + doc[at:]
}

// CanvasToSVG converts a Braille canvas to SVG format, keeping cell colours.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2   // 2 sub-pixels per char
	height := float64(canvas.Height) * scale * 4 // 4 sub-pixels per char

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))

	// Braille dot-to-bit mapping
	pixelMap := [4][2]int{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}

	dotRadius := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			r := canvas.Grid[row][col]
			if r <= 0x2800 {
				continue
			}
			pattern := int(r - 0x2800)
			fill := canvas.Colors[row][col]
			if fill == "" {
				fill = "#00ff00"
			}

			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4

			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] != 0 {
						cx := baseX + float64(dx)*scale + scale/2
						cy := baseY + float64(dy)*scale + scale/2
						sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>
`, cx, cy, dotRadius, fill))
					}
				}
			}
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SeriesToSVG plots values in [0,1] (a running outcome frequency) as a
// polyline with a dashed reference line at target.
func SeriesToSVG(values []float64, width, height int, target float64, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	var sb strings.Builder

	ty := float64(height) - target*float64(height)
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#475569" stroke-dasharray="4,4"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, ty, width, ty, strokeColor))

	last := float64(len(values) - 1)
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		x := float64(i) / last * float64(width)
		y := float64(height) - v*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
