package viz

import (
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/san-kum/qlab/internal/scene"
)

// Elements fainter than this are not drawn; a fading label disappears
// before its opacity reaches zero.
const minOpacity = 0.2

// fit maps scene units onto canvas dots, preserving the aspect ratio and
// centring the drawing.
type fit struct {
	scale, ox, oy float64
}

func newFit(w, h int) fit {
	scale := math.Min(float64(w)/scene.Width, float64(h)/scene.Height)
	return fit{
		scale: scale,
		ox:    (float64(w) - scene.Width*scale) / 2,
		oy:    (float64(h) - scene.Height*scale) / 2,
	}
}

func (f fit) point(x, y float64) (int, int) {
	return int(math.Round(f.ox + x*f.scale)), int(math.Round(f.oy + y*f.scale))
}

func (f fit) length(v float64) int {
	return int(math.Round(v * f.scale))
}

// Rasterize draws the surface onto a canvas of cols x rows cells.
func Rasterize(s *scene.Surface, cols, rows int) *Canvas {
	c := NewCanvas(cols, rows)
	f := newFit(cols*2, rows*4)
	for _, e := range s.Root().Children() {
		drawElement(c, f, e, 0, 0, 1)
	}
	return c
}

func drawElement(c *Canvas, f fit, e *scene.Element, dx, dy, opacity float64) {
	if e.Has("opacity") {
		opacity *= e.Float("opacity")
	}
	if opacity < minOpacity {
		return
	}

	switch e.Tag {
	case "g":
		if tx, ty, ok := scene.ParseTranslate(e.Get("transform")); ok {
			dx += tx
			dy += ty
		}
		for _, child := range e.Children() {
			drawElement(c, f, child, dx, dy, opacity)
		}

	case "circle":
		x, y := f.point(dx+e.Float("cx"), dy+e.Float("cy"))
		r := f.length(e.Float("r"))
		fill := paint(e.Get("fill"))
		if fill != "" {
			c.Pen = fill
			c.FillCircle(x, y, r)
			return
		}
		c.Pen = paint(e.Get("stroke"))
		c.DrawCircle(x, y, r, dash(e, f))

	case "line":
		x0, y0 := f.point(dx+e.Float("x1"), dy+e.Float("y1"))
		x1, y1 := f.point(dx+e.Float("x2"), dy+e.Float("y2"))
		c.Pen = paint(e.Get("stroke"))
		d := dash(e, f)
		c.DrawDashedLine(x0, y0, x1, y1, d, d)

	case "text":
		if e.Text == "" {
			return
		}
		x, y := f.point(dx+e.Float("x"), dy+e.Float("y")+offset(e.Get("dy")))
		col, row := x/2, y/4
		switch e.Get("text-anchor") {
		case "middle":
			col -= runewidth.StringWidth(e.Text) / 2
		case "end":
			col -= runewidth.StringWidth(e.Text)
		}
		c.Text(col, row, e.Text, paint(e.Get("fill")))
	}
}

// dash is the dot length of the element's dash pattern, or 0 when solid.
func dash(e *scene.Element, f fit) int {
	v := e.Get("stroke-dasharray")
	if v == "" || v == "none" {
		return 0
	}
	first := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	if len(first) == 0 {
		return 0
	}
	n, err := strconv.ParseFloat(first[0], 64)
	if err != nil {
		return 0
	}
	if d := f.length(n); d > 0 {
		return d
	}
	return 1
}

// offset reads a numeric dy attribute; em offsets only centre glyphs
// vertically and have no effect on a cell grid.
func offset(v string) float64 {
	if v == "" || strings.HasSuffix(v, "em") {
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil {
		return 0
	}
	return n
}

var namedColors = map[string]string{
	"white": "#ffffff",
	"black": "#000000",
	"red":   "#ff0000",
}

// paint normalizes an SVG paint value to a hex colour, or "" for none.
func paint(v string) string {
	if v == "" || v == "none" || strings.HasPrefix(v, "url(") {
		return ""
	}
	if hex, ok := namedColors[v]; ok {
		return hex
	}
	return v
}
