package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const (
	blank = rune(0x2800)
	// wideTail marks the second cell of a double-width text rune.
	wideTail = rune(-1)
)

// Canvas is a Braille dot grid with one colour per cell and a text layer
// drawn over the dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
	Colors        [][]string

	// Pen is the colour recorded for cells touched by Set.
	Pen string

	text [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		Colors: make([][]string, h),
		text:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		c.Colors[i] = make([]string, w)
		c.text[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// Set sets a pixel at (x, y) where x,y are in "sub-pixel" coordinates.
// The canvas size in sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
	if c.Pen != "" {
		c.Colors[row][col] = c.Pen
	}
}

// Unset clears a pixel
func (c *Canvas) Unset(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] &= ^rune(pixelMap[y%4][x%2])
	if c.Grid[row][col] < blank {
		c.Grid[row][col] = blank
	}
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
			c.Colors[i][j] = ""
			c.text[i][j] = 0
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	c.DrawDashedLine(x0, y0, x1, y1, 0, 0)
}

// DrawDashedLine draws on dots, skips off dots, and repeats. A zero off
// draws a solid line.
func (c *Canvas) DrawDashedLine(x0, y0, x1, y1, on, off int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for i := 0; ; i++ {
		if off <= 0 || on <= 0 || i%(on+off) < on {
			c.Set(x0, y0)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawCircle strokes a circle outline. A positive dash breaks the outline
// into arcs of that many dots.
func (c *Canvas) DrawCircle(cx, cy, r, dash int) {
	if r <= 0 {
		c.Set(cx, cy)
		return
	}
	// midpoint circle, one octant mirrored eight ways
	x, y := r, 0
	d := 1 - r
	i := 0
	for x >= y {
		if dash <= 0 || (i/dash)%2 == 0 {
			for _, p := range [8][2]int{
				{x, y}, {y, x}, {-y, x}, {-x, y},
				{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
			} {
				c.Set(cx+p[0], cy+p[1])
			}
		}
		y++
		i++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

func (c *Canvas) FillCircle(cx, cy, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				c.Set(cx+dx, cy+dy)
			}
		}
	}
}

// Text writes s starting at cell (col, row) over the dot layer. Double
// width runes take two cells; anything past the right edge is dropped.
func (c *Canvas) Text(col, row int, s, color string) {
	if row < 0 || row >= c.Height {
		return
	}
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > c.Width {
			return
		}
		if col >= 0 {
			c.text[row][col] = r
			c.Colors[row][col] = color
			if w == 2 {
				c.text[row][col+1] = wideTail
			}
		}
		col += w
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for i := range c.Grid {
		for j := range c.Grid[i] {
			if r, ok := c.cell(i, j); ok {
				b.WriteRune(r)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Render is String with each cell coloured through the theme.
func (c *Canvas) Render(t Theme) string {
	var b strings.Builder
	for i := range c.Grid {
		var run strings.Builder
		color := ""
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if color == "" {
				b.WriteString(run.String())
			} else {
				b.WriteString(lipgloss.NewStyle().Foreground(t.Ink(color)).Render(run.String()))
			}
			run.Reset()
		}
		for j := range c.Grid[i] {
			r, ok := c.cell(i, j)
			if !ok {
				continue
			}
			cc := c.Colors[i][j]
			if r == blank {
				cc = ""
			}
			if cc != color {
				flush()
				color = cc
			}
			run.WriteRune(r)
		}
		flush()
		b.WriteString("\n")
	}
	return b.String()
}

func (c *Canvas) cell(row, col int) (rune, bool) {
	switch t := c.text[row][col]; t {
	case wideTail:
		return 0, false
	case 0:
		return c.Grid[row][col], true
	default:
		return t, true
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
