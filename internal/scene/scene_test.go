package scene

import (
	"strings"
	"testing"
)

func TestAttrReplaces(t *testing.T) {
	s := NewSurface()
	c := s.Append("circle").Attr("r", 15).Attr("cx", 1.234).Attr("r", 20)

	if got := c.Get("r"); got != "20" {
		t.Errorf("expected r=20, got %s", got)
	}
	if got := c.Float("cx"); got != 1.23 {
		t.Errorf("expected cx=1.23, got %v", got)
	}
	if c.Has("cy") {
		t.Error("cy should be unset")
	}
	if got := s.Append("text").Attr("font-size", "24px").Float("font-size"); got != 24 {
		t.Errorf("expected font-size 24, got %v", got)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := NewSurface()
	g := s.Append("g")
	a := g.Append("circle").Attr("id", "a")
	g.Append("text").Attr("id", "b")

	if s.Len() != 1 || s.Count() != 3 {
		t.Fatalf("expected 1 top-level and 3 total, got %d and %d", s.Len(), s.Count())
	}
	if s.Find("b") == nil {
		t.Error("expected to find b")
	}

	a.Remove()
	a.Remove()
	if a.Attached() {
		t.Error("removed element should be detached")
	}
	if s.Count() != 2 || s.Find("a") != nil {
		t.Errorf("expected a to be gone, count %d", s.Count())
	}

	s.Clear()
	if s.Len() != 0 || s.Count() != 0 {
		t.Errorf("expected empty surface, got %d", s.Count())
	}
	if g.Attached() {
		t.Error("cleared element should be detached")
	}
}

func TestSVG(t *testing.T) {
	s := NewSurface()
	s.Append("text").Attr("x", 300).SetText("a < b & 坍缩")
	s.Append("circle").Attr("r", 8)

	out := s.SVG()
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`viewBox="0 0 600 400"`,
		`preserveAspectRatio="xMidYMid meet"`,
		`<text x="300">a &lt; b &amp; 坍缩</text>`,
		`<circle r="8"/>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected svg to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(s.Fragment(), "<?xml") {
		t.Error("fragment should not carry an xml header")
	}
}

func TestTranslate(t *testing.T) {
	tr := Translate(300, 200)
	if tr != "translate(300, 200)" {
		t.Errorf("unexpected transform %s", tr)
	}

	tests := []struct {
		in   string
		x, y float64
		ok   bool
	}{
		{"translate(300, 200)", 300, 200, true},
		{"translate(12.5,-4)", 12.5, -4, true},
		{"translate(7)", 7, 0, true},
		{"rotate(45)", 0, 0, false},
		{"translate(a, b)", 0, 0, false},
	}
	for _, tt := range tests {
		x, y, ok := ParseTranslate(tt.in)
		if ok != tt.ok || x != tt.x || y != tt.y {
			t.Errorf("%s: expected (%v,%v,%v), got (%v,%v,%v)", tt.in, tt.x, tt.y, tt.ok, x, y, ok)
		}
	}
}
