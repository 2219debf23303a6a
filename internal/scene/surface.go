package scene

import "strings"

// Surface is the root of a 600x400 drawing that scales to its container
// while keeping its aspect ratio.
type Surface struct {
	root *Element
}

func NewSurface() *Surface {
	root := &Element{Tag: "svg"}
	root.Attr("xmlns", "http://www.w3.org/2000/svg").
		Attr("viewBox", "0 0 600 400").
		Attr("preserveAspectRatio", "xMidYMid meet")
	return &Surface{root: root}
}

func (s *Surface) Root() *Element { return s.root }

func (s *Surface) Append(tag string) *Element { return s.root.Append(tag) }

// Clear removes every element from the drawing.
func (s *Surface) Clear() {
	for _, c := range s.root.children {
		c.parent = nil
	}
	s.root.children = nil
}

// Len is the number of top-level elements.
func (s *Surface) Len() int { return len(s.root.children) }

// Count is the number of elements at any depth.
func (s *Surface) Count() int { return s.root.Count() }

func (s *Surface) Find(id string) *Element { return s.root.Find(id) }

// SVG serializes the drawing as a standalone document.
func (s *Surface) SVG() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	s.root.write(&b, 0)
	return b.String()
}

// Fragment serializes only the <svg> element, for embedding in a page.
func (s *Surface) Fragment() string {
	var b strings.Builder
	s.root.write(&b, 0)
	return b.String()
}
