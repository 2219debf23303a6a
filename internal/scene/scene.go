package scene

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Logical size of every lab drawing.
const (
	Width  = 600
	Height = 400
)

type attr struct {
	key, val string
}

// Element is a node of a retained vector drawing.
type Element struct {
	Tag  string
	Text string

	attrs    []attr
	children []*Element
	parent   *Element
}

// Append adds a child element and returns it.
func (e *Element) Append(tag string) *Element {
	c := &Element{Tag: tag, parent: e}
	e.children = append(e.children, c)
	return c
}

// Attr sets an attribute, replacing any previous value. Values are
// formatted the way they would appear in an SVG document.
func (e *Element) Attr(key string, val any) *Element {
	s := formatValue(val)
	for i := range e.attrs {
		if e.attrs[i].key == key {
			e.attrs[i].val = s
			return e
		}
	}
	e.attrs = append(e.attrs, attr{key, s})
	return e
}

func (e *Element) SetText(s string) *Element {
	e.Text = s
	return e
}

// Get returns an attribute value, or "" when unset.
func (e *Element) Get(key string) string {
	for _, a := range e.attrs {
		if a.key == key {
			return a.val
		}
	}
	return ""
}

// Float parses a numeric attribute. Unset or non-numeric values read as 0.
func (e *Element) Float(key string) float64 {
	v := strings.TrimSuffix(e.Get(key), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// Has reports whether the attribute is set.
func (e *Element) Has(key string) bool {
	for _, a := range e.attrs {
		if a.key == key {
			return true
		}
	}
	return false
}

func (e *Element) Children() []*Element {
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

func (e *Element) Parent() *Element { return e.parent }

// Remove detaches the element from its parent. Removing a detached
// element does nothing.
func (e *Element) Remove() {
	p := e.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == e {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	e.parent = nil
}

// Attached reports whether the element still hangs off a tree.
func (e *Element) Attached() bool { return e.parent != nil }

// Find returns the first descendant with the given id attribute.
func (e *Element) Find(id string) *Element {
	var found *Element
	e.Walk(func(n *Element) bool {
		if n != e && n.Get("id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Count returns the number of descendants.
func (e *Element) Count() int {
	n := 0
	for _, c := range e.children {
		n += 1 + c.Count()
	}
	return n
}

// Walk visits e and its descendants depth first until fn returns false.
func (e *Element) Walk(fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

func (e *Element) write(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent + "<" + e.Tag)
	for _, a := range e.attrs {
		b.WriteString(fmt.Sprintf(` %s="%s"`, a.key, escape(a.val)))
	}
	if e.Text == "" && len(e.children) == 0 {
		b.WriteString("/>\n")
		return
	}
	b.WriteString(">")
	if e.Text != "" {
		b.WriteString(escape(e.Text))
	}
	if len(e.children) > 0 {
		b.WriteString("\n")
		for _, c := range e.children {
			c.write(b, depth+1)
		}
		b.WriteString(indent)
	}
	b.WriteString("</" + e.Tag + ">\n")
}

// Translate formats an SVG translate transform.
func Translate(x, y float64) string {
	return fmt.Sprintf("translate(%s, %s)", formatValue(x), formatValue(y))
}

// ParseTranslate reads the offsets of a translate transform.
func ParseTranslate(s string) (x, y float64, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "translate(") || !strings.HasSuffix(s, ")") {
		return 0, 0, false
	}
	args := strings.FieldsFunc(s[len("translate("):len(s)-1], func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(args) == 0 || len(args) > 2 {
		return 0, 0, false
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, false
	}
	if len(args) == 2 {
		if y, err = strconv.ParseFloat(args[1], 64); err != nil {
			return 0, 0, false
		}
	}
	return x, y, true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(round2(t), 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
