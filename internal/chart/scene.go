package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Attr is one SVG attribute. Order is preserved on output.
type Attr struct {
	Name  string
	Value string
}

// Node is an element of a rendered chart scene.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Node
}

// El creates a node from alternating name/value pairs.
func El(tag string, kv ...any) *Node {
	n := &Node{Tag: tag}
	for i := 0; i+1 < len(kv); i += 2 {
		name, _ := kv[i].(string)
		n.Set(name, kv[i+1])
	}
	return n
}

// Set adds or replaces an attribute. Numbers are formatted compactly.
func (n *Node) Set(name string, v any) *Node {
	val := attrValue(v)
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = val
			return n
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: val})
	return n
}

// Get returns an attribute value, or "" when absent.
func (n *Node) Get(name string) string {
	v, _ := n.Lookup(name)
	return v
}

// Lookup returns an attribute value and whether it is present.
func (n *Node) Lookup(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Float parses a numeric attribute, ignoring a trailing "px".
func (n *Node) Float(name string) (float64, bool) {
	v, ok := n.Lookup(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Append creates a child element and returns it.
func (n *Node) Append(tag string, kv ...any) *Node {
	c := El(tag, kv...)
	n.Children = append(n.Children, c)
	return c
}

// SetText sets the character data of n.
func (n *Node) SetText(s string) *Node {
	n.Text = s
	return n
}

// HasClass reports whether the class attribute contains class.
func (n *Node) HasClass(class string) bool {
	for _, c := range strings.Fields(n.Get("class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants depth-first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// FindAll returns every node in the subtree matching pred, in document order.
func (n *Node) FindAll(pred func(*Node) bool) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// ByClass returns every node carrying class.
func (n *Node) ByClass(class string) []*Node {
	return n.FindAll(func(c *Node) bool { return c.HasClass(class) })
}

// Clone deep-copies the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Tag: n.Tag, Text: n.Text}
	c.Attrs = append([]Attr(nil), n.Attrs...)
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return c
}

func attrValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return num(t)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// num formats a coordinate with at most 4 decimals.
func num(v float64) string {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// exact formats a data value without rounding.
func exact(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func translate(x, y float64) string {
	return "translate(" + num(x) + "," + num(y) + ")"
}

// pathData builds an "M x,y L x,y ..." path, closed with Z when closed is set.
func pathData(pts [][2]float64, closed bool) string {
	var b strings.Builder
	for i, p := range pts {
		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString(" L")
		}
		b.WriteString(num(p[0]))
		b.WriteByte(',')
		b.WriteString(num(p[1]))
	}
	if closed && len(pts) > 0 {
		b.WriteString(" Z")
	}
	return b.String()
}
