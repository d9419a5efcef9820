package chart

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
)

// EncodePNG rasterizes a scene on a white background. It understands the
// elements the chart renderers emit: g with translate, circle, line, rect,
// path (M/L/Z) and text with tspan lines.
func EncodePNG(w io.Writer, root *Node) error {
	if root == nil {
		return eris.New("chart: nothing rendered")
	}
	width, ok1 := root.Float("width")
	height, ok2 := root.Float("height")
	if !ok1 || !ok2 || width <= 0 || height <= 0 {
		return eris.New("chart: scene has no size")
	}

	dc := gg.NewContext(int(math.Ceil(width)), int(math.Ceil(height)))
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	for _, c := range root.Children {
		paint(dc, c, 1)
	}
	return eris.Wrap(dc.EncodePNG(w), "chart: encode png")
}

func paint(dc *gg.Context, n *Node, opacity float64) {
	if o, ok := n.Float("opacity"); ok {
		opacity *= o
	}
	if opacity <= 0 {
		return
	}

	dc.Push()
	defer dc.Pop()
	if tr := n.Get("transform"); tr != "" {
		var x, y float64
		if _, err := fmt.Sscanf(tr, "translate(%f,%f)", &x, &y); err == nil {
			dc.Translate(x, y)
		}
	}

	switch n.Tag {
	case "g":
		for _, c := range n.Children {
			paint(dc, c, opacity)
		}
	case "circle":
		cx, _ := n.Float("cx")
		cy, _ := n.Float("cy")
		r, _ := n.Float("r")
		dc.DrawCircle(cx, cy, r)
		fillAndStroke(dc, n, opacity)
	case "line":
		x1, _ := n.Float("x1")
		y1, _ := n.Float("y1")
		x2, _ := n.Float("x2")
		y2, _ := n.Float("y2")
		dc.DrawLine(x1, y1, x2, y2)
		fillAndStroke(dc, n, opacity)
	case "rect":
		x, _ := n.Float("x")
		y, _ := n.Float("y")
		rw, _ := n.Float("width")
		rh, _ := n.Float("height")
		rx, _ := n.Float("rx")
		dc.DrawRoundedRectangle(x, y, rw, rh, rx)
		fillAndStroke(dc, n, opacity)
	case "path":
		tracePath(dc, n.Get("d"))
		fillAndStroke(dc, n, opacity)
	case "text":
		paintText(dc, n, opacity)
	}
}

func fillAndStroke(dc *gg.Context, n *Node, opacity float64) {
	defer dc.ClearPath()

	fill, ok := n.Lookup("fill")
	if !ok && n.Tag != "line" {
		fill = "#000000"
	}
	if c, ok := parseColor(fill); ok {
		a := opacity
		if fo, ok := n.Float("fill-opacity"); ok {
			a *= fo
		}
		dc.SetRGBA(c.R, c.G, c.B, a)
		dc.FillPreserve()
	}

	if c, ok := parseColor(n.Get("stroke")); ok {
		width := 1.0
		if sw, ok := n.Float("stroke-width"); ok {
			width = sw
		}
		dc.SetRGBA(c.R, c.G, c.B, opacity)
		dc.SetLineWidth(width)
		dc.StrokePreserve()
	}
}

func paintText(dc *gg.Context, n *Node, opacity float64) {
	x, _ := n.Float("x")
	y, _ := n.Float("y")
	c, ok := parseColor(n.Get("fill"))
	if !ok {
		c = colorful.Color{}
	}
	dc.SetRGBA(c.R, c.G, c.B, opacity)

	ax := 0.0
	switch n.Get("text-anchor") {
	case "middle":
		ax = 0.5
	case "end":
		ax = 1
	}
	ay := 0.0
	if n.Get("dy") != "" {
		ay = 0.35
	}

	if n.Text != "" {
		dc.DrawStringAnchored(n.Text, x, y, ax, ay)
	}
	lineHeight := dc.FontHeight() * 1.2
	for i, span := range n.Children {
		if span.Tag != "tspan" || span.Text == "" {
			continue
		}
		dc.DrawStringAnchored(span.Text, x, y+float64(i+1)*lineHeight, ax, 0)
	}
}

// tracePath follows the absolute M, L and Z commands pathData writes.
func tracePath(dc *gg.Context, d string) {
	for _, tok := range strings.Fields(d) {
		switch {
		case tok == "Z":
			dc.ClosePath()
		case strings.HasPrefix(tok, "M"), strings.HasPrefix(tok, "L"):
			xs, ys, ok := strings.Cut(tok[1:], ",")
			if !ok {
				continue
			}
			x, err1 := strconv.ParseFloat(xs, 64)
			y, err2 := strconv.ParseFloat(ys, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			if tok[0] == 'M' {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
	}
}

func parseColor(s string) (colorful.Color, bool) {
	if s == "" || s == "none" {
		return colorful.Color{}, false
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}
