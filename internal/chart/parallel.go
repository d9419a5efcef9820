package chart

import (
	"strconv"

	"github.com/nodescope/area-compare/internal/model"
)

// Parallel chart margins around the plot area.
const (
	pcMarginTop    = 30.0
	pcMarginRight  = 10.0
	pcMarginBottom = 10.0
	pcMarginLeft   = 10.0
	pcPadding      = 0.1
)

var parallelTicks = []float64{0, 0.25, 0.5, 0.75, 1}

// ParallelChart draws one vertical axis per dimension and one polyline per series.
type ParallelChart struct {
	*base
}

// NewParallel builds a parallel-axis chart. Axes come from the first initial series.
func NewParallel(opts Options, initial []model.ChartSeries) (*ParallelChart, error) {
	b, err := newBase(Parallel, opts, initial, drawParallel)
	if err != nil {
		return nil, err
	}
	return &ParallelChart{base: b}, nil
}

// AxisX places axis i of n on a point scale over [0, width] with outer padding.
func AxisX(i, n int, width float64) float64 {
	span := float64(n-1) + 2*pcPadding
	if span < 1 {
		span = 1
	}
	step := width / span
	start := (width - step*float64(n-1)) / 2
	return start + step*float64(i)
}

// ValueY maps a value onto a vertical axis of the given height, low values at the bottom.
func ValueY(value, maxValue, height float64) float64 {
	return height * (1 - value/maxValue)
}

func drawParallel(o Options, axes []string, series []model.ChartSeries, hv *Hover) *Node {
	innerW := o.Width - pcMarginLeft - pcMarginRight
	innerH := o.Height - pcMarginTop - pcMarginBottom
	n := len(axes)

	svg := El("svg",
		"width", o.Width+pcMarginLeft+pcMarginRight,
		"height", o.Height+pcMarginTop+pcMarginBottom,
		"class", "parallel-coordinates",
	)
	g := svg.Append("g", "transform", translate(pcMarginLeft, pcMarginTop))

	lines := make([]string, len(series))
	for si, s := range series {
		pts := make([][2]float64, len(s.Axes))
		for i, a := range s.Axes {
			pts[i] = [2]float64{AxisX(i, n, innerW), ValueY(a.Value, o.MaxValue, innerH)}
		}
		lines[si] = pathData(pts, false)
	}

	background := g.Append("g", "class", "background")
	for si, s := range series {
		opacity := 0.7
		if hv != nil {
			opacity = 0.2
		}
		background.Append("path",
			"class", "line line-"+strconv.Itoa(si),
			"data-series", si,
			"data-label", s.Label,
			"d", lines[si],
			"fill", "none",
			"stroke", o.Colors.Color(si),
			"stroke-width", "3px",
			"opacity", opacity,
		)
	}

	foreground := g.Append("g", "class", "foreground")
	for si, s := range series {
		opacity, width := 0.0, "2px"
		if hv != nil && hv.Series == si {
			opacity, width = 1.0, "4px"
		}
		foreground.Append("path",
			"class", "line line-"+strconv.Itoa(si),
			"data-series", si,
			"data-label", s.Label,
			"d", lines[si],
			"fill", "none",
			"stroke", o.Colors.Color(si),
			"stroke-width", width,
			"opacity", opacity,
		)
	}

	for i, name := range axes {
		dim := g.Append("g", "class", "dimension", "data-axis", name, "transform", translate(AxisX(i, n, innerW), 0))
		dim.Append("line", "y1", 0.0, "y2", innerH, "stroke", "#dddddd", "stroke-width", "1px")
		dim.Append("text",
			"class", "axis-label",
			"y", -9,
			"text-anchor", "middle",
			"font-size", "12px",
			"font-weight", "500",
			"fill", o.Colors.Color(0),
		).SetText(name)

		first, last := i == 0, i == n-1
		for _, t := range parallelTicks {
			v := t * o.MaxValue
			tick := dim.Append("g", "class", "tick", "transform", translate(0, ValueY(v, o.MaxValue, innerH)))
			tick.Append("line", "x1", -4, "x2", 4, "stroke", "#999999", "stroke-width", "1px")
			if !first && !last {
				continue
			}
			x, anchor := 8, "start"
			if first {
				x, anchor = -8, "end"
			}
			tick.Append("text",
				"x", x,
				"dy", "0.32em",
				"text-anchor", anchor,
				"font-size", "10px",
				"fill", "#666666",
			).SetText(strconv.FormatFloat(v, 'f', 2, 64))
		}
	}

	if hv != nil && hv.Series < len(series) {
		svg.Add(tooltip("pc-tooltip", series[hv.Series], hv.X, hv.Y))
	}
	return svg
}
