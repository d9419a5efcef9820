package chart

import (
	"math"
	"strconv"

	"github.com/nodescope/area-compare/internal/model"
)

const (
	gridColor      = "#CDCDCD"
	spokeColor     = "#ffffff"
	labelColor     = "#737373"
	dimmedOpacity  = 0.1
	hoveredOpacity = 0.7
)

// RadialChart is a spider chart: one spoke per axis, one closed polygon per series.
type RadialChart struct {
	*base
}

// NewRadial builds a radial chart. Axes come from the first initial series.
func NewRadial(opts Options, initial []model.ChartSeries) (*RadialChart, error) {
	b, err := newBase(Radial, opts, initial, drawRadial)
	if err != nil {
		return nil, err
	}
	return &RadialChart{base: b}, nil
}

// radialRadius is the outer ring radius for o.
func radialRadius(o Options) float64 {
	return math.Min(o.Width/2, o.Height/2)
}

// RadialPoint maps value on axis i of n to chart-local coordinates. Axis 0
// points straight up and axes advance clockwise.
func RadialPoint(radius, value, maxValue float64, i, n int) (x, y float64) {
	angle := float64(i)*2*math.Pi/float64(n) - math.Pi/2
	r := radius * value / maxValue
	return r * math.Cos(angle), r * math.Sin(angle)
}

func levelLabel(level, levels int, maxValue float64) string {
	v := math.Round(float64(level)*maxValue/float64(levels)*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func drawRadial(o Options, axes []string, series []model.ChartSeries, hv *Hover) *Node {
	radius := radialRadius(o)
	n := len(axes)

	svg := El("svg",
		"width", o.Width+o.Margin,
		"height", o.Height+o.Margin,
		"class", "radar-chart",
	)
	g := svg.Append("g", "transform", translate(o.Width/2+o.Margin/2, o.Height/2+o.Margin/2))

	grid := g.Append("g", "class", "axisWrapper")
	for level := o.Levels; level >= 1; level-- {
		grid.Append("circle",
			"class", "gridCircle",
			"r", radius*float64(level)/float64(o.Levels),
			"fill", gridColor,
			"stroke", gridColor,
			"fill-opacity", o.OpacityCircles,
		)
	}
	for level := 1; level <= o.Levels; level++ {
		grid.Append("text",
			"class", "levelLabel",
			"x", 4,
			"y", -radius*float64(level)/float64(o.Levels),
			"dy", "0.4em",
			"font-size", "10px",
			"fill", labelColor,
		).SetText(levelLabel(level, o.Levels, o.MaxValue))
	}

	for i, name := range axes {
		ax := grid.Append("g", "class", "axis", "data-axis", name)
		x2, y2 := RadialPoint(radius, o.MaxValue, o.MaxValue, i, n)
		ax.Append("line",
			"class", "line",
			"x1", 0.0, "y1", 0.0,
			"x2", x2, "y2", y2,
			"stroke", spokeColor,
			"stroke-width", "2px",
		)
		lx, ly := RadialPoint(radius*o.LabelFactor, o.MaxValue, o.MaxValue, i, n)
		ax.Append("text",
			"class", "legend",
			"x", lx, "y", ly,
			"dy", "0.35em",
			"text-anchor", "middle",
			"font-size", "11px",
		).SetText(name)
	}

	for si, s := range series {
		color := o.Colors.Color(si)
		wrapper := g.Append("g",
			"class", "radarWrapper",
			"data-series", si,
			"data-label", s.Label,
		)
		fillOpacity := o.OpacityArea
		if hv != nil {
			if hv.Series == si {
				fillOpacity = hoveredOpacity
			} else {
				fillOpacity = dimmedOpacity
				wrapper.Set("class", "radarWrapper dimmed")
			}
		}

		pts := make([][2]float64, len(s.Axes))
		for i, a := range s.Axes {
			x, y := RadialPoint(radius, a.Value, o.MaxValue, i, n)
			pts[i] = [2]float64{x, y}
		}
		d := pathData(pts, true)
		wrapper.Append("path",
			"class", "radarArea",
			"d", d,
			"fill", color,
			"fill-opacity", fillOpacity,
		)
		wrapper.Append("path",
			"class", "radarStroke",
			"d", d,
			"fill", "none",
			"stroke", color,
			"stroke-width", num(o.StrokeWidth)+"px",
		)
		for i, a := range s.Axes {
			wrapper.Append("circle",
				"class", "radarCircle",
				"r", o.DotRadius,
				"cx", pts[i][0],
				"cy", pts[i][1],
				"fill", color,
				"fill-opacity", 0.8,
				"data-axis", a.Axis,
				"data-value", exact(a.Value),
			)
		}
	}

	if hv != nil && hv.Series < len(series) {
		svg.Add(tooltip("tooltip", series[hv.Series], hv.X, hv.Y))
	}
	return svg
}

// tooltip builds the hover box: the series label, then one "Axis: NN%" line per axis.
func tooltip(class string, s model.ChartSeries, x, y float64) *Node {
	const (
		lineHeight = 13.2
		charWidth  = 6.5
	)
	lines := []string{s.Label}
	for _, a := range s.Axes {
		lines = append(lines, percent(a.Axis, a.Value))
	}
	widest := 0
	for _, l := range lines {
		widest = max(widest, len(l))
	}

	tip := El("g", "class", class, "transform", translate(x+10, y-10), "pointer-events", "none")
	tip.Append("rect",
		"x", -8.0, "y", -4.0,
		"width", float64(widest)*charWidth+16,
		"height", float64(len(lines))*lineHeight+8,
		"rx", 4, "ry", 4,
		"fill", "#ffffff",
		"stroke", "#999999",
		"stroke-width", 1,
	)
	text := tip.Append("text", "class", "tooltip-text", "font-size", "11px", "fill", "#333333")
	for i, l := range lines {
		span := text.Append("tspan", "x", 0, "dy", "1.2em")
		if i == 0 {
			span.Set("font-weight", "bold")
		}
		span.SetText(l)
	}
	return tip
}
