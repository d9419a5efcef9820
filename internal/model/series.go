package model

import "fmt"

// NeutralValue fills undefined dimensions so a chart always has complete geometry.
const NeutralValue = 0.2

// AxisValue is one {axis, value} pair of a chart series.
type AxisValue struct {
	Axis  string  `json:"axis" yaml:"axis"`
	Value float64 `json:"value" yaml:"value"`
}

// ChartSeries is one labeled shape on a chart.
type ChartSeries struct {
	Label string      `json:"label" yaml:"label"`
	Axes  []AxisValue `json:"axes" yaml:"axes"`
}

// SlotLabel names the series for selection slot i (0-based).
func SlotLabel(i int) string {
	return fmt.Sprintf("area %d", i+1)
}

// NewSeries renders v over the fixed dimension list, substituting
// NeutralValue for undefined dimensions.
func NewSeries(label string, v MetricVector) ChartSeries {
	axes := make([]AxisValue, 0, NumDimensions)
	for _, d := range Dimensions() {
		val, ok := v.Get(d)
		if !ok {
			val = NeutralValue
		}
		axes = append(axes, AxisValue{Axis: d.String(), Value: val})
	}
	return ChartSeries{Label: label, Axes: axes}
}

// DefaultSeries is the placeholder pair shown before any comparison and after reset.
func DefaultSeries() []ChartSeries {
	return []ChartSeries{
		NewSeries(SlotLabel(0), MetricVector{}),
		NewSeries(SlotLabel(1), MetricVector{}),
	}
}

// AxisNames lists the axis names of s in order.
func (s ChartSeries) AxisNames() []string {
	out := make([]string, len(s.Axes))
	for i, a := range s.Axes {
		out[i] = a.Axis
	}
	return out
}

// Clone returns a deep copy so callers can hand series over by value.
func (s ChartSeries) Clone() ChartSeries {
	axes := make([]AxisValue, len(s.Axes))
	copy(axes, s.Axes)
	return ChartSeries{Label: s.Label, Axes: axes}
}

// CloneSeries deep-copies a slice of series.
func CloneSeries(in []ChartSeries) []ChartSeries {
	out := make([]ChartSeries, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
