package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Dimension is one axis of the area-quality score.
type Dimension int

const (
	Proximity Dimension = iota
	Density
	Entropy
	Accessibility
	Closeness

	NumDimensions = 5
)

var dimensionNames = [NumDimensions]string{"Proximity", "Density", "Entropy", "Accessibility", "Closeness"}

func (d Dimension) String() string {
	if d < 0 || int(d) >= NumDimensions {
		return "Unknown"
	}
	return dimensionNames[d]
}

// key is the lower-case JSON key for d.
func (d Dimension) key() string {
	return strings.ToLower(d.String())
}

// Dimensions returns the fixed dimension order shared by every vector and chart.
func Dimensions() []Dimension {
	return []Dimension{Proximity, Density, Entropy, Accessibility, Closeness}
}

// DimensionNames returns the axis names in dimension order.
func DimensionNames() []string {
	out := make([]string, NumDimensions)
	copy(out, dimensionNames[:])
	return out
}

// ParseDimension resolves an axis name case-insensitively.
func ParseDimension(name string) (Dimension, bool) {
	for i, n := range dimensionNames {
		if strings.EqualFold(n, name) {
			return Dimension(i), true
		}
	}
	return 0, false
}

// MetricVector maps each dimension to a score or to "not available".
// The zero value has every dimension undefined.
type MetricVector struct {
	values  [NumDimensions]float64
	present [NumDimensions]bool
}

// NewMetricVector builds a fully-defined vector in dimension order.
func NewMetricVector(proximity, density, entropy, accessibility, closeness float64) MetricVector {
	var v MetricVector
	v.Set(Proximity, proximity)
	v.Set(Density, density)
	v.Set(Entropy, entropy)
	v.Set(Accessibility, accessibility)
	v.Set(Closeness, closeness)
	return v
}

// Get returns the value for d and whether it is defined.
func (v MetricVector) Get(d Dimension) (float64, bool) {
	if d < 0 || int(d) >= NumDimensions {
		return 0, false
	}
	return v.values[d], v.present[d]
}

// Set defines d.
func (v *MetricVector) Set(d Dimension, value float64) {
	if d < 0 || int(d) >= NumDimensions {
		return
	}
	v.values[d] = value
	v.present[d] = true
}

// Unset marks d as not available.
func (v *MetricVector) Unset(d Dimension) {
	if d < 0 || int(d) >= NumDimensions {
		return
	}
	v.values[d] = 0
	v.present[d] = false
}

// Defined counts the dimensions that carry a value.
func (v MetricVector) Defined() int {
	n := 0
	for _, ok := range v.present {
		if ok {
			n++
		}
	}
	return n
}

// MarshalJSON writes {"proximity": 0.8, ..., "closeness": null}.
func (v MetricVector) MarshalJSON() ([]byte, error) {
	out := make(map[string]*float64, NumDimensions)
	for _, d := range Dimensions() {
		if val, ok := v.Get(d); ok {
			out[d.key()] = &val
		} else {
			out[d.key()] = nil
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form produced by MarshalJSON. Unknown keys are ignored.
func (v *MetricVector) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode metric vector")
	}
	*v = MetricVector{}
	for k, val := range raw {
		d, ok := ParseDimension(k)
		if !ok || val == nil {
			continue
		}
		v.Set(d, *val)
	}
	return nil
}

// PointMetrics is the per-point analysis response. Every field may be null.
type PointMetrics struct {
	ProximityScore   *float64 `json:"proximity_score"`
	DensityScore     *float64 `json:"density_score"`
	EntropyScore     *float64 `json:"entropy_score"`
	PoiAccessibility *float64 `json:"poi_accessibility"`
	Closeness        *float64 `json:"closeness"`
}

// Vector converts the response into a MetricVector, leaving null fields undefined.
func (p PointMetrics) Vector() MetricVector {
	var v MetricVector
	fields := [NumDimensions]*float64{p.ProximityScore, p.DensityScore, p.EntropyScore, p.PoiAccessibility, p.Closeness}
	for i, f := range fields {
		if f != nil {
			v.Set(Dimension(i), *f)
		}
	}
	return v
}

// Accumulator collects per-dimension running lists and averages them.
type Accumulator struct {
	sums   [NumDimensions]float64
	counts [NumDimensions]int
}

// Add appends every defined dimension of v.
func (a *Accumulator) Add(v MetricVector) {
	for _, d := range Dimensions() {
		if val, ok := v.Get(d); ok {
			a.sums[d] += val
			a.counts[d]++
		}
	}
}

// Count returns how many values were collected for d.
func (a *Accumulator) Count(d Dimension) int {
	return a.counts[d]
}

// Mean returns the dimension-wise arithmetic mean. A dimension with no
// values stays undefined rather than defaulting to 0.
func (a *Accumulator) Mean() MetricVector {
	var out MetricVector
	for _, d := range Dimensions() {
		if a.counts[d] > 0 {
			out.Set(d, a.sums[d]/float64(a.counts[d]))
		}
	}
	return out
}

// Aggregate averages vectors dimension-wise, ignoring undefined values.
func Aggregate(vectors ...MetricVector) MetricVector {
	var acc Accumulator
	for _, v := range vectors {
		acc.Add(v)
	}
	return acc.Mean()
}
