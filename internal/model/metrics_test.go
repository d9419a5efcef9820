package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestAggregate_ExactMean(t *testing.T) {
	t.Parallel()

	vs := []MetricVector{
		NewMetricVector(0.1, 0.2, 0.3, 0.4, 0.5),
		NewMetricVector(0.3, 0.6, 0.9, 0.2, 0.1),
		NewMetricVector(0.2, 0.1, 0.0, 0.9, 0.6),
	}
	got := Aggregate(vs...)

	for _, d := range Dimensions() {
		var sum float64
		for _, v := range vs {
			val, _ := v.Get(d)
			sum += val
		}
		val, ok := got.Get(d)
		require.True(t, ok, d.String())
		assert.InDelta(t, sum/3, val, 1e-9, d.String())
	}
}

func TestAggregate_IgnoresMissingPerDimension(t *testing.T) {
	t.Parallel()

	a := PointMetrics{ProximityScore: ptr(0.4), DensityScore: ptr(0.2)}.Vector()
	b := PointMetrics{ProximityScore: ptr(0.8)}.Vector()

	got := Aggregate(a, b)

	p, ok := got.Get(Proximity)
	require.True(t, ok)
	assert.InDelta(t, 0.6, p, 1e-9)

	d, ok := got.Get(Density)
	require.True(t, ok)
	assert.InDelta(t, 0.2, d, 1e-9, "density averages only the point that reported it")

	_, ok = got.Get(Closeness)
	assert.False(t, ok, "no point reported closeness")
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	got := Aggregate()
	assert.Equal(t, 0, got.Defined())
}

func TestMetricVector_JSON(t *testing.T) {
	t.Parallel()

	var v MetricVector
	v.Set(Proximity, 0.5)
	v.Set(Entropy, 0.25)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"proximity":0.5,"density":null,"entropy":0.25,"accessibility":null,"closeness":null}`, string(data))

	var back MetricVector
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)
}

func TestPointMetrics_WireNames(t *testing.T) {
	t.Parallel()

	body := `{"proximity_score":0.8,"density_score":0.4,"entropy_score":null,"poi_accessibility":0.9}`
	var pm PointMetrics
	require.NoError(t, json.Unmarshal([]byte(body), &pm))

	v := pm.Vector()
	assert.Equal(t, 3, v.Defined())
	acc, ok := v.Get(Accessibility)
	require.True(t, ok)
	assert.InDelta(t, 0.9, acc, 1e-12)
	_, ok = v.Get(Entropy)
	assert.False(t, ok)
}

func TestParseDimension(t *testing.T) {
	t.Parallel()

	d, ok := ParseDimension("closeness")
	require.True(t, ok)
	assert.Equal(t, Closeness, d)

	_, ok = ParseDimension("walkability")
	assert.False(t, ok)
	assert.Equal(t, "Unknown", Dimension(9).String())
}
