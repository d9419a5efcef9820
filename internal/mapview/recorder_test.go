package mapview

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodescope/area-compare/internal/model"
)

var _ Layer = (*Recorder)(nil)
var _ Layer = Nop{}

func testArea(id string, lat float64) model.Area {
	return model.Area{
		ID:   id,
		Name: "Area " + id,
		Boundary: []model.Coordinates{
			{Lat: lat, Lon: 7}, {Lat: lat, Lon: 7.01}, {Lat: lat + 0.01, Lon: 7.01}, {Lat: lat, Lon: 7},
		},
	}
}

func TestRecorder_Polygons(t *testing.T) {
	r := NewRecorder()
	r.DrawPolygon(testArea("a", 45), "#FF6B6B")
	r.DrawPolygon(testArea("b", 45.1), "#4ECDC4")
	r.SetEmphasis("a", true)
	r.SetEmphasis("missing", true)

	s := r.Snapshot()
	require.Len(t, s.Polygons, 2)
	assert.Equal(t, "a", s.Polygons[0].Area.ID)
	assert.True(t, s.Polygons[0].Emphasis)
	assert.False(t, s.Polygons[1].Emphasis)

	r.DrawPolygon(testArea("a", 45), "#000000")
	s = r.Snapshot()
	require.Len(t, s.Polygons, 2, "redraw replaces in place")
	assert.Equal(t, "#000000", s.Polygons[0].Color)

	r.RemovePolygon("a")
	r.RemovePolygon("a")
	s = r.Snapshot()
	require.Len(t, s.Polygons, 1)
	assert.Equal(t, "b", s.Polygons[0].Area.ID)
}

func TestRecorder_Markers(t *testing.T) {
	r := NewRecorder()
	id1 := r.PlaceMarker(model.Coordinates{Lat: 45, Lon: 7}, MarkerPending, "Point 1")
	id2 := r.PlaceMarker(model.Coordinates{Lat: 45.1, Lon: 7}, MarkerPending, "Point 2")
	assert.NotEqual(t, id1, id2)

	r.UpdateMarker(id1, MarkerSuccess, "ok")
	r.UpdateMarker(999, MarkerFailure, "ignored")

	s := r.Snapshot()
	require.Len(t, s.Markers, 2)
	assert.Equal(t, MarkerSuccess, s.Markers[0].Color)
	assert.Equal(t, "ok", s.Markers[0].Popup)
	assert.Equal(t, MarkerPending, s.Markers[1].Color)

	r.ClearMarkers()
	assert.Empty(t, r.Snapshot().Markers)
}

func TestRecorder_FitToBounds(t *testing.T) {
	r := NewRecorder()
	r.FitToBounds(nil)
	assert.Nil(t, r.Snapshot().Bounds)

	r.FitToBounds([]model.Area{testArea("a", 45), testArea("b", 45.1)})
	b := r.Snapshot().Bounds
	require.NotNil(t, b)
	assert.InDelta(t, 45.0, b.Min.Lat(), 1e-12)
	assert.InDelta(t, 45.11, b.Max.Lat(), 1e-12)
}

func TestRecorder_GeoJSON(t *testing.T) {
	r := NewRecorder()
	r.DrawPolygon(testArea("a", 45), "#FF6B6B")
	r.SetEmphasis("a", true)
	r.PlaceMarker(model.Coordinates{Lat: 45.005, Lon: 7.005}, MarkerFailure, "Point 1: error")
	r.FitToBounds([]model.Area{testArea("a", 45)})

	data, err := r.GeoJSON()
	require.NoError(t, err)

	var fc struct {
		Type     string    `json:"type"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, []float64{7, 45, 7.01, 45.01}, fc.BBox)
	require.Len(t, fc.Features, 2)

	assert.Equal(t, "a", fc.Features[0].ID)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	assert.Equal(t, "area", fc.Features[0].Properties["kind"])
	assert.Equal(t, true, fc.Features[0].Properties["emphasis"])
	assert.Equal(t, float64(4), fc.Features[0].Properties["weight"])

	assert.Equal(t, "Point", fc.Features[1].Geometry.Type)
	assert.Equal(t, "marker", fc.Features[1].Properties["kind"])
	assert.Equal(t, MarkerFailure, fc.Features[1].Properties["color"])
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := r.PlaceMarker(model.Coordinates{}, MarkerPending, "")
			r.UpdateMarker(id, MarkerSuccess, "")
			_ = r.Snapshot()
		}()
	}
	wg.Wait()
	assert.Len(t, r.Snapshot().Markers, 20)
}
