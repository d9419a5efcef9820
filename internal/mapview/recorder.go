package mapview

import (
	"encoding/json"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/geo"
	"github.com/nodescope/area-compare/internal/model"
)

// Polygon is a drawn area.
type Polygon struct {
	Area     model.Area `json:"area"`
	Color    string     `json:"color"`
	Emphasis bool       `json:"emphasis"`
}

// Marker is a placed progress marker.
type Marker struct {
	ID       MarkerID          `json:"id"`
	Position model.Coordinates `json:"position"`
	Color    string            `json:"color"`
	Popup    string            `json:"popup,omitempty"`
}

// State is a copy of everything on the map.
type State struct {
	Polygons []Polygon  `json:"polygons"`
	Markers  []Marker   `json:"markers"`
	Bounds   *orb.Bound `json:"bounds,omitempty"`
}

// Recorder is an in-memory Layer that can be exported as GeoJSON.
// It is safe for concurrent use.
type Recorder struct {
	mu       sync.RWMutex
	order    []string
	polygons map[string]*Polygon
	markers  []Marker
	nextID   MarkerID
	bounds   orb.Bound
	fitted   bool
}

// NewRecorder creates an empty map.
func NewRecorder() *Recorder {
	return &Recorder{polygons: make(map[string]*Polygon)}
}

// DrawPolygon adds or replaces the polygon for area.ID.
func (r *Recorder) DrawPolygon(area model.Area, color string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.polygons[area.ID]; ok {
		p.Area, p.Color = area, color
		return
	}
	r.order = append(r.order, area.ID)
	r.polygons[area.ID] = &Polygon{Area: area, Color: color}
}

// RemovePolygon removes the polygon for areaID, if drawn.
func (r *Recorder) RemovePolygon(areaID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.polygons[areaID]; !ok {
		return
	}
	delete(r.polygons, areaID)
	for i, id := range r.order {
		if id == areaID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// SetEmphasis toggles the selected style of a drawn polygon.
func (r *Recorder) SetEmphasis(areaID string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.polygons[areaID]; ok {
		p.Emphasis = on
	}
}

// PlaceMarker adds a marker and returns its id.
func (r *Recorder) PlaceMarker(at model.Coordinates, color, popup string) MarkerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.markers = append(r.markers, Marker{ID: r.nextID, Position: at, Color: color, Popup: popup})
	return r.nextID
}

// UpdateMarker recolors a marker. Unknown ids are ignored.
func (r *Recorder) UpdateMarker(id MarkerID, color, popup string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.markers {
		if r.markers[i].ID == id {
			r.markers[i].Color = color
			r.markers[i].Popup = popup
			return
		}
	}
}

// ClearMarkers removes every marker.
func (r *Recorder) ClearMarkers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = nil
}

// FitToBounds sets the view to cover areas. An empty list leaves the view unchanged.
func (r *Recorder) FitToBounds(areas []model.Area) {
	b, ok := geo.Bounds(areas)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bounds, r.fitted = b, true
}

// Snapshot copies the current map state.
func (r *Recorder) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := State{
		Polygons: make([]Polygon, 0, len(r.order)),
		Markers:  make([]Marker, len(r.markers)),
	}
	for _, id := range r.order {
		s.Polygons = append(s.Polygons, *r.polygons[id])
	}
	copy(s.Markers, r.markers)
	if r.fitted {
		b := r.bounds
		s.Bounds = &b
	}
	return s
}

// GeoJSON exports polygons and markers as a FeatureCollection. Feature
// properties carry "kind" ("area" or "marker") plus styling.
func (r *Recorder) GeoJSON() ([]byte, error) {
	s := r.Snapshot()

	fc := &geojson.FeatureCollection{}
	if s.Bounds != nil {
		fc.BBox = geom.NewBounds(geom.XY).Set(s.Bounds.Min.Lon(), s.Bounds.Min.Lat(), s.Bounds.Max.Lon(), s.Bounds.Max.Lat())
	}
	for _, p := range s.Polygons {
		poly, err := geo.Polygon(p.Area.Boundary)
		if err != nil {
			zap.L().Warn("mapview: skipping polygon", zap.String("area_id", p.Area.ID), zap.Error(err))
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       p.Area.ID,
			Geometry: poly,
			Properties: map[string]any{
				"kind":     "area",
				"name":     p.Area.Name,
				"color":    p.Color,
				"emphasis": p.Emphasis,
				"weight":   weight(p.Emphasis),
			},
		})
	}
	for _, m := range s.Markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{m.Position.Lon, m.Position.Lat}),
			Properties: map[string]any{
				"kind":      "marker",
				"marker_id": int(m.ID),
				"color":     m.Color,
				"popup":     m.Popup,
			},
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "mapview: encode geojson")
	}
	return data, nil
}

// weight is the polygon stroke width; emphasized areas are drawn heavier.
func weight(emphasis bool) int {
	if emphasis {
		return 4
	}
	return 2
}
