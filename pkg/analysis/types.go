package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/nodescope/area-compare/internal/model"
)

// ID is an identifier the backend may send as either a JSON string or number.
type ID string

// UnmarshalJSON accepts "12", 12 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "analysis: decode id")
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "analysis: decode id")
	}
	*id = ID(n.String())
	return nil
}

// Neighbourhood is one polygon from the neighbourhoods endpoint. Rings are in [lat, lon] order.
type Neighbourhood struct {
	ID           ID               `json:"id"`
	Coordinates  [][]model.LatLon `json:"coordinates"`
	BBox         []float64        `json:"bbox,omitempty"`
	Properties   map[string]any   `json:"properties,omitempty"`
	SamplePoints []model.LatLon   `json:"sample_points,omitempty"`
}

// Name picks a display name from the feature properties, falling back to the id.
func (n Neighbourhood) Name() string {
	for _, key := range []string{"name", "NAME", "nome", "denominazione"} {
		if v, ok := n.Properties[key]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case float64:
				return strconv.FormatFloat(s, 'f', -1, 64)
			}
		}
	}
	return string(n.ID)
}

// pointRequest is the body shared by the three per-point endpoints.
type pointRequest struct {
	Coords     model.Coordinates `json:"coords"`
	Minutes    int               `json:"min"`
	Velocity   int               `json:"vel"`
	Categories []string          `json:"categories"`
}

func newPointRequest(c model.Coordinates, p model.Profile) pointRequest {
	cats := p.Categories
	if cats == nil {
		cats = []string{}
	}
	return pointRequest{Coords: c, Minutes: p.Minutes, Velocity: p.Velocity, Categories: cats}
}

type searchRequest struct {
	Text string `json:"text"`
}

// Isochrone is the reachable-area hull around a point. Coordinates are GeoJSON [lon, lat].
type Isochrone struct {
	NodeID     ID             `json:"node_id"`
	ConvexHull IsochroneShape `json:"convex_hull"`
}

// IsochroneShape is a polygon with its bounding box.
type IsochroneShape struct {
	Coordinates [][][]float64 `json:"coordinates"`
	BBox        []float64     `json:"bbox,omitempty"`
}

// Ring returns the outer ring as Coordinates, skipping malformed positions.
func (i Isochrone) Ring() []model.Coordinates {
	if len(i.ConvexHull.Coordinates) == 0 {
		return nil
	}
	outer := i.ConvexHull.Coordinates[0]
	out := make([]model.Coordinates, 0, len(outer))
	for _, pos := range outer {
		if len(pos) < 2 {
			continue
		}
		out = append(out, model.Coordinates{Lat: pos[1], Lon: pos[0]})
	}
	return out
}

// POI is a point of interest reachable inside an isochrone.
type POI struct {
	ID         ID              `json:"poi_id"`
	Distance   float64         `json:"distance"`
	Location   json.RawMessage `json:"location,omitempty"`
	Names      map[string]any  `json:"names,omitempty"`
	Categories POICategories   `json:"categories"`
}

// POICategories is the primary/alternate category pair.
type POICategories struct {
	Primary   string   `json:"primary"`
	Alternate []string `json:"alternate,omitempty"`
}

// DisplayName returns the primary name when present.
func (p POI) DisplayName() string {
	if s, ok := p.Names["primary"].(string); ok {
		return s
	}
	return string(p.ID)
}
