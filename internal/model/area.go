package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LatLon is the [lat, lon] pair form used by neighbourhood rings and place results.
type LatLon [2]float64

// Coordinates converts the pair to a Coordinates value.
func (p LatLon) Coordinates() Coordinates {
	return Coordinates{Lat: p[0], Lon: p[1]}
}

// Pair returns the [lat, lon] form of c.
func (c Coordinates) Pair() LatLon {
	return LatLon{c.Lat, c.Lon}
}

// MarshalJSON encodes the pair as a two-element array.
func (p LatLon) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64(p))
}

// UnmarshalJSON decodes a two-element array. Extra elements (altitude) are ignored.
func (p *LatLon) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode lat/lon pair")
	}
	if len(raw) < 2 {
		return eris.Errorf("model: lat/lon pair needs 2 values, got %d", len(raw))
	}
	p[0], p[1] = raw[0], raw[1]
	return nil
}

// Area is a selectable neighbourhood polygon.
type Area struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Boundary     []Coordinates `json:"boundary"`
	SamplePoints []Coordinates `json:"sample_points,omitempty"`
	Color        string        `json:"color,omitempty"`
}

// Closed reports whether the boundary ring has equal first and last points.
func (a Area) Closed() bool {
	n := len(a.Boundary)
	return n >= 4 && a.Boundary[0] == a.Boundary[n-1]
}

// Profile describes how reachability is computed for each probed point.
type Profile struct {
	Minutes    int      `json:"min" yaml:"minutes" mapstructure:"minutes"`
	Velocity   int      `json:"vel" yaml:"velocity" mapstructure:"velocity"`
	Categories []string `json:"categories" yaml:"categories" mapstructure:"categories"`
}

// Validate rejects non-positive time budgets and speeds.
func (p Profile) Validate() error {
	if p.Minutes <= 0 {
		return eris.Errorf("model: profile minutes must be positive, got %d", p.Minutes)
	}
	if p.Velocity <= 0 {
		return eris.Errorf("model: profile velocity must be positive, got %d", p.Velocity)
	}
	return nil
}

// Place is a geocoding search hit.
type Place struct {
	Name        string `json:"name"`
	Coordinates LatLon `json:"coordinates"`
}
