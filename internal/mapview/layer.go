// Package mapview models the map surface the comparison workflow draws on:
// neighbourhood polygons, emphasis, progress markers and the fitted view.
package mapview

import "github.com/nodescope/area-compare/internal/model"

// Marker colors for per-point sampling progress.
const (
	MarkerPending = "orange"
	MarkerSuccess = "green"
	MarkerFailure = "red"
)

// MarkerID identifies a placed marker.
type MarkerID int

// Layer is the map surface driven by the controller and sampler.
type Layer interface {
	DrawPolygon(area model.Area, color string)
	RemovePolygon(areaID string)
	SetEmphasis(areaID string, on bool)
	PlaceMarker(at model.Coordinates, color, popup string) MarkerID
	UpdateMarker(id MarkerID, color, popup string)
	ClearMarkers()
	FitToBounds(areas []model.Area)
}

// Nop is a Layer that draws nothing.
type Nop struct{}

func (Nop) DrawPolygon(model.Area, string)                         {}
func (Nop) RemovePolygon(string)                                   {}
func (Nop) SetEmphasis(string, bool)                               {}
func (Nop) PlaceMarker(model.Coordinates, string, string) MarkerID { return 0 }
func (Nop) UpdateMarker(MarkerID, string, string)                  {}
func (Nop) ClearMarkers()                                          {}
func (Nop) FitToBounds([]model.Area)                               {}
