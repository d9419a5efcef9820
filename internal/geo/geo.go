// Package geo turns neighbourhood polygons into comparable areas: ring closing,
// interior sampling, palette assignment, bounds and shapefile import.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/nodescope/area-compare/internal/model"
)

// CloseRing returns pts with the first point appended when the ring is open.
// Rings with fewer than 3 distinct points are returned unchanged.
func CloseRing(pts []model.Coordinates) []model.Coordinates {
	if len(pts) < 3 {
		return pts
	}
	if pts[0] == pts[len(pts)-1] {
		return pts
	}
	out := make([]model.Coordinates, len(pts), len(pts)+1)
	copy(out, pts)
	return append(out, pts[0])
}

// Ring converts a boundary to an orb ring (X = lon, Y = lat).
func Ring(boundary []model.Coordinates) orb.Ring {
	r := make(orb.Ring, len(boundary))
	for i, c := range boundary {
		r[i] = orb.Point{c.Lon, c.Lat}
	}
	return r
}

// Coordinates converts an orb point back to lat/lon.
func Coordinates(p orb.Point) model.Coordinates {
	return model.Coordinates{Lat: p.Lat(), Lon: p.Lon()}
}

// Contains reports whether c lies inside the area boundary.
func Contains(a model.Area, c model.Coordinates) bool {
	return planar.RingContains(Ring(a.Boundary), orb.Point{c.Lon, c.Lat})
}

// Centroid returns the area-weighted centroid of the boundary.
func Centroid(boundary []model.Coordinates) model.Coordinates {
	p, _ := planar.CentroidArea(orb.Polygon{Ring(boundary)})
	return Coordinates(p)
}

// Bounds returns the bound covering every boundary point of areas.
// ok is false when there is nothing to bound.
func Bounds(areas []model.Area) (b orb.Bound, ok bool) {
	for _, a := range areas {
		if len(a.Boundary) == 0 {
			continue
		}
		rb := Ring(a.Boundary).Bound()
		if !ok {
			b, ok = rb, true
			continue
		}
		b = b.Union(rb)
	}
	return b, ok
}
