package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/nodescope/area-compare/internal/model"
)

// DefaultGridSpacing is roughly 200m of latitude.
const DefaultGridSpacing = 0.002

// GridPoints lays a regular lat/lon grid over the boundary's bounds and keeps
// the points inside the polygon, in row-major order (south to north, west to
// east), capped at maxPoints. When the grid is too coarse to hit the polygon
// the centroid is returned alone. When the grid would exceed maxPoints the
// spacing is widened until it fits.
func GridPoints(boundary []model.Coordinates, spacing float64, maxPoints int) []model.Coordinates {
	if len(boundary) < 3 || maxPoints <= 0 {
		return nil
	}
	if spacing <= 0 {
		spacing = DefaultGridSpacing
	}

	ring := Ring(CloseRing(boundary))
	bound := ring.Bound()

	// Widen the grid so the cap keeps the sample spread over the whole area
	// instead of truncating the northern rows.
	cells := (bound.Max.X() - bound.Min.X()) / spacing * (bound.Max.Y() - bound.Min.Y()) / spacing
	if cells > float64(maxPoints)*4 {
		spacing *= math.Sqrt(cells / (float64(maxPoints) * 4))
	}

	var out []model.Coordinates
	for lat := bound.Min.Y() + spacing/2; lat < bound.Max.Y(); lat += spacing {
		for lon := bound.Min.X() + spacing/2; lon < bound.Max.X(); lon += spacing {
			p := orb.Point{lon, lat}
			if !planar.RingContains(ring, p) {
				continue
			}
			out = append(out, Coordinates(p))
			if len(out) == maxPoints {
				return out
			}
		}
	}

	if len(out) == 0 {
		out = append(out, Centroid(boundary))
	}
	return out
}
