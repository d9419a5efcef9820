package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/nodescope/area-compare/internal/model"
)

// Polygon converts a boundary ring to a go-geom polygon with SRID 4326 (X = lon, Y = lat).
func Polygon(boundary []model.Coordinates) (*geom.Polygon, error) {
	ring := CloseRing(boundary)
	if len(ring) < 4 {
		return nil, eris.Errorf("geo: ring needs at least 4 points, got %d", len(ring))
	}
	flat := make([]float64, 0, len(ring)*2)
	for _, c := range ring {
		flat = append(flat, c.Lon, c.Lat)
	}
	poly := geom.NewPolygon(geom.XY).SetSRID(4326)
	if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
		return nil, eris.Wrap(err, "geo: build polygon")
	}
	return poly, nil
}

// EncodeBoundary encodes a boundary ring as little-endian EWKB.
func EncodeBoundary(boundary []model.Coordinates) ([]byte, error) {
	poly, err := Polygon(boundary)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// DecodeBoundary reads the outer ring of an EWKB polygon or the first polygon of a multipolygon.
func DecodeBoundary(data []byte) ([]model.Coordinates, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}

	var poly *geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		poly = t
	case *geom.MultiPolygon:
		if t.NumPolygons() > 0 {
			poly = t.Polygon(0)
		}
	default:
		return nil, eris.Errorf("geo: unsupported geometry %T", g)
	}
	if poly == nil || poly.NumLinearRings() == 0 {
		return nil, eris.New("geo: empty polygon")
	}

	coords := poly.LinearRing(0).Coords()
	out := make([]model.Coordinates, len(coords))
	for i, c := range coords {
		out[i] = model.Coordinates{Lat: c.Y(), Lon: c.X()}
	}
	return out, nil
}
