package geo

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/model"
)

// ShapefileOptions names the attribute columns used for area id and name.
type ShapefileOptions struct {
	IDField   string
	NameField string
}

// LoadShapefile reads polygon records from a WGS84 shapefile. Only the first
// part (outer ring) of each polygon is used. Records without geometry or an id
// are skipped.
func LoadShapefile(path string, opts ShapefileOptions) ([]model.Area, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, opts.IDField)
	nameIdx := fieldIndex(reader, opts.NameField)
	if idIdx < 0 {
		return nil, eris.Errorf("geo: id field %q not found in %s", opts.IDField, path)
	}

	var areas []model.Area
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			skipped++
			continue
		}

		id := attribute(reader, idIdx)
		if id == "" {
			skipped++
			continue
		}
		name := id
		if nameIdx >= 0 {
			if n := attribute(reader, nameIdx); n != "" {
				name = n
			}
		}

		end := int32(len(poly.Points))
		if poly.NumParts > 1 {
			end = poly.Parts[1]
		}
		boundary := make([]model.Coordinates, 0, end-poly.Parts[0])
		for _, p := range poly.Points[poly.Parts[0]:end] {
			boundary = append(boundary, model.Coordinates{Lat: p.Y, Lon: p.X})
		}

		areas = append(areas, model.Area{
			ID:       id,
			Name:     name,
			Boundary: CloseRing(boundary),
			Color:    ColorFor(len(areas)),
		})
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return areas, nil
}

// WriteShapefile writes areas as polygon records with id and name attributes.
func WriteShapefile(path string, areas []model.Area) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "geo: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{shp.StringField("ID", 32), shp.StringField("NAME", 128)}); err != nil {
		return eris.Wrap(err, "geo: set shapefile fields")
	}
	for _, a := range areas {
		pts := make([]shp.Point, len(a.Boundary))
		for i, c := range a.Boundary {
			pts[i] = shp.Point{X: c.Lon, Y: c.Lat}
		}
		polygon := shp.Polygon(*shp.NewPolyLine([][]shp.Point{pts}))
		n := w.Write(&polygon)
		if err := w.WriteAttribute(int(n), 0, a.ID); err != nil {
			return eris.Wrapf(err, "geo: write id for %s", a.ID)
		}
		if err := w.WriteAttribute(int(n), 1, a.Name); err != nil {
			return eris.Wrapf(err, "geo: write name for %s", a.ID)
		}
	}
	return nil
}

func attribute(r *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
}

// fieldIndex returns the index of a named field, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
