package geo

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/pkg/analysis"
)

// BuildOptions controls how neighbourhoods become areas.
type BuildOptions struct {
	MaxPoints   int
	GridSpacing float64
}

// BuildAreas converts backend neighbourhoods into areas. Open rings are closed,
// colors follow load order and missing interior points are generated on a grid.
// Neighbourhoods without a usable ring are skipped.
func BuildAreas(ns []analysis.Neighbourhood, opts BuildOptions) []model.Area {
	log := zap.L().With(zap.String("component", "geo.areas"))

	areas := make([]model.Area, 0, len(ns))
	used := make(map[string]bool, len(ns))
	for _, n := range ns {
		if len(n.Coordinates) == 0 || len(n.Coordinates[0]) < 3 {
			log.Warn("skipping neighbourhood without ring", zap.String("id", string(n.ID)))
			continue
		}

		base := string(n.ID)
		if base == "" {
			base = strconv.Itoa(len(areas))
		}
		// Ids must stay unique within a session.
		id := base
		for n := 1; used[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		used[id] = true

		outer := n.Coordinates[0]
		boundary := make([]model.Coordinates, len(outer))
		for i, p := range outer {
			boundary[i] = p.Coordinates()
		}

		a := model.Area{
			ID:       id,
			Name:     n.Name(),
			Boundary: CloseRing(boundary),
			Color:    ColorFor(len(areas)),
		}
		if len(n.SamplePoints) > 0 {
			a.SamplePoints = make([]model.Coordinates, len(n.SamplePoints))
			for i, p := range n.SamplePoints {
				a.SamplePoints[i] = p.Coordinates()
			}
		} else {
			a.SamplePoints = GridPoints(a.Boundary, opts.GridSpacing, opts.MaxPoints)
		}
		areas = append(areas, a)
	}
	return areas
}

// Recolor reassigns palette colors in slice order.
func Recolor(areas []model.Area) {
	for i := range areas {
		areas[i].Color = ColorFor(i)
	}
}
