package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/geo"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/store"
)

var neighbourhoodsCmd = &cobra.Command{
	Use:     "neighbourhoods <city>",
	Aliases: []string{"areas"},
	Short:   "List a city's neighbourhoods",
	Long:    "Lists the neighbourhoods of a city, from the local cache when fresh and from the backend otherwise.",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		areas, err := cityAreas(ctx, st, joinArgs(args))
		if err != nil {
			return err
		}
		formatAreas(os.Stdout, areas)
		return nil
	},
}

var importShpCmd = &cobra.Command{
	Use:   "import-shp <city> <file.shp>",
	Short: "Load neighbourhood polygons for a city from a shapefile",
	Long:  "Reads WGS84 polygons from a shapefile and stores them as the city's cached neighbourhoods, so compare and serve use them instead of the backend.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idField, _ := cmd.Flags().GetString("id-field")
		nameField, _ := cmd.Flags().GetString("name-field")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if idField == "" {
			idField = cfg.Neighbourhoods.IDField
		}
		if nameField == "" {
			nameField = cfg.Neighbourhoods.NameField
		}

		areas, err := geo.LoadShapefile(args[1], geo.ShapefileOptions{IDField: idField, NameField: nameField})
		if err != nil {
			return err
		}
		if len(areas) == 0 {
			return eris.Errorf("no polygons in %s", args[1])
		}
		for i := range areas {
			if len(areas[i].SamplePoints) == 0 {
				areas[i].SamplePoints = geo.GridPoints(areas[i].Boundary, cfg.Sampler.GridSpacingDeg, cfg.Sampler.MaxPoints)
			}
		}
		geo.Recolor(areas)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.PutNeighbourhoods(ctx, args[0], areas, ttl); err != nil {
			return err
		}

		zap.L().Info("neighbourhoods imported",
			zap.String("city", geo.CityDisplay(args[0])),
			zap.Int("areas", len(areas)),
			zap.Duration("ttl", ttl),
		)
		fmt.Printf("Imported %d neighbourhoods for %s\n", len(areas), geo.CityDisplay(args[0]))
		return nil
	},
}

var exportShpCmd = &cobra.Command{
	Use:   "export-shp <city> <file.shp>",
	Short: "Write a city's neighbourhoods to a shapefile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		areas, err := cityAreas(ctx, st, args[0])
		if err != nil {
			return err
		}
		if err := geo.WriteShapefile(args[1], areas); err != nil {
			return err
		}
		fmt.Printf("Wrote %d neighbourhoods to %s\n", len(areas), args[1])
		return nil
	},
}

var pruneCacheCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired neighbourhood cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeleteExpiredNeighbourhoods(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d expired cache entries\n", n)
		return nil
	},
}

func init() {
	importShpCmd.Flags().String("id-field", "", "attribute holding the area id (default from config)")
	importShpCmd.Flags().String("name-field", "", "attribute holding the area name (default from config)")
	importShpCmd.Flags().Duration("ttl", 365*24*time.Hour, "how long the imported polygons stay cached")

	neighbourhoodsCmd.AddCommand(importShpCmd)
	neighbourhoodsCmd.AddCommand(exportShpCmd)
	neighbourhoodsCmd.AddCommand(pruneCacheCmd)
	rootCmd.AddCommand(neighbourhoodsCmd)
}

// cityAreas returns cached areas for city, fetching and caching them on a miss.
func cityAreas(ctx context.Context, st store.Store, city string) ([]model.Area, error) {
	cached, err := st.GetNeighbourhoods(ctx, city)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached.Areas, nil
	}

	ns, err := initClient(cfg.Backend).ListNeighbourhoods(ctx, geo.CityDisplay(city))
	if err != nil {
		return nil, eris.Wrap(err, "neighbourhoods")
	}
	areas := geo.BuildAreas(ns, geo.BuildOptions{MaxPoints: cfg.Sampler.MaxPoints, GridSpacing: cfg.Sampler.GridSpacingDeg})
	if len(areas) == 0 {
		return nil, eris.Errorf("no neighbourhoods found for %s", geo.CityDisplay(city))
	}
	ttl := time.Duration(cfg.Neighbourhoods.CacheTTLHours) * time.Hour
	if ttl > 0 {
		if err := st.PutNeighbourhoods(ctx, city, areas, ttl); err != nil {
			zap.L().Warn("neighbourhood cache write failed", zap.Error(err))
		}
	}
	return areas, nil
}

func formatAreas(out io.Writer, areas []model.Area) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCOLOR\tPOINTS\tCENTROID")
	for _, a := range areas {
		c := geo.Centroid(a.Boundary)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.5f,%.5f\n", a.ID, a.Name, a.Color, len(a.SamplePoints), c.Lat, c.Lon)
	}
	_ = w.Flush()
}
