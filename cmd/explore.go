package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nodescope/area-compare/internal/geo"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/pkg/analysis"
)

var exploreCmd = &cobra.Command{
	Use:   "explore <lat> <lon>",
	Short: "Show reachability scores, isochrone and points of interest for one point",
	Long:  "Queries the backend for a single point. Parts the backend fails to answer are reported and skipped.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrap(err, "explore: parse lat")
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrap(err, "explore: parse lon")
		}
		profile, err := profileFromFlags(cmd)
		if err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")

		res := explore(cmd.Context(), initClient(cfg.Backend), model.Coordinates{Lat: lat, Lon: lon}, profile)
		formatExplore(os.Stdout, res, top)
		return nil
	},
}

func init() {
	addProfileFlags(exploreCmd)
	exploreCmd.Flags().Int("top", 10, "number of point-of-interest categories to list")
	rootCmd.AddCommand(exploreCmd)
}

type exploreResult struct {
	Point     model.Coordinates
	Metrics   *model.PointMetrics
	Isochrone *analysis.Isochrone
	Pois      []analysis.POI
	PoisOK    bool
}

// explore runs the three point queries concurrently. Failures leave their part empty.
func explore(ctx context.Context, client analysis.Client, pt model.Coordinates, profile model.Profile) exploreResult {
	log := zap.L().With(zap.String("component", "explore"))
	res := exploreResult{Point: pt}

	var g errgroup.Group
	g.Go(func() error {
		m, err := client.ComputePointMetrics(ctx, pt, profile)
		if err != nil {
			log.Warn("point metrics failed", zap.Error(err))
			return nil
		}
		res.Metrics = m
		return nil
	})
	g.Go(func() error {
		iso, err := client.FetchIsochrone(ctx, pt, profile)
		if err != nil {
			log.Warn("isochrone failed", zap.Error(err))
			return nil
		}
		res.Isochrone = iso
		return nil
	})
	g.Go(func() error {
		pois, err := client.PoisInIsochrone(ctx, pt, profile)
		if err != nil {
			log.Warn("points of interest failed", zap.Error(err))
			return nil
		}
		res.Pois, res.PoisOK = pois, true
		return nil
	})
	_ = g.Wait()
	return res
}

type categoryCount struct {
	Name  string
	Count int
}

func countCategories(pois []analysis.POI) []categoryCount {
	counts := make(map[string]int)
	for _, p := range pois {
		name := p.Categories.Primary
		if name == "" {
			name = "uncategorized"
		}
		counts[name]++
	}
	out := make([]categoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, categoryCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b categoryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func formatExplore(out io.Writer, res exploreResult, top int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Point:\t%.6f, %.6f\n", res.Point.Lat, res.Point.Lon)

	_, _ = fmt.Fprintln(w, "\nSCORES")
	if res.Metrics == nil {
		_, _ = fmt.Fprintln(w, "  unavailable")
	} else {
		v := res.Metrics.Vector()
		for _, d := range model.Dimensions() {
			if val, ok := v.Get(d); ok {
				_, _ = fmt.Fprintf(w, "  %s:\t%.3f\n", d, val)
			} else {
				_, _ = fmt.Fprintf(w, "  %s:\tn/a\n", d)
			}
		}
	}

	_, _ = fmt.Fprintln(w, "\nISOCHRONE")
	if res.Isochrone == nil {
		_, _ = fmt.Fprintln(w, "  unavailable")
	} else {
		ring := res.Isochrone.Ring()
		_, _ = fmt.Fprintf(w, "  Vertices:\t%d\n", len(ring))
		if len(ring) >= 3 {
			c := geo.Centroid(ring)
			_, _ = fmt.Fprintf(w, "  Centroid:\t%.6f, %.6f\n", c.Lat, c.Lon)
		}
	}

	_, _ = fmt.Fprintln(w, "\nPOINTS OF INTEREST")
	if !res.PoisOK {
		_, _ = fmt.Fprintln(w, "  unavailable")
	} else {
		_, _ = fmt.Fprintf(w, "  Total:\t%d\n", len(res.Pois))
		cats := countCategories(res.Pois)
		if top > 0 && len(cats) > top {
			cats = cats[:top]
		}
		for _, c := range cats {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", c.Name, c.Count)
		}
	}
	_ = w.Flush()
}
