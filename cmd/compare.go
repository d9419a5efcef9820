package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/compare"
	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/report"
)

var compareCmd = &cobra.Command{
	Use:   "compare <city> <area-1> <area-2>",
	Short: "Compare two neighbourhoods of a city",
	Long:  "Samples interior points of both areas, prints the averaged scores and optionally writes the chart (SVG or PNG), the map (GeoJSON) and a report (YAML or XLSX).",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("compare"); err != nil {
			return err
		}
		profile, err := profileFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		layer := mapview.NewRecorder()
		ctrl, err := newController(initClient(cfg.Backend), st, layer)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if kind, _ := cmd.Flags().GetString("kind"); kind != "" {
			k, err := chart.ParseKind(kind)
			if err != nil {
				return err
			}
			if ctrl.ActiveChart().Kind() != k {
				ctrl.ToggleChartType()
			}
		}

		if _, err := ctrl.LoadCity(ctx, args[0]); err != nil {
			return err
		}
		for _, id := range args[1:] {
			if _, err := ctrl.ToggleArea(id); err != nil {
				return err
			}
		}

		result, err := ctrl.Compare(ctx, profile)
		if err != nil && result == nil {
			return err
		}
		formatComparison(os.Stdout, result)

		if path, _ := cmd.Flags().GetString("chart"); path != "" {
			if err := writeChart(ctrl.ActiveChart(), path); err != nil {
				return err
			}
		}
		if path, _ := cmd.Flags().GetString("map"); path != "" {
			data, err := layer.GeoJSON()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return eris.Wrap(err, "compare: write map")
			}
		}
		if path, _ := cmd.Flags().GetString("report"); path != "" {
			if err := report.WriteFile(path, report.New(result)); err != nil {
				return err
			}
		}
		return err
	},
}

func init() {
	addProfileFlags(compareCmd)
	compareCmd.Flags().String("kind", "", "chart kind: radial or parallel (default from config)")
	compareCmd.Flags().String("chart", "", "write the chart to this .svg or .png file")
	compareCmd.Flags().String("map", "", "write the map layer to this GeoJSON file")
	compareCmd.Flags().String("report", "", "write a report to this .yaml or .xlsx file")
	rootCmd.AddCommand(compareCmd)
}

func formatComparison(out io.Writer, c *compare.Comparison) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", c.RunID)
	for slot, a := range c.Areas {
		res := c.Results[slot]
		_, _ = fmt.Fprintf(w, "%s:\t%s (%s)\t%d/%d points\t%s\n",
			model.SlotLabel(slot), a.Name, a.ID, res.Succeeded, res.Probed, res.Outcome)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "DIMENSION\t%s\t%s\n", model.SlotLabel(0), model.SlotLabel(1))
	for _, d := range model.Dimensions() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", d, score(c.Results[0].Vector, d), score(c.Results[1].Vector, d))
	}
	_ = w.Flush()
}

func score(v model.MetricVector, d model.Dimension) string {
	if val, ok := v.Get(d); ok {
		return fmt.Sprintf("%.3f", val)
	}
	return "n/a"
}
