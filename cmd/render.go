package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/report"
)

var renderCmd = &cobra.Command{
	Use:   "render <report.yaml|report.xlsx> <out.svg|out.png>",
	Short: "Render a chart from a saved comparison report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := report.Read(args[0])
		if err != nil {
			return err
		}
		kindName, _ := cmd.Flags().GetString("kind")
		if kindName == "" {
			kindName = cfg.Chart.Default
		}
		kind, err := chart.ParseKind(kindName)
		if err != nil {
			return err
		}
		ch, err := chart.New(kind, chartOptions(cfg.Chart), r.Series())
		if err != nil {
			return err
		}
		if hover, _ := cmd.Flags().GetInt("highlight"); hover > 0 {
			if err := ch.PointerEnter(hover-1, 0, 0); err != nil {
				return err
			}
		}
		return writeChart(ch, args[1])
	},
}

func init() {
	renderCmd.Flags().String("kind", "", "chart kind: radial or parallel (default from config)")
	renderCmd.Flags().Int("highlight", 0, "highlight series N (1 or 2) as if hovered")
	rootCmd.AddCommand(renderCmd)
}

// writeChart encodes ch to path as SVG or PNG depending on the extension.
func writeChart(ch chart.Chart, path string) error {
	encode := ch.EncodeSVG
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
	case ".png":
		encode = ch.EncodePNG
	default:
		return eris.Errorf("unsupported chart file type %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create chart file")
	}
	if err := encode(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "close chart file")
}
