package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Geocode a place name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := initClient(cfg.Backend)
		places, err := client.SearchPlaces(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return eris.Wrap(err, "search")
		}
		if len(places) == 0 {
			fmt.Fprintln(os.Stderr, "No places found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tLAT\tLON")
		for _, p := range places {
			c := p.Coordinates.Coordinates()
			_, _ = fmt.Fprintf(w, "%s\t%.6f\t%.6f\n", p.Name, c.Lat, c.Lon)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
