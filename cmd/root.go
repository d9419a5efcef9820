package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "area-compare",
	Short: "Compare the accessibility profile of two city neighbourhoods",
	Long:  "Loads a city's neighbourhoods, samples interior points of two areas against the analysis backend and renders the averaged scores as radial or parallel-coordinates charts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
