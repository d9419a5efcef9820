package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/compare"
	"github.com/nodescope/area-compare/internal/config"
	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/resilience"
	"github.com/nodescope/area-compare/internal/store"
	"github.com/nodescope/area-compare/pkg/analysis"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "area-compare.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initClient(c config.BackendConfig) analysis.Client {
	return analysis.NewClient(
		analysis.WithBaseURL(c.BaseURL),
		analysis.WithHTTPClient(&http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}),
		analysis.WithRateLimit(c.RateLimit),
		analysis.WithPolicy(resilience.NewPolicy("analysis",
			c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs, c.FailureThreshold, c.ResetTimeoutSecs)),
	)
}

func chartOptions(c config.ChartConfig) chart.Options {
	return chart.Options{
		Width:    c.Width,
		Height:   c.Height,
		Margin:   c.Margin,
		Levels:   c.Levels,
		MaxValue: c.MaxValue,
		Colors:   chart.ColorScale(c.Colors),
	}
}

func configProfile() model.Profile {
	return model.Profile{
		Minutes:    cfg.Profile.Minutes,
		Velocity:   cfg.Profile.Velocity,
		Categories: cfg.Profile.Categories,
	}
}

// addProfileFlags registers --minutes, --velocity and --category on cmd.
func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().Int("minutes", 0, "travel time budget in minutes (default from config)")
	cmd.Flags().Int("velocity", 0, "travel speed in km/h (default from config)")
	cmd.Flags().StringSlice("category", nil, "point-of-interest categories (default from config)")
}

// profileFromFlags overlays set profile flags on the configured profile.
func profileFromFlags(cmd *cobra.Command) (model.Profile, error) {
	p := configProfile()
	if m, _ := cmd.Flags().GetInt("minutes"); m > 0 {
		p.Minutes = m
	}
	if v, _ := cmd.Flags().GetInt("velocity"); v > 0 {
		p.Velocity = v
	}
	if cmd.Flags().Changed("category") {
		p.Categories, _ = cmd.Flags().GetStringSlice("category")
	}
	return p, p.Validate()
}

// newController wires a controller from config. The store may be nil.
func newController(client compare.Backend, st store.Store, layer mapview.Layer) (*compare.Controller, error) {
	kind, err := chart.ParseKind(cfg.Chart.Default)
	if err != nil {
		return nil, err
	}
	return compare.New(client, compare.Options{
		Store:           st,
		Layer:           layer,
		Notifier:        compare.LogNotifier{},
		MaxPoints:       cfg.Sampler.MaxPoints,
		Concurrency:     cfg.Sampler.Concurrency,
		AreaConcurrency: cfg.Sampler.AreaConcurrency,
		GridSpacing:     cfg.Sampler.GridSpacingDeg,
		CacheTTL:        time.Duration(cfg.Neighbourhoods.CacheTTLHours) * time.Hour,
		Profile:         configProfile(),
		Chart:           chartOptions(cfg.Chart),
		DefaultKind:     kind,
	})
}

// joinArgs rejoins positional args so multi-word city names need no quoting.
func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
