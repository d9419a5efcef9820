package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Backend        BackendConfig        `yaml:"backend" mapstructure:"backend"`
	Sampler        SamplerConfig        `yaml:"sampler" mapstructure:"sampler"`
	Profile        ProfileConfig        `yaml:"profile" mapstructure:"profile"`
	Chart          ChartConfig          `yaml:"chart" mapstructure:"chart"`
	Neighbourhoods NeighbourhoodsConfig `yaml:"neighbourhoods" mapstructure:"neighbourhoods"`
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// BackendConfig points at the remote analysis service.
type BackendConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SamplerConfig bounds how many points are probed per area and how many run at once.
type SamplerConfig struct {
	MaxPoints       int     `yaml:"max_points" mapstructure:"max_points"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	AreaConcurrency int     `yaml:"area_concurrency" mapstructure:"area_concurrency"`
	GridSpacingDeg  float64 `yaml:"grid_spacing_deg" mapstructure:"grid_spacing_deg"`
}

// ProfileConfig is the default travel profile for compare and explore.
type ProfileConfig struct {
	Minutes    int      `yaml:"minutes" mapstructure:"minutes"`
	Velocity   int      `yaml:"velocity" mapstructure:"velocity"`
	Categories []string `yaml:"categories" mapstructure:"categories"`
}

// ChartConfig sizes and colors both chart variants.
type ChartConfig struct {
	Width    float64  `yaml:"width" mapstructure:"width"`
	Height   float64  `yaml:"height" mapstructure:"height"`
	Margin   float64  `yaml:"margin" mapstructure:"margin"`
	Levels   int      `yaml:"levels" mapstructure:"levels"`
	MaxValue float64  `yaml:"max_value" mapstructure:"max_value"`
	Colors   []string `yaml:"colors" mapstructure:"colors"`
	Default  string   `yaml:"default" mapstructure:"default"`
}

// NeighbourhoodsConfig configures where area polygons come from and how long they are cached.
type NeighbourhoodsConfig struct {
	Shapefile     string `yaml:"shapefile" mapstructure:"shapefile"`
	IDField       string `yaml:"id_field" mapstructure:"id_field"`
	NameField     string `yaml:"name_field" mapstructure:"name_field"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the session server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AREACOMPARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout_secs", 30)
	v.SetDefault("backend.rate_limit", 5.0)
	v.SetDefault("backend.max_attempts", 3)
	v.SetDefault("backend.initial_backoff_ms", 250)
	v.SetDefault("backend.max_backoff_ms", 5000)
	v.SetDefault("backend.failure_threshold", 5)
	v.SetDefault("backend.reset_timeout_secs", 30)
	v.SetDefault("sampler.max_points", 25)
	v.SetDefault("sampler.concurrency", 1)
	v.SetDefault("sampler.area_concurrency", 1)
	v.SetDefault("sampler.grid_spacing_deg", 0.002)
	v.SetDefault("profile.minutes", 15)
	v.SetDefault("profile.velocity", 5)
	v.SetDefault("profile.categories", []string{})
	v.SetDefault("chart.width", 250.0)
	v.SetDefault("chart.height", 250.0)
	v.SetDefault("chart.margin", 50.0)
	v.SetDefault("chart.levels", 5)
	v.SetDefault("chart.max_value", 1.0)
	v.SetDefault("chart.colors", []string{"#483d8b", "#ff6b6b"})
	v.SetDefault("chart.default", "radial")
	v.SetDefault("neighbourhoods.id_field", "ID")
	v.SetDefault("neighbourhoods.name_field", "NAME")
	v.SetDefault("neighbourhoods.cache_ttl_hours", 24)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "area-compare.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: compare, serve, store.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "compare":
		problems = append(problems, c.validateBackend()...)
		problems = append(problems, c.validateSampling()...)
	case "serve":
		problems = append(problems, c.validateBackend()...)
		problems = append(problems, c.validateSampling()...)
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateBackend() []string {
	var p []string
	if c.Backend.BaseURL == "" {
		p = append(p, "backend.base_url is required")
	}
	if c.Backend.RateLimit <= 0 {
		p = append(p, "backend.rate_limit must be > 0")
	}
	return p
}

func (c *Config) validateSampling() []string {
	var p []string
	if c.Sampler.MaxPoints < 1 || c.Sampler.MaxPoints > 100 {
		p = append(p, "sampler.max_points must be between 1 and 100")
	}
	if c.Sampler.Concurrency < 1 || c.Sampler.Concurrency > 10 {
		p = append(p, "sampler.concurrency must be between 1 and 10")
	}
	if c.Sampler.AreaConcurrency < 1 || c.Sampler.AreaConcurrency > 2 {
		p = append(p, "sampler.area_concurrency must be 1 or 2")
	}
	if c.Profile.Minutes <= 0 || c.Profile.Velocity <= 0 {
		p = append(p, "profile.minutes and profile.velocity must be > 0")
	}
	if c.Chart.MaxValue <= 0 {
		p = append(p, "chart.max_value must be > 0")
	}
	return p
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
