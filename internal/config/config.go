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
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Nominatim  NominatimConfig  `yaml:"nominatim" mapstructure:"nominatim"`
	GSI        GSIConfig        `yaml:"gsi" mapstructure:"gsi"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Geometry   GeometryConfig   `yaml:"geometry" mapstructure:"geometry"`
	Geofence   GeofenceConfig   `yaml:"geofence" mapstructure:"geofence"`
	Merge      MergeConfig      `yaml:"merge" mapstructure:"merge"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// InputConfig names the input datasets. Only capacity is required by every
// command; the rest are optional layers.
type InputConfig struct {
	Points     string `yaml:"points" mapstructure:"points"`
	Footprints string `yaml:"footprints" mapstructure:"footprints"`
	Capacity   string `yaml:"capacity" mapstructure:"capacity"`
	Previous   string `yaml:"previous" mapstructure:"previous"`
	Aliases    string `yaml:"aliases" mapstructure:"aliases"`
	Boundary   string `yaml:"boundary" mapstructure:"boundary"`
	GridLines  string `yaml:"grid_lines" mapstructure:"grid_lines"`
	OCCTO      string `yaml:"occto" mapstructure:"occto"`
}

// OutputConfig names the files a run writes.
type OutputConfig struct {
	Capacity    string `yaml:"capacity" mapstructure:"capacity"`
	Footprints  string `yaml:"footprints" mapstructure:"footprints"`
	SQLite      string `yaml:"sqlite" mapstructure:"sqlite"`
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
	Points      string `yaml:"points" mapstructure:"points"`
}

// NominatimConfig configures the OpenStreetMap address search.
type NominatimConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Email         string `yaml:"email" mapstructure:"email"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	CountryCodes  string `yaml:"country_codes" mapstructure:"country_codes"`
	Limit         int    `yaml:"limit" mapstructure:"limit"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GSIConfig configures the Geospatial Information Authority address search.
type GSIConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
}

// RetryConfig configures backoff for remote calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the per-service circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// GeometryConfig configures footprint synthesis.
type GeometryConfig struct {
	// RadiusMode is "fixed" for the per-voltage table or "tuned" to derive
	// radii from existing footprint areas.
	RadiusMode string `yaml:"radius_mode" mapstructure:"radius_mode"`
	Segments   int    `yaml:"segments" mapstructure:"segments"`
	Synthesize bool   `yaml:"synthesize" mapstructure:"synthesize"`
}

// GeofenceConfig selects the carve-out set.
type GeofenceConfig struct {
	CarveOuts string `yaml:"carve_outs" mapstructure:"carve_outs"`
}

// MergeConfig tunes the record merger.
type MergeConfig struct {
	MismatchThresholdDeg      float64 `yaml:"mismatch_threshold_deg" mapstructure:"mismatch_threshold_deg"`
	PolygonCentroidConfidence float64 `yaml:"polygon_centroid_confidence" mapstructure:"polygon_centroid_confidence"`
}

// CacheConfig selects the coordinate cache backend.
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// PipelineConfig bounds a run.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRecords  int `yaml:"max_records" mapstructure:"max_records"`

	// ByRegion locates records region by region in RegionPriority order.
	// An empty priority uses the built-in TEPCO order with the trunk
	// network last; "*" marks where unlisted regions go.
	ByRegion       bool     `yaml:"by_region" mapstructure:"by_region"`
	RegionPriority []string `yaml:"region_priority" mapstructure:"region_priority"`
	Regions        []string `yaml:"regions" mapstructure:"regions"`
	MaxPerRegion   int      `yaml:"max_per_region" mapstructure:"max_per_region"`
	RegionPauseMs  int      `yaml:"region_pause_ms" mapstructure:"region_pause_ms"`
}

// FetchConfig configures capacity source downloads.
type FetchConfig struct {
	TEPCORegions []string `yaml:"tepco_regions" mapstructure:"tepco_regions"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	TempDir      string   `yaml:"temp_dir" mapstructure:"temp_dir"`
	PauseMs      int      `yaml:"pause_ms" mapstructure:"pause_ms"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Strict       bool     `yaml:"strict" mapstructure:"strict"`
}

// MonitoringConfig holds alert thresholds and the webhook to notify.
type MonitoringConfig struct {
	WebhookURL       string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MaxUnmatchedRate float64 `yaml:"max_unmatched_rate" mapstructure:"max_unmatched_rate"`
	MaxErrorRate     float64 `yaml:"max_error_rate" mapstructure:"max_error_rate"`
	MinRecords       int     `yaml:"min_records" mapstructure:"min_records"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory if present, then
// POWERGRID_* environment variables, over built-in defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back
// to config.yaml in the working directory, which may be absent; a named
// file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("POWERGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("input.points", "data/substations_points.geojson")
	v.SetDefault("input.footprints", "data/substations.geojson")
	v.SetDefault("input.capacity", "data/capacity.json")
	v.SetDefault("input.previous", "")
	v.SetDefault("input.aliases", "")
	v.SetDefault("input.boundary", "")
	v.SetDefault("input.grid_lines", "")
	v.SetDefault("input.occto", "")
	v.SetDefault("output.capacity", "data/capacity_geocoded.json")
	v.SetDefault("output.footprints", "data/substations_merged.geojson")
	v.SetDefault("output.sqlite", "")
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("output.points", "data/national_substations_points.geojson")
	v.SetDefault("nominatim.enabled", true)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("nominatim.email", "")
	v.SetDefault("nominatim.user_agent", "powergrid/1.0")
	v.SetDefault("nominatim.country_codes", "jp")
	v.SetDefault("nominatim.limit", 3)
	v.SetDefault("nominatim.min_interval_ms", 1100)
	v.SetDefault("nominatim.timeout_secs", 30)
	v.SetDefault("gsi.enabled", false)
	v.SetDefault("gsi.base_url", "https://msearch.gsi.go.jp/address-search/AddressSearch")
	v.SetDefault("gsi.min_interval_ms", 500)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.0)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)
	v.SetDefault("geometry.radius_mode", "fixed")
	v.SetDefault("geometry.segments", 32)
	v.SetDefault("geometry.synthesize", true)
	v.SetDefault("geofence.carve_outs", "default")
	v.SetDefault("merge.mismatch_threshold_deg", 0.01)
	v.SetDefault("merge.polygon_centroid_confidence", 0.9)
	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.dsn", "data/coordinate_cache.json")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.max_records", 0)
	v.SetDefault("pipeline.by_region", false)
	v.SetDefault("pipeline.region_priority", []string{})
	v.SetDefault("pipeline.regions", []string{})
	v.SetDefault("pipeline.max_per_region", 0)
	v.SetDefault("pipeline.region_pause_ms", 3000)
	v.SetDefault("fetch.tepco_regions", []string{})
	v.SetDefault("fetch.user_agent", "powergrid/1.0")
	v.SetDefault("fetch.temp_dir", "")
	v.SetDefault("fetch.pause_ms", 2000)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.strict", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.max_unmatched_rate", 0.5)
	v.SetDefault("monitoring.max_error_rate", 0.1)
	v.SetDefault("monitoring.min_records", 20)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. mode is the command
// name: locate, footprints, merge, filter, fetch, points or run.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	switch mode {
	case "locate":
		require(c.Input.Capacity != "", "input.capacity is required")
		require(c.Output.Capacity != "", "output.capacity is required")
		c.validateLocate(require)
	case "footprints":
		require(c.Input.Points != "" || c.Input.Footprints != "", "input.points or input.footprints is required")
		require(c.Output.Footprints != "", "output.footprints is required")
		c.validateGeometry(require)
	case "merge":
		require(c.Input.Capacity != "", "input.capacity is required")
		require(c.Output.Capacity != "", "output.capacity is required")
		c.validateMerge(require)
	case "filter":
		require(c.Input.Capacity != "" || c.Input.Footprints != "", "input.capacity or input.footprints is required")
		c.validateGeofence(require)
	case "fetch":
		require(c.Output.Capacity != "", "output.capacity is required")
		require(c.Fetch.PauseMs >= 0, "fetch.pause_ms must be >= 0")
		require(c.Pipeline.MaxPerRegion >= 0, "pipeline.max_per_region must be >= 0")
	case "points":
		require(c.Input.Footprints != "", "input.footprints is required")
		require(c.Output.Points != "", "output.points is required")
		c.validateGeofence(require)
	case "run":
		require(c.Input.Capacity != "", "input.capacity is required")
		require(c.Output.Capacity != "", "output.capacity is required")
		require(c.Output.Footprints != "", "output.footprints is required")
		c.validateLocate(require)
		c.validateGeometry(require)
		c.validateMerge(require)
		c.validateGeofence(require)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

type requireFunc func(ok bool, format string, args ...any)

func (c *Config) validateLocate(require requireFunc) {
	require(c.Pipeline.MaxRecords >= 0, "pipeline.max_records must be >= 0")
	require(c.Pipeline.MaxPerRegion >= 0, "pipeline.max_per_region must be >= 0")
	require(c.Pipeline.RegionPauseMs >= 0, "pipeline.region_pause_ms must be >= 0")
	require(c.Retry.MaxAttempts >= 1, "retry.max_attempts must be >= 1")
	switch c.Cache.Driver {
	case "sqlite", "postgres", "file":
		require(c.Cache.DSN != "", "cache.dsn is required for driver %s", c.Cache.Driver)
	case "none", "":
	default:
		require(false, "cache.driver must be sqlite, postgres, file or none")
	}
}

func (c *Config) validateGeometry(require requireFunc) {
	require(c.Geometry.RadiusMode == "fixed" || c.Geometry.RadiusMode == "tuned",
		"geometry.radius_mode must be fixed or tuned")
	require(c.Geometry.Segments == 0 || c.Geometry.Segments >= 24, "geometry.segments must be >= 24")
	require(c.Pipeline.Concurrency >= 1 && c.Pipeline.Concurrency <= 64,
		"pipeline.concurrency must be between 1 and 64")
}

func (c *Config) validateMerge(require requireFunc) {
	require(c.Merge.MismatchThresholdDeg > 0, "merge.mismatch_threshold_deg must be > 0")
	require(c.Merge.PolygonCentroidConfidence > 0 && c.Merge.PolygonCentroidConfidence <= 1,
		"merge.polygon_centroid_confidence must be in (0, 1]")
}

func (c *Config) validateGeofence(require requireFunc) {
	switch c.Geofence.CarveOuts {
	case "", "default", "legacy":
	default:
		require(false, "geofence.carve_outs must be default or legacy")
	}
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
