// Package config loads the pipeline's configuration shape (spec.md §6) via
// viper, and initializes the global zap logger — the same mechanism as the
// teacher's internal/config/config.go.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geoticket/internal/model"
)

// Config holds the full pipeline configuration.
type Config struct {
	Cache            CacheConfig              `yaml:"cache" mapstructure:"cache"`
	OutputDir        string                   `yaml:"output_dir" mapstructure:"output_dir"`
	FailFast         bool                     `yaml:"fail_fast" mapstructure:"fail_fast"`
	SaveIntermediate bool                     `yaml:"save_intermediate" mapstructure:"save_intermediate"`
	Concurrency      int                      `yaml:"concurrency" mapstructure:"concurrency"`
	TicketsPath      string                   `yaml:"tickets_path" mapstructure:"tickets_path"`

	// StageOrder names the stages, in execution order, that Stages holds
	// settings for. A stage absent here is never run even if configured.
	StageOrder []string                       `yaml:"stage_order" mapstructure:"stage_order"`
	Stages     map[string]model.StageSettings `yaml:"stages" mapstructure:"stages"`
	Log        LogConfig                      `yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig                  `yaml:"metrics" mapstructure:"metrics"`
}

// CacheConfig configures the cache store (C1).
type CacheConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig configures the optional Prometheus admin endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// ProximityParams are the proximity stage's stage-specific parameters
// (spec.md §6), read out of StageSettings.Params.
type ProximityParams struct {
	RoadNetworkPath string
	RoadNameField   string
	RoadClassField  string
	CityRefPath     string
	MaxDistanceKM   float64
}

// ValidationParams are the validation stage's stage-specific parameters.
type ValidationParams struct {
	ValidationRules []string
}

// EnrichmentParams are the enrichment stage's stage-specific parameters.
type EnrichmentParams struct {
	RouteKMZPath         string
	RouteBufferM         float64
	PipelineGeometryPath string
	PipelineBoostRadiusM float64
}

// Proximity extracts typed proximity-stage parameters from a StageSettings
// params bag, applying the documented default for max_distance_km.
func Proximity(s model.StageSettings) ProximityParams {
	p := ProximityParams{MaxDistanceKM: 50}
	if v, ok := s.Params["road_network_path"].(string); ok {
		p.RoadNetworkPath = v
	}
	if v, ok := s.Params["road_name_field"].(string); ok {
		p.RoadNameField = v
	}
	if v, ok := s.Params["road_class_field"].(string); ok {
		p.RoadClassField = v
	}
	if v, ok := s.Params["city_reference_path"].(string); ok {
		p.CityRefPath = v
	}
	if v, ok := toFloat(s.Params["max_distance_km"]); ok {
		p.MaxDistanceKM = v
	}
	return p
}

// Validation extracts typed validation-stage parameters.
func Validation(s model.StageSettings) ValidationParams {
	var v ValidationParams
	if raw, ok := s.Params["validation_rules"].([]any); ok {
		for _, r := range raw {
			if name, ok := r.(string); ok {
				v.ValidationRules = append(v.ValidationRules, name)
			}
		}
	}
	return v
}

// Enrichment extracts typed enrichment-stage parameters, applying the
// documented default buffer/radius of 500 m.
func Enrichment(s model.StageSettings) EnrichmentParams {
	e := EnrichmentParams{RouteBufferM: 500, PipelineBoostRadiusM: 500}
	route, _ := s.Params["route"].(map[string]any)
	if route != nil {
		if v, ok := route["kmz_path"].(string); ok {
			e.RouteKMZPath = v
		}
		if v, ok := toFloat(route["buffer_m"]); ok {
			e.RouteBufferM = v
		}
	}
	pipeline, _ := s.Params["pipeline"].(map[string]any)
	if pipeline != nil {
		if v, ok := pipeline["geometry_path"].(string); ok {
			e.PipelineGeometryPath = v
		}
		if v, ok := toFloat(pipeline["boost_radius_m"]); ok {
			e.PipelineBoostRadiusM = v
		}
	}
	return e
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// ExternalAPIParams are the external-API stage's stage-specific parameters.
type ExternalAPIParams struct {
	RequestsPerSecond float64
	MaxAttempts       int
	InitialBackoffMs  int
	MaxBackoffMs      int
	Multiplier        float64
	JitterFraction    float64
	FailureThreshold  int
	ResetTimeoutSecs  int
}

// ExternalAPI extracts typed external-API-stage parameters.
func ExternalAPI(s model.StageSettings) ExternalAPIParams {
	p := ExternalAPIParams{RequestsPerSecond: 5}
	if v, ok := toFloat(s.Params["requests_per_second"]); ok {
		p.RequestsPerSecond = v
	}
	if v, ok := toFloat(s.Params["max_attempts"]); ok {
		p.MaxAttempts = int(v)
	}
	if v, ok := toFloat(s.Params["initial_backoff_ms"]); ok {
		p.InitialBackoffMs = int(v)
	}
	if v, ok := toFloat(s.Params["max_backoff_ms"]); ok {
		p.MaxBackoffMs = int(v)
	}
	if v, ok := toFloat(s.Params["multiplier"]); ok {
		p.Multiplier = v
	}
	if v, ok := toFloat(s.Params["jitter_fraction"]); ok {
		p.JitterFraction = v
	}
	if v, ok := toFloat(s.Params["failure_threshold"]); ok {
		p.FailureThreshold = int(v)
	}
	if v, ok := toFloat(s.Params["reset_timeout_secs"]); ok {
		p.ResetTimeoutSecs = int(v)
	}
	return p
}

// Validate checks required configuration fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Cache.DBPath == "" {
		errs = append(errs, "cache.db_path is required")
	}
	if len(c.Stages) == 0 {
		errs = append(errs, "at least one stage must be configured")
	}
	for _, name := range c.StageOrder {
		if _, ok := c.Stages[name]; !ok {
			errs = append(errs, fmt.Sprintf("stage_order references unconfigured stage %q", name))
		}
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from file and environment, the same mechanism
// as the teacher's config.Load: viper with a config file plus a
// GEOTICKET_-prefixed environment overlay. path, if non-empty, overrides
// the default "config.yaml in the working directory" search.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GEOTICKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache.db_path", "geoticket.db")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("fail_fast", false)
	v.SetDefault("save_intermediate", false)
	v.SetDefault("concurrency", 1)
	v.SetDefault("tickets_path", "tickets.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

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

// InitLogger initializes the global zap logger from LogConfig.
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
