package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoticket/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "geoticket.db", cfg.Cache.DBPath)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.False(t, cfg.FailFast)
	assert.False(t, cfg.SaveIntermediate)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "tickets.yaml", cfg.TicketsPath)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  db_path: /tmp/custom.db
output_dir: /tmp/out
fail_fast: true
log:
  level: debug
  format: console
stages:
  proximity_geocode:
    enabled: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Cache.DBPath)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.Contains(t, cfg.Stages, "proximity_geocode")
	assert.True(t, cfg.Stages["proximity_geocode"].Enabled)
}

func TestValidateRequiresCacheAndStages(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)

	cfg.Cache.DBPath = "geoticket.db"
	cfg.Stages = map[string]model.StageSettings{"proximity_geocode": {Enabled: true}}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownStageOrderEntry(t *testing.T) {
	cfg := &Config{
		Cache:      CacheConfig{DBPath: "geoticket.db"},
		Stages:     map[string]model.StageSettings{"proximity_geocode": {Enabled: true}},
		StageOrder: []string{"proximity_geocode", "enrichment"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `stage_order references unconfigured stage "enrichment"`)
}

func TestInitLoggerConsoleAndJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
}

func TestProximityDefaults(t *testing.T) {
	p := Proximity(model.StageSettings{})
	assert.InDelta(t, 50, p.MaxDistanceKM, 0.001)

	p = Proximity(model.StageSettings{Params: map[string]any{"max_distance_km": 75.0, "road_network_path": "/tmp/roads.shp"}})
	assert.InDelta(t, 75, p.MaxDistanceKM, 0.001)
	assert.Equal(t, "/tmp/roads.shp", p.RoadNetworkPath)
}

func TestEnrichmentDefaults(t *testing.T) {
	e := Enrichment(model.StageSettings{})
	assert.InDelta(t, 500, e.RouteBufferM, 0.001)
	assert.InDelta(t, 500, e.PipelineBoostRadiusM, 0.001)

	e = Enrichment(model.StageSettings{Params: map[string]any{
		"route":    map[string]any{"kmz_path": "/tmp/route.kmz", "buffer_m": 250.0},
		"pipeline": map[string]any{"geometry_path": "/tmp/pipe.geojson", "boost_radius_m": 300.0},
	}})
	assert.Equal(t, "/tmp/route.kmz", e.RouteKMZPath)
	assert.InDelta(t, 250, e.RouteBufferM, 0.001)
	assert.Equal(t, "/tmp/pipe.geojson", e.PipelineGeometryPath)
	assert.InDelta(t, 300, e.PipelineBoostRadiusM, 0.001)
}

func TestExternalAPIDefaults(t *testing.T) {
	p := ExternalAPI(model.StageSettings{})
	assert.InDelta(t, 5, p.RequestsPerSecond, 0.001)
	assert.Equal(t, 0, p.MaxAttempts)
}

func TestExternalAPIParamsFromConfig(t *testing.T) {
	p := ExternalAPI(model.StageSettings{Params: map[string]any{
		"requests_per_second": 10.0,
		"max_attempts":        5.0,
		"initial_backoff_ms":  200.0,
		"max_backoff_ms":      5000.0,
		"multiplier":          2.5,
		"jitter_fraction":     0.1,
		"failure_threshold":   3.0,
		"reset_timeout_secs":  60.0,
	}})
	assert.InDelta(t, 10, p.RequestsPerSecond, 0.001)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 200, p.InitialBackoffMs)
	assert.Equal(t, 5000, p.MaxBackoffMs)
	assert.InDelta(t, 2.5, p.Multiplier, 0.001)
	assert.InDelta(t, 0.1, p.JitterFraction, 0.001)
	assert.Equal(t, 3, p.FailureThreshold)
	assert.Equal(t, 60, p.ResetTimeoutSecs)
}
