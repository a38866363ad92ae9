package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoticket/internal/cache"
	"github.com/sells-group/geoticket/internal/cityref"
	"github.com/sells-group/geoticket/internal/config"
	"github.com/sells-group/geoticket/internal/corridor"
	"github.com/sells-group/geoticket/internal/fixture"
	"github.com/sells-group/geoticket/internal/geocoder"
	"github.com/sells-group/geoticket/internal/metrics"
	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/orchestrator"
	"github.com/sells-group/geoticket/internal/quality"
	"github.com/sells-group/geoticket/internal/resilience"
	"github.com/sells-group/geoticket/internal/roadnet"
	"github.com/sells-group/geoticket/internal/stage"
	"github.com/sells-group/geoticket/internal/validation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a ticket batch through the geocoding pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context())
	},
}

// runBatch is the C9 wiring: it loads fixtures, builds every configured
// stage, drives the batch through the orchestrator, and writes the
// results alongside the review queue and summary.
func runBatch(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "cmd.run"))

	store, err := cache.NewSQLite(ctx, cfg.Cache.DBPath)
	if err != nil {
		return eris.Wrap(err, "run: open cache store")
	}
	defer func() { _ = store.Close() }()

	tickets, err := fixture.LoadTickets(cfg.TicketsPath)
	if err != nil {
		return eris.Wrap(err, "run: load ticket batch")
	}

	stages, runner, err := buildStages(store)
	if err != nil {
		return eris.Wrap(err, "run: build stages")
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	orch := orchestrator.New(stages, runner, store, orchestrator.Config{
		FailFast:         cfg.FailFast,
		SaveIntermediate: cfg.SaveIntermediate,
		Concurrency:      cfg.Concurrency,
	}, collector)

	var bar *progressbar.ProgressBar
	if len(tickets) > 0 {
		bar = progressbar.Default(int64(len(tickets) * len(stages)))
		orch.OnIntermediate = func(snap orchestrator.IntermediateSnapshot) {
			_ = bar.Add(len(snap.Records))
		}
		defer func() { _ = bar.Finish() }()
	}

	result, err := orch.Run(ctx, tickets, time.Now())
	if err != nil {
		return eris.Wrap(err, "run: pipeline execution")
	}

	log.Info("batch complete",
		zap.Int("total", result.Summary.TotalTickets),
		zap.Int("succeeded", result.Summary.TotalSucceeded),
		zap.Int("failed", result.Summary.TotalFailed),
		zap.Int("review_queue", len(result.ReviewQueue)))

	printSummary(result.Summary)
	return writeResults(*result)
}

// printSummary writes a human-readable batch summary to stdout, colored
// when stdout is a terminal — the same isatty gate the teacher applies
// before using fatih/color so piped output stays plain text.
func printSummary(s orchestrator.Summary) {
	colorEnabled := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	ok.EnableColor()
	bad.EnableColor()
	if !colorEnabled {
		ok.DisableColor()
		bad.DisableColor()
	}

	fmt.Printf("pipeline %s: %d tickets, ", s.PipelineID, s.TotalTickets)
	ok.Printf("%d succeeded", s.TotalSucceeded)
	fmt.Print(", ")
	bad.Printf("%d failed", s.TotalFailed)
	fmt.Printf(", %d skipped, %d rejected (%d ms)\n", s.TotalSkipped, s.TotalRejected, s.TotalTimeMs)
	for _, st := range s.Stages {
		fmt.Printf("  %-20s processed=%-6d succeeded=%-6d failed=%-6d skipped=%-6d degraded=%-6d avg=%.1fms\n",
			st.StageName, st.Processed, st.Succeeded, st.Failed, st.Skipped, st.Degraded, st.AvgTimeMs)
	}
}

// buildStages constructs the ordered stage list and the shared runner from
// cfg.StageOrder/cfg.Stages. Stage names are a closed set the pipeline
// recognizes: "proximity", "enrichment", "external_api".
func buildStages(store cache.Store) ([]stage.Stage, *stage.Runner, error) {
	var stages []stage.Stage
	var validationCtx validation.Context
	var qualityCfg quality.Config

	// The pipeline-proximity geometry is a read-only resource shared by two
	// consumers (spec.md §4.6's +0.15 boost inside the proximity geocoder,
	// and §4.7's enrichment-stage pipeline_mismatch check), so it's built
	// once here from the enrichment stage's config regardless of whether
	// "enrichment" itself runs, and handed to whichever stage geocodes
	// first.
	pipeline, pipelineBoostRadiusM, err := buildPipelineAnalyzer(cfg.Stages["enrichment"])
	if err != nil {
		return nil, nil, err
	}
	if pipeline != nil {
		validationCtx.PipelineAnalyzer = pipeline
		validationCtx.PipelineMismatchThresholdM = pipelineBoostRadiusM
	}

	for _, name := range cfg.StageOrder {
		settings := cfg.Stages[name]
		if !settings.Enabled {
			continue
		}

		switch name {
		case "proximity":
			params := config.Proximity(settings)
			geo, vctx, err := buildGeocoder(params, pipeline)
			if err != nil {
				return nil, nil, err
			}
			validationCtx.CityRefPoint = vctx.CityRefPoint
			validationCtx.CityDistanceThresholdKM = vctx.CityDistanceThresholdKM
			s, err := stage.NewProximityStage(name, settings.SkipRules, geo)
			if err != nil {
				return nil, nil, err
			}
			stages = append(stages, s)

		case "enrichment":
			params := config.Enrichment(settings)
			route, err := buildRouteValidator(params)
			if err != nil {
				return nil, nil, err
			}
			validationCtx.Corridor = route
			s, err := stage.NewEnrichmentStage(name, settings.SkipRules, route, pipeline)
			if err != nil {
				return nil, nil, err
			}
			stages = append(stages, s)

		case "external_api":
			params := config.ExternalAPI(settings)
			retry := resilience.FromRetryConfig(params.MaxAttempts, params.InitialBackoffMs, params.MaxBackoffMs, params.Multiplier, params.JitterFraction)
			breaker := resilience.FromCircuitConfig(params.FailureThreshold, params.ResetTimeoutSecs)
			s, err := stage.NewExternalAPIStage(name, settings.SkipRules, nil, params.RequestsPerSecond, breaker, retry)
			if err != nil {
				// No ExternalClient is wired by default: the provider is a
				// pluggable third-party collaborator (spec.md §1), left
				// disabled unless a host supplies one.
				zap.L().Warn("external_api stage configured but no client wired; skipping", zap.Error(err))
				continue
			}
			stages = append(stages, s)

		default:
			return nil, nil, eris.Errorf("run: unknown stage %q in stage_order", name)
		}
	}

	runner := &stage.Runner{Store: store, Validation: validationCtx, Quality: qualityCfg}
	return stages, runner, nil
}

// buildGeocoder wires pipeline into the returned Geocoder so the proximity
// stage's own §4.6 "+0.15 from C7" boost block fires in a real run rather
// than only under direct-Process unit tests.
func buildGeocoder(p config.ProximityParams, pipeline *corridor.PipelineProximityAnalyzer) (*geocoder.Geocoder, validation.Context, error) {
	network, err := roadnet.LoadShapefile(p.RoadNetworkPath, p.RoadNameField, p.RoadClassField)
	if err != nil {
		return nil, validation.Context{}, eris.Wrap(err, "run: load road network")
	}

	var refs cityref.Map
	if p.CityRefPath != "" {
		refs, err = fixture.LoadCityRefs(p.CityRefPath)
		if err != nil {
			return nil, validation.Context{}, eris.Wrap(err, "run: load city reference map")
		}
	}

	geo := &geocoder.Geocoder{Network: network, CityRefs: refs, Pipeline: pipeline}

	vctx := validation.Context{CityDistanceThresholdKM: p.MaxDistanceKM}
	return geo, vctx, nil
}

func buildRouteValidator(p config.EnrichmentParams) (*corridor.RouteCorridorValidator, error) {
	if p.RouteKMZPath == "" {
		return nil, nil
	}
	pts, err := fixture.LoadGeometry(p.RouteKMZPath)
	if err != nil {
		return nil, eris.Wrap(err, "run: load route geometry")
	}
	return corridor.NewRouteCorridorValidator(pts, p.RouteBufferM), nil
}

func buildPipelineAnalyzer(settings model.StageSettings) (*corridor.PipelineProximityAnalyzer, float64, error) {
	p := config.Enrichment(settings)
	if p.PipelineGeometryPath == "" {
		return nil, 0, nil
	}
	pts, err := fixture.LoadGeometry(p.PipelineGeometryPath)
	if err != nil {
		return nil, 0, eris.Wrap(err, "run: load pipeline geometry")
	}
	return corridor.NewPipelineProximityAnalyzer(pts, p.PipelineBoostRadiusM), p.PipelineBoostRadiusM, nil
}

func writeResults(result orchestrator.Result) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return eris.Wrap(err, "run: create output dir")
	}

	if err := writeJSON(filepath.Join(cfg.OutputDir, "results.json"), result.Results); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(cfg.OutputDir, "review_queue.json"), result.ReviewQueue); err != nil {
		return err
	}
	return writeJSON(filepath.Join(cfg.OutputDir, "summary.json"), result.Summary)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "run: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "run: write %s", path)
	}
	return nil
}
