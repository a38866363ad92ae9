package stage

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoticket/internal/corridor"
	"github.com/sells-group/geoticket/internal/geocoder"
	"github.com/sells-group/geoticket/internal/model"
)

// EnrichmentStage re-examines the current geocoded point against the
// route-corridor and pipeline-proximity enrichers (C7): it carries the
// coordinates forward unchanged but lets the validation engine attach
// out_of_corridor / pipeline_mismatch flags, and applies any unclaimed
// pipeline confidence boost.
type EnrichmentStage struct {
	StageID  string
	Rules    model.SkipRules
	Route    *corridor.RouteCorridorValidator
	Pipeline *corridor.PipelineProximityAnalyzer
}

// NewEnrichmentStage constructs the stage. At least one of route/pipeline
// must be configured, or the stage would never contribute a flag.
func NewEnrichmentStage(stageID string, rules model.SkipRules, route *corridor.RouteCorridorValidator, pipeline *corridor.PipelineProximityAnalyzer) (*EnrichmentStage, error) {
	if route == nil && pipeline == nil {
		return nil, model.NewConfigurationError(stageID, "enrichment stage requires a route corridor or a pipeline geometry")
	}
	return &EnrichmentStage{StageID: stageID, Rules: rules, Route: route, Pipeline: pipeline}, nil
}

func (s *EnrichmentStage) ID() string                { return s.StageID }
func (s *EnrichmentStage) SkipRules() model.SkipRules { return s.Rules }

func (s *EnrichmentStage) Process(_ context.Context, t model.Ticket, cached *model.GeocodeRecord) (*model.GeocodeRecord, error) {
	if cached == nil || !cached.HasCoordinates() {
		return nil, eris.New("enrichment: no prior geocoded record to enrich")
	}

	rec := &model.GeocodeRecord{
		TicketNumber: t.TicketNumber,
		Street:       t.Street,
		Intersection: t.Intersection,
		City:         t.City,
		County:       t.County,
		TicketType:   t.TicketType,
		Duration:     t.Duration,
		WorkType:     t.WorkType,
		Excavator:    t.Excavator,
		Latitude:     cached.Latitude,
		Longitude:    cached.Longitude,
		Method:       s.StageID,
		Approach:     cached.Approach,
		Reasoning:    cached.Reasoning,
	}

	confidence := 0.0
	if cached.Confidence != nil {
		confidence = *cached.Confidence
	}

	if s.Pipeline != nil && cached.Metadata["pipeline_boost_applied"] != true {
		boost := s.Pipeline.Analyze(*cached.Latitude, *cached.Longitude)
		if boost.WithinBoostZone {
			confidence = geocoder.ApplyPipelineBoost(confidence, boost.ConfidenceBoost)
			rec.SetMetadata("pipeline_boost_applied", true)
		}
	}
	rec.Confidence = &confidence

	return rec, nil
}
