package stage

import (
	"context"

	"github.com/sells-group/geoticket/internal/geocoder"
	"github.com/sells-group/geoticket/internal/model"
)

// ProximityStage wraps the proximity geocoder (C6) as a Stage.
type ProximityStage struct {
	StageID string
	Rules   model.SkipRules
	Geo     *geocoder.Geocoder
}

// NewProximityStage constructs the stage, failing with a ConfigurationError
// if its required geocoder isn't configured — detected before any tickets
// are processed, per the spec's error taxonomy.
func NewProximityStage(stageID string, rules model.SkipRules, geo *geocoder.Geocoder) (*ProximityStage, error) {
	if geo == nil || geo.Network == nil {
		return nil, model.NewConfigurationError(stageID, "proximity stage requires a loaded road network")
	}
	return &ProximityStage{StageID: stageID, Rules: rules, Geo: geo}, nil
}

func (s *ProximityStage) ID() string              { return s.StageID }
func (s *ProximityStage) SkipRules() model.SkipRules { return s.Rules }

func (s *ProximityStage) Process(_ context.Context, t model.Ticket, _ *model.GeocodeRecord) (*model.GeocodeRecord, error) {
	res := s.Geo.Geocode(t)

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
		Method:       s.StageID,
		Approach:     res.Approach,
		Reasoning:    res.Reasoning,
	}

	if res.Latitude != nil && res.Longitude != nil {
		rec.Latitude = res.Latitude
		rec.Longitude = res.Longitude
		confidence := res.Confidence

		if s.Geo.Pipeline != nil {
			boost := s.Geo.Pipeline.Analyze(*res.Latitude, *res.Longitude)
			if boost.WithinBoostZone {
				confidence = geocoder.ApplyPipelineBoost(confidence, boost.ConfidenceBoost)
				rec.SetMetadata("pipeline_boost_applied", true)
			}
		}
		rec.Confidence = &confidence
	} else {
		zero := 0.0
		rec.Confidence = &zero
		rec.ErrorMessage = res.Reasoning
	}

	rec.SetMetadata("road_a_missing", res.RoadAMissing)
	rec.SetMetadata("road_b_missing", res.RoadBMissing)

	return rec, nil
}
