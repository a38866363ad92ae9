package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geoticket/internal/model"
)

func TestAssessTierBoundaries(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		wantTier   model.QualityTier
	}{
		{"excellent at threshold", 0.90, model.TierExcellent},
		{"good at threshold", 0.80, model.TierGood},
		{"just below good", 0.79, model.TierAcceptable},
		{"acceptable at threshold", 0.65, model.TierAcceptable},
		{"review needed at threshold", 0.40, model.TierReviewNeeded},
		{"just below review needed", 0.39, model.TierFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := Assess(Input{Confidence: c.confidence, HasCoordinates: true}, Config{})
			assert.Equal(t, c.wantTier, out.Tier)
		})
	}
}

func TestAssessMissingCoordinatesAlwaysFails(t *testing.T) {
	out := Assess(Input{Confidence: 0.95, HasCoordinates: false}, Config{})
	assert.Equal(t, model.TierFailed, out.Tier)
	assert.Equal(t, model.PriorityCritical, out.Priority)
}

func TestAssessCityCentroidFallbackPenalty(t *testing.T) {
	out := Assess(Input{Confidence: 0.75, HasCoordinates: true, Approach: "city_centroid_fallback"}, Config{})
	assert.InDelta(t, 0.65, out.EffectiveConfidence, 1e-9)
	assert.Equal(t, model.PriorityHigh, out.Priority)
}

func TestAssessConfigurableMethodPenaltyDefaultsToZero(t *testing.T) {
	out := Assess(Input{Confidence: 0.80, HasCoordinates: true, Method: "external_api"}, Config{})
	assert.InDelta(t, 0.80, out.EffectiveConfidence, 1e-9)
}

func TestAssessConfigurableMethodPenaltyApplied(t *testing.T) {
	cfg := Config{MethodPenalties: map[string]float64{"external_api": 0.10}}
	out := Assess(Input{Confidence: 0.80, HasCoordinates: true, Method: "external_api"}, cfg)
	assert.InDelta(t, 0.70, out.EffectiveConfidence, 1e-9)
}

func TestAssessEffectiveConfidenceNeverNegative(t *testing.T) {
	cfg := Config{MethodPenalties: map[string]float64{"weak": 0.50}}
	out := Assess(Input{Confidence: 0.10, HasCoordinates: true, Method: "weak"}, cfg)
	assert.Equal(t, 0.0, out.EffectiveConfidence)
}

func TestAssessPriorityMissingCoordsTakesPrecedenceOverEmergency(t *testing.T) {
	// Coordinates missing must win CRITICAL even for an emergency ticket,
	// not HIGH from the emergency-low-confidence rule.
	out := Assess(Input{Confidence: 0.0, HasCoordinates: false, TicketType: "Emergency"}, Config{})
	assert.Equal(t, model.PriorityCritical, out.Priority)
}

func TestAssessPriorityEmergencyLowConfidence(t *testing.T) {
	out := Assess(Input{Confidence: 0.60, HasCoordinates: true, TicketType: "Emergency"}, Config{})
	assert.Equal(t, model.PriorityHigh, out.Priority)
}

func TestAssessPriorityValidationFlagsDriveMediumAndLow(t *testing.T) {
	medium := Assess(Input{Confidence: 0.50, HasCoordinates: true, ValidationFlags: []string{"low_confidence"}}, Config{})
	assert.Equal(t, model.PriorityMedium, medium.Priority)

	low := Assess(Input{Confidence: 0.70, HasCoordinates: true, ValidationFlags: []string{"city_distance"}}, Config{})
	assert.Equal(t, model.PriorityLow, low.Priority)
}

func TestAssessPriorityNoneForCleanHighConfidence(t *testing.T) {
	out := Assess(Input{Confidence: 0.95, HasCoordinates: true}, Config{})
	assert.Equal(t, model.PriorityNone, out.Priority)
}
