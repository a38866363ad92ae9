package decide

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geoticket/internal/model"
)

func TestDecideNoPriorRecordNeverSkips(t *testing.T) {
	skip, _ := Decide(nil, "proximity", model.SkipRules{SkipIfLocked: true})
	assert.False(t, skip)
}

func TestDecideSkipIfLocked(t *testing.T) {
	cached := &model.GeocodeRecord{Locked: true, CreatedByStage: "human_review", QualityTier: model.TierGood}
	skip, reason := Decide(cached, "proximity", model.SkipRules{SkipIfLocked: true})
	assert.True(t, skip)
	assert.Contains(t, reason, "locked")
}

func TestDecideSkipIfQuality(t *testing.T) {
	cached := &model.GeocodeRecord{QualityTier: model.TierExcellent, CreatedByStage: "validation"}
	skip, _ := Decide(cached, "proximity", model.SkipRules{SkipIfQuality: []model.QualityTier{model.TierExcellent}})
	assert.True(t, skip)
}

func TestDecideSkipIfConfidenceThreshold(t *testing.T) {
	conf := 0.92
	cached := &model.GeocodeRecord{Confidence: &conf, CreatedByStage: "validation"}
	threshold := 0.90
	skip, _ := Decide(cached, "proximity", model.SkipRules{SkipIfConfidence: &threshold})
	assert.True(t, skip)
}

func TestDecideSkipIfConfidenceBelowThresholdDoesNotSkip(t *testing.T) {
	conf := 0.50
	cached := &model.GeocodeRecord{Confidence: &conf, CreatedByStage: "validation"}
	threshold := 0.90
	skip, _ := Decide(cached, "proximity", model.SkipRules{SkipIfConfidence: &threshold})
	assert.False(t, skip)
}

func TestDecideSkipIfMethod(t *testing.T) {
	cached := &model.GeocodeRecord{Method: "external_api", CreatedByStage: "validation"}
	skip, _ := Decide(cached, "proximity", model.SkipRules{SkipIfMethod: []string{"external_api"}})
	assert.True(t, skip)
}

func TestDecideSkipSameStageDefaultTrueUnlessFailed(t *testing.T) {
	current := &model.GeocodeRecord{CreatedByStage: "proximity", QualityTier: model.TierAcceptable}
	skip, reason := Decide(current, "proximity", model.SkipRules{})
	assert.True(t, skip)
	assert.Contains(t, reason, "same stage")

	failed := &model.GeocodeRecord{CreatedByStage: "proximity", QualityTier: model.TierFailed}
	skip, _ = Decide(failed, "proximity", model.SkipRules{})
	assert.False(t, skip, "a FAILED record from the same stage is always retried")
}

func TestDecideSkipSameStageCanBeDisabled(t *testing.T) {
	disabled := false
	current := &model.GeocodeRecord{CreatedByStage: "proximity", QualityTier: model.TierAcceptable}
	skip, _ := Decide(current, "proximity", model.SkipRules{SkipSameStage: &disabled})
	assert.False(t, skip)
}

func TestDecideNoRuleMatches(t *testing.T) {
	cached := &model.GeocodeRecord{CreatedByStage: "proximity", QualityTier: model.TierAcceptable}
	skip, reason := Decide(cached, "enrichment", model.SkipRules{})
	assert.False(t, skip)
	assert.Equal(t, "no skip rule matched", reason)
}
