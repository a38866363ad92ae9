package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityTierRank(t *testing.T) {
	assert.Less(t, TierFailed.Rank(), TierReviewNeeded.Rank())
	assert.Less(t, TierReviewNeeded.Rank(), TierAcceptable.Rank())
	assert.Less(t, TierAcceptable.Rank(), TierGood.Rank())
	assert.Less(t, TierGood.Rank(), TierExcellent.Rank())
	assert.Equal(t, -1, QualityTier("bogus").Rank())
}

func TestReviewPriorityRank(t *testing.T) {
	assert.Less(t, PriorityNone.Rank(), PriorityLow.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityCritical.Rank())
}

func TestHasCoordinates(t *testing.T) {
	var r *GeocodeRecord
	assert.False(t, r.HasCoordinates())

	r = &GeocodeRecord{}
	assert.False(t, r.HasCoordinates())

	lat, lng := 30.0, -97.0
	r.Latitude = &lat
	r.Longitude = &lng
	assert.True(t, r.HasCoordinates())
}

func TestSetMetadataAppendOnly(t *testing.T) {
	r := &GeocodeRecord{}
	r.SetMetadata("road_a_missing", true)
	r.SetMetadata("road_a_missing", false)
	require.Equal(t, true, r.Metadata["road_a_missing"], "first write wins; later stages never overwrite")
}

func TestNewFailedRecord(t *testing.T) {
	ticket := Ticket{TicketNumber: "T-1", Street: "Main St"}
	rec := NewFailedRecord(ticket, "proximity", errors.New("boom"))

	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.0, *rec.Confidence)
	assert.Equal(t, "T-1", rec.TicketNumber)
	assert.Equal(t, "proximity", rec.Method)
	assert.Contains(t, rec.Reasoning, "boom")
	assert.False(t, rec.HasCoordinates())
}

func TestTicketValidate(t *testing.T) {
	require.NoError(t, Ticket{TicketNumber: "T-1"}.Validate())

	err := Ticket{}.Validate()
	require.Error(t, err)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestTicketIsEmergency(t *testing.T) {
	assert.True(t, Ticket{TicketType: "emergency"}.IsEmergency())
	assert.True(t, Ticket{TicketType: "Emergency"}.IsEmergency())
	assert.False(t, Ticket{TicketType: "Routine"}.IsEmergency())
}

func TestSkipRulesSkipSameStageDefault(t *testing.T) {
	assert.True(t, SkipRules{}.SkipSameStageEnabled())
	disabled := false
	assert.False(t, SkipRules{SkipSameStage: &disabled}.SkipSameStageEnabled())
}
