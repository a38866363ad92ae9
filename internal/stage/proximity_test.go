package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoticket/internal/corridor"
	"github.com/sells-group/geoticket/internal/geocoder"
	"github.com/sells-group/geoticket/internal/geomutil"
	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/roadnet"
)

func TestNewProximityStageRejectsNilGeocoder(t *testing.T) {
	_, err := NewProximityStage("proximity", model.SkipRules{}, nil)
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestProximityStageProcessSetsMethodAndCoordinates(t *testing.T) {
	mainSt := &roadnet.RoadSegment{RawName: "Main St", Geometry: []geomutil.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}}
	oakAve := &roadnet.RoadSegment{RawName: "Oak Ave", Geometry: []geomutil.Point{{Lat: -1, Lng: 0.5}, {Lat: 1, Lng: 0.5}}}
	geo := &geocoder.Geocoder{Network: roadnet.New([]*roadnet.RoadSegment{mainSt, oakAve})}

	s, err := NewProximityStage("proximity", model.SkipRules{}, geo)
	require.NoError(t, err)

	ticket := model.Ticket{TicketNumber: "T-1", Street: "Main St", Intersection: "Oak Ave"}
	rec, err := s.Process(context.Background(), ticket, nil)
	require.NoError(t, err)

	assert.Equal(t, "proximity", rec.Method)
	require.NotNil(t, rec.Latitude)
	assert.Equal(t, "corridor_midpoint", rec.Approach)
	assert.Equal(t, false, rec.Metadata["road_a_missing"])
}

func TestProximityStageProcessRecordsFailureReasoning(t *testing.T) {
	geo := &geocoder.Geocoder{Network: roadnet.New(nil)}
	s, err := NewProximityStage("proximity", model.SkipRules{}, geo)
	require.NoError(t, err)

	ticket := model.Ticket{TicketNumber: "T-2", Street: "Nowhere Rd"}
	rec, err := s.Process(context.Background(), ticket, nil)
	require.NoError(t, err)

	assert.Nil(t, rec.Latitude)
	assert.Equal(t, 0.0, *rec.Confidence)
	assert.NotEmpty(t, rec.ErrorMessage)
}

func TestProximityStageAppliesPipelineBoostWhenWithinZone(t *testing.T) {
	mainSt := &roadnet.RoadSegment{RawName: "Main St", Geometry: []geomutil.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}}
	oakAve := &roadnet.RoadSegment{RawName: "Oak Ave", Geometry: []geomutil.Point{{Lat: -1, Lng: 0.5}, {Lat: 1, Lng: 0.5}}}
	pipeline := corridor.NewPipelineProximityAnalyzer([]geomutil.Point{{Lat: -0.01, Lng: 0.5}, {Lat: 0.01, Lng: 0.5}}, 5000)
	geo := &geocoder.Geocoder{Network: roadnet.New([]*roadnet.RoadSegment{mainSt, oakAve}), Pipeline: pipeline}

	s, err := NewProximityStage("proximity", model.SkipRules{}, geo)
	require.NoError(t, err)

	ticket := model.Ticket{TicketNumber: "T-3", Street: "Main St", Intersection: "Oak Ave"}
	rec, err := s.Process(context.Background(), ticket, nil)
	require.NoError(t, err)

	assert.Equal(t, true, rec.Metadata["pipeline_boost_applied"])
	assert.Greater(t, *rec.Confidence, 0.85)
}
