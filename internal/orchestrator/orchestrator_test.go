package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoticket/internal/cache"
	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/quality"
	"github.com/sells-group/geoticket/internal/stage"
	"github.com/sells-group/geoticket/internal/validation"
)

// scriptedStage returns a fixed confidence per ticket, keyed by ticket
// number, and fails for any ticket not present in the map.
type scriptedStage struct {
	id         string
	confidence map[string]float64
}

func (s *scriptedStage) ID() string                      { return s.id }
func (s *scriptedStage) SkipRules() model.SkipRules      { return model.SkipRules{} }
func (s *scriptedStage) Process(_ context.Context, t model.Ticket, _ *model.GeocodeRecord) (*model.GeocodeRecord, error) {
	c, ok := s.confidence[t.TicketNumber]
	if !ok {
		return nil, assertErr("no script entry for " + t.TicketNumber)
	}
	lat, lng := 30.0, -97.0
	return &model.GeocodeRecord{TicketNumber: t.TicketNumber, Latitude: &lat, Longitude: &lng, Confidence: &c, Method: s.id}, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func assertErr(msg string) error  { return simpleErr(msg) }

func newTestOrchestrator(t *testing.T, cfg Config, s stage.Stage) (*Orchestrator, cache.Store) {
	t.Helper()
	store, err := cache.NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runner := &stage.Runner{Store: store, Validation: validation.Context{}, Quality: quality.Config{}}
	return New([]stage.Stage{s}, runner, store, cfg, nil), store
}

func TestRunRejectsMalformedTickets(t *testing.T) {
	s := &scriptedStage{id: "proximity", confidence: map[string]float64{"T-1": 0.95}}
	o, _ := newTestOrchestrator(t, Config{}, s)

	result, err := o.Run(context.Background(), []model.Ticket{{TicketNumber: "T-1"}, {TicketNumber: ""}}, fixedTime())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.TotalRejected)
	assert.Equal(t, 1, result.Summary.TotalTickets)
}

func TestRunProducesSummaryAndResults(t *testing.T) {
	s := &scriptedStage{id: "proximity", confidence: map[string]float64{"T-1": 0.95, "T-2": 0.5}}
	o, _ := newTestOrchestrator(t, Config{}, s)

	result, err := o.Run(context.Background(), []model.Ticket{{TicketNumber: "T-1"}, {TicketNumber: "T-2"}}, fixedTime())
	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
	require.Len(t, result.Summary.Stages, 1)
	assert.Equal(t, 2, result.Summary.Stages[0].Processed)
	assert.Equal(t, 2, result.Summary.TotalSucceeded)
}

func TestRunReviewQueueSortedByPriorityThenConfidence(t *testing.T) {
	s := &scriptedStage{id: "proximity", confidence: map[string]float64{
		"T-1": 0.95, // NONE, excluded from the queue
		"T-2": 0.45, // flagged low_confidence, tier REVIEW_NEEDED -> MEDIUM
		"T-3": 0.35, // below the 0.40 floor -> FAILED tier -> CRITICAL
	}}
	o, _ := newTestOrchestrator(t, Config{}, s)

	result, err := o.Run(context.Background(), []model.Ticket{{TicketNumber: "T-1"}, {TicketNumber: "T-2"}, {TicketNumber: "T-3"}}, fixedTime())
	require.NoError(t, err)

	require.Len(t, result.ReviewQueue, 2)
	assert.Equal(t, "T-3", result.ReviewQueue[0].TicketNumber)
	assert.Equal(t, model.PriorityCritical, result.ReviewQueue[0].ReviewPriority)
	assert.Equal(t, "T-2", result.ReviewQueue[1].TicketNumber)
	assert.Equal(t, model.PriorityMedium, result.ReviewQueue[1].ReviewPriority)
}

func TestRunFailFastAbortsOnFrameworkError(t *testing.T) {
	// A confidence above 1.0 survives quality assessment uncapped on the high
	// end (only the floor is clamped), so it reaches Put and trips the cache
	// store's invariant check — a genuine framework-level StorageError, not
	// a per-ticket failure.
	s := &scriptedStage{id: "proximity", confidence: map[string]float64{"T-1": 0.95, "T-2": 1.5}}
	o, _ := newTestOrchestrator(t, Config{FailFast: true}, s)

	_, err := o.Run(context.Background(), []model.Ticket{{TicketNumber: "T-1"}, {TicketNumber: "T-2"}}, fixedTime())
	assert.Error(t, err)
}

func TestRunConcurrencyFanOutProducesSameResultCount(t *testing.T) {
	confidence := map[string]float64{}
	tickets := make([]model.Ticket, 0, 20)
	for i := 0; i < 20; i++ {
		num := "T-" + string(rune('A'+i))
		confidence[num] = 0.9
		tickets = append(tickets, model.Ticket{TicketNumber: num})
	}
	s := &scriptedStage{id: "proximity", confidence: confidence}
	o, _ := newTestOrchestrator(t, Config{Concurrency: 4}, s)

	result, err := o.Run(context.Background(), tickets, fixedTime())
	require.NoError(t, err)
	assert.Len(t, result.Results, 20)
	assert.Equal(t, 20, result.Summary.Stages[0].Processed)
}

func TestRunIntermediateSnapshotCallback(t *testing.T) {
	s := &scriptedStage{id: "proximity", confidence: map[string]float64{"T-1": 0.95}}
	o, _ := newTestOrchestrator(t, Config{SaveIntermediate: true}, s)

	var snapshots []IntermediateSnapshot
	o.OnIntermediate = func(snap IntermediateSnapshot) {
		snapshots = append(snapshots, snap)
	}

	_, err := o.Run(context.Background(), []model.Ticket{{TicketNumber: "T-1"}}, fixedTime())
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "proximity", snapshots[0].StageID)
	assert.Len(t, snapshots[0].Records, 1)
}

func fixedTime() time.Time {
	return time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
}
