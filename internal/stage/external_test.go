package stage

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/resilience"
)

type fakeExternalClient struct {
	calls   int
	failN   int // fail the first failN calls, then succeed
	lat     float64
	lng     float64
	conf    float64
	failErr error
}

func (c *fakeExternalClient) Geocode(ctx context.Context, t model.Ticket) (float64, float64, float64, error) {
	c.calls++
	if c.calls <= c.failN {
		if c.failErr != nil {
			return 0, 0, 0, c.failErr
		}
		return 0, 0, 0, resilience.NewTransientError(eris.New("upstream timeout"), 503)
	}
	return c.lat, c.lng, c.conf, nil
}

func TestNewExternalAPIStageRejectsNilClient(t *testing.T) {
	_, err := NewExternalAPIStage("external_api", model.SkipRules{}, nil, 5, resilience.DefaultCircuitBreakerConfig(), resilience.DefaultRetryConfig())
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestExternalAPIStageProcessReturnsResolvedRecord(t *testing.T) {
	client := &fakeExternalClient{lat: 30.0, lng: -97.0, conf: 0.8}
	s, err := NewExternalAPIStage("external_api", model.SkipRules{}, client, 100, resilience.DefaultCircuitBreakerConfig(), resilience.RetryConfig{MaxAttempts: 1})
	require.NoError(t, err)

	rec, err := s.Process(context.Background(), model.Ticket{TicketNumber: "T-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "external_api", rec.Method)
	assert.Equal(t, "external_api", rec.Approach)
	assert.Equal(t, 30.0, *rec.Latitude)
	assert.Equal(t, 0.8, *rec.Confidence)
}

func TestExternalAPIStageRetriesTransientFailures(t *testing.T) {
	client := &fakeExternalClient{failN: 2, lat: 30.0, lng: -97.0, conf: 0.8}
	retry := resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: 0, MaxBackoff: 0, Multiplier: 2, JitterFraction: 0}
	s, err := NewExternalAPIStage("external_api", model.SkipRules{}, client, 100, resilience.DefaultCircuitBreakerConfig(), retry)
	require.NoError(t, err)

	rec, err := s.Process(context.Background(), model.Ticket{TicketNumber: "T-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, 30.0, *rec.Latitude)
}

func TestExternalAPIStagePropagatesExhaustedRetries(t *testing.T) {
	client := &fakeExternalClient{failN: 10}
	retry := resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: 0, MaxBackoff: 0, Multiplier: 2, JitterFraction: 0}
	s, err := NewExternalAPIStage("external_api", model.SkipRules{}, client, 100, resilience.DefaultCircuitBreakerConfig(), retry)
	require.NoError(t, err)

	_, err = s.Process(context.Background(), model.Ticket{TicketNumber: "T-1"}, nil)
	assert.Error(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestExternalAPIStageRunnerWrapsFailureAsFailedRecord(t *testing.T) {
	client := &fakeExternalClient{failN: 10}
	retry := resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: 0, MaxBackoff: 0, Multiplier: 2, JitterFraction: 0}
	s, err := NewExternalAPIStage("external_api", model.SkipRules{}, client, 100, resilience.DefaultCircuitBreakerConfig(), retry)
	require.NoError(t, err)

	r, _ := newRunner(t)
	rec, outcome, err := r.RunTicket(context.Background(), s, model.Ticket{TicketNumber: "T-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, model.TierFailed, rec.QualityTier)
}
