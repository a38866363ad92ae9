package stage

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/resilience"
)

// ExternalClient is the third-party geocoding API collaborator. Spec.md §1
// scopes an implementation out ("no implementation required"); this
// interface is the slot a host wires a real provider into.
type ExternalClient interface {
	Geocode(ctx context.Context, t model.Ticket) (lat, lng, confidence float64, err error)
}

// ExternalAPIStage wraps a third-party ExternalClient behind the same
// rate-limiting, retry, and circuit-breaking the teacher applies to its own
// outbound API calls (pkg/geocode.Client, internal/resilience), so the slot
// is a real, exercised extension point rather than a dead one.
type ExternalAPIStage struct {
	StageID string
	Rules   model.SkipRules
	Client  ExternalClient

	Limiter *rate.Limiter
	Breaker *resilience.CircuitBreaker
	Retry   resilience.RetryConfig
}

// NewExternalAPIStage constructs the stage. A nil client is rejected at
// construction, before any tickets are processed, per the spec's
// ConfigurationError taxonomy — this stage is useless without a provider.
func NewExternalAPIStage(stageID string, rules model.SkipRules, client ExternalClient, rps float64, breaker resilience.CircuitBreakerConfig, retry resilience.RetryConfig) (*ExternalAPIStage, error) {
	if client == nil {
		return nil, model.NewConfigurationError(stageID, "external API stage requires a configured ExternalClient")
	}
	if rps <= 0 {
		rps = 5
	}
	return &ExternalAPIStage{
		StageID: stageID,
		Rules:   rules,
		Client:  client,
		Limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		Breaker: resilience.NewCircuitBreaker(breaker),
		Retry:   retry,
	}, nil
}

func (s *ExternalAPIStage) ID() string                { return s.StageID }
func (s *ExternalAPIStage) SkipRules() model.SkipRules { return s.Rules }

// Process calls the external provider through the rate limiter, circuit
// breaker, and retry loop. A provider failure is returned as an error, which
// the Runner turns into a FAILED record — per-ticket failures never
// propagate to the orchestrator.
func (s *ExternalAPIStage) Process(ctx context.Context, t model.Ticket, _ *model.GeocodeRecord) (*model.GeocodeRecord, error) {
	log := zap.L().With(zap.String("stage", s.StageID), zap.String("ticket", t.TicketNumber))

	if err := s.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lat, lng, confidence float64
	retry := s.Retry
	retry.OnRetry = resilience.RetryLogger(s.StageID, "geocode")

	callErr := s.Breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, retry, func(ctx context.Context) error {
			var err error
			lat, lng, confidence, err = s.Client.Geocode(ctx, t)
			return err
		})
	})
	if callErr != nil {
		log.Warn("external geocode call failed", zap.Error(callErr))
		return nil, callErr
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
		Method:       s.StageID,
		Approach:     "external_api",
		Confidence:   &confidence,
		Latitude:     &lat,
		Longitude:    &lng,
		Reasoning:    "resolved via third-party geocoding API",
	}
	return rec, nil
}
