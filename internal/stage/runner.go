package stage

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoticket/internal/cache"
	"github.com/sells-group/geoticket/internal/decide"
	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/quality"
	"github.com/sells-group/geoticket/internal/validation"
)

// Outcome classifies what happened to one ticket on one stage.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeImproved  Outcome = "improved"
)

// Runner executes the C8 lifecycle for a single ticket against a single
// stage, wiring in C1 (cache), C3 (validation), C4 (decider), and C2
// (quality).
type Runner struct {
	Store         cache.Store
	Validation    validation.Context
	Quality       quality.Config
}

// RunTicket drives one ticket through stage's lifecycle. The returned
// error is non-nil only for framework-level failures (StorageError) —
// per-ticket failures are always absorbed into FAILED records.
func (r *Runner) RunTicket(ctx context.Context, s Stage, ticket model.Ticket) (*model.GeocodeRecord, Outcome, error) {
	log := zap.L().With(zap.String("stage", s.ID()), zap.String("ticket", ticket.TicketNumber))

	cached, err := r.Store.Current(ctx, ticket.TicketNumber)
	if err != nil {
		return nil, "", eris.Wrap(err, "stage: read current")
	}

	if skip, reason := decide.Decide(cached, s.ID(), s.SkipRules()); skip {
		log.Debug("skipping ticket", zap.String("reason", reason))
		return cached, OutcomeSkipped, nil
	}

	start := time.Now()
	rec, procErr := s.Process(ctx, ticket, cached)
	if procErr != nil {
		rec = model.NewFailedRecord(ticket, s.ID(), procErr)
	}

	// Apply the method/approach penalty and store the effective confidence
	// before running validation, so low_confidence/emergency_low_confidence
	// fire against the value that actually gets stored, not the raw
	// pre-penalty confidence the geocoder returned.
	rawConfidence := 0.0
	if rec.Confidence != nil {
		rawConfidence = *rec.Confidence
	}
	effConfidence := quality.ApplyPenalty(rawConfidence, rec.Approach, rec.Method, r.Quality)
	rec.Confidence = &effConfidence

	flags, _ := validation.Run(rec, r.Validation)
	flagNames := make([]string, len(flags))
	for i, f := range flags {
		flagNames[i] = f.Name
	}
	rec.ValidationFlags = flagNames

	rec.QualityTier, rec.ReviewPriority = quality.Classify(effConfidence, rec.HasCoordinates(), rec.TicketType, rec.Approach, flagNames)

	rec.ProcessingTimeMs = time.Since(start).Milliseconds()

	outcome := OutcomeProcessed
	if cached != nil {
		switch {
		case rec.QualityTier.Rank() < cached.QualityTier.Rank():
			outcome = OutcomeDegraded
		case rec.QualityTier.Rank() > cached.QualityTier.Rank():
			outcome = OutcomeImproved
		}
	}

	stored, err := r.Store.Put(ctx, rec, s.ID())
	if err != nil {
		var locked *model.LockedError
		if errors.As(err, &locked) {
			log.Info("put blocked: record is locked", zap.String("ticket_number", locked.TicketNumber))
			return cached, OutcomeSkipped, nil
		}
		var storageErr *model.StorageError
		if errors.As(err, &storageErr) {
			return nil, "", err
		}
		return nil, "", eris.Wrap(err, "stage: put")
	}

	return stored, outcome, nil
}
