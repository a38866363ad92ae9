// Package quality implements the quality assessor (C2): it maps
// (confidence, method, approach, ticket context) to a quality tier and a
// review priority.
package quality

import (
	"strings"

	"github.com/sells-group/geoticket/internal/model"
)

const fallbackApproach = "city_centroid_fallback"

// Config carries the configurable penalty hooks the spec leaves open:
// the city-centroid fallback's -0.10 penalty is mandatory; anything else
// is opt-in and defaults to zero.
type Config struct {
	// MethodPenalties maps a method name to an additional penalty applied
	// when the fallback penalty does not already apply. Defaults to empty.
	MethodPenalties map[string]float64
}

// Input is everything the assessor needs for one record.
type Input struct {
	Confidence      float64
	HasCoordinates  bool
	Method          string
	Approach        string
	TicketType      string
	ValidationFlags []string
}

// Output is the assessor's verdict: the effective (possibly penalized)
// confidence that becomes the record's stored confidence, plus tier and
// priority.
type Output struct {
	EffectiveConfidence float64
	Tier                model.QualityTier
	Priority            model.ReviewPriority
}

// ApplyPenalty applies the method/approach penalty to a raw confidence and
// clamps the result to zero. Exposed separately from Assess so a caller can
// compute and store the effective confidence on a record *before* running
// the validation engine against it — the low_confidence/
// emergency_low_confidence rules must see the same value that ends up
// stored, not the pre-penalty raw confidence.
func ApplyPenalty(confidence float64, approach, method string, cfg Config) float64 {
	eff := confidence
	switch {
	case approach == fallbackApproach:
		eff -= 0.10
	case cfg.MethodPenalties != nil:
		if p, ok := cfg.MethodPenalties[method]; ok {
			eff -= p
		}
	}
	if eff < 0 {
		eff = 0
	}
	return eff
}

// Classify derives the tier and review priority from an already-penalized
// effective confidence plus the record/ticket context.
func Classify(effConfidence float64, hasCoordinates bool, ticketType, approach string, validationFlags []string) (model.QualityTier, model.ReviewPriority) {
	tier := tierFor(effConfidence, hasCoordinates)
	priority := priorityFor(hasCoordinates, approach, ticketType, validationFlags, effConfidence, tier)
	return tier, priority
}

// Assess applies the method/approach penalty, derives the tier from the
// resulting effective confidence, then derives the review priority. A
// single-call convenience wrapper around ApplyPenalty+Classify for callers
// that already know their validation flags up front.
func Assess(in Input, cfg Config) Output {
	eff := ApplyPenalty(in.Confidence, in.Approach, in.Method, cfg)
	tier, priority := Classify(eff, in.HasCoordinates, in.TicketType, in.Approach, in.ValidationFlags)
	return Output{EffectiveConfidence: eff, Tier: tier, Priority: priority}
}

func tierFor(c float64, hasCoords bool) model.QualityTier {
	if !hasCoords || c < 0.40 {
		return model.TierFailed
	}
	switch {
	case c >= 0.90:
		return model.TierExcellent
	case c >= 0.80:
		return model.TierGood
	case c >= 0.65:
		return model.TierAcceptable
	default:
		return model.TierReviewNeeded
	}
}

func priorityFor(hasCoordinates bool, approach, ticketType string, validationFlags []string, effConfidence float64, tier model.QualityTier) model.ReviewPriority {
	switch {
	case !hasCoordinates || tier == model.TierFailed:
		return model.PriorityCritical
	case approach == fallbackApproach:
		return model.PriorityHigh
	case isEmergency(ticketType) && effConfidence < 0.75:
		return model.PriorityHigh
	case len(validationFlags) > 0 && tier == model.TierReviewNeeded:
		return model.PriorityMedium
	case len(validationFlags) > 0 && tier == model.TierAcceptable:
		return model.PriorityLow
	default:
		return model.PriorityNone
	}
}

func isEmergency(ticketType string) bool {
	return strings.EqualFold(ticketType, "Emergency")
}
