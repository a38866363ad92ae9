// Package decide implements the reprocessing decider (C4): given a cached
// record, an incoming stage id, and that stage's skip rules, decide
// whether to skip the ticket and why.
package decide

import (
	"fmt"

	"github.com/sells-group/geoticket/internal/model"
)

// Decide evaluates rules against cached, combined with OR-semantics — any
// matching rule causes a skip. A nil cached record never skips.
func Decide(cached *model.GeocodeRecord, incomingStageID string, rules model.SkipRules) (skip bool, reason string) {
	if cached == nil {
		return false, "no prior record"
	}

	if rules.SkipIfLocked && cached.Locked {
		return true, "cached record is locked"
	}

	for _, tier := range rules.SkipIfQuality {
		if cached.QualityTier == tier {
			return true, fmt.Sprintf("cached quality tier %s matches skip_if_quality", tier)
		}
	}

	if rules.SkipIfConfidence != nil && cached.Confidence != nil && *cached.Confidence >= *rules.SkipIfConfidence {
		return true, fmt.Sprintf("cached confidence %.2f meets skip_if_confidence threshold %.2f", *cached.Confidence, *rules.SkipIfConfidence)
	}

	for _, m := range rules.SkipIfMethod {
		if cached.Method == m {
			return true, fmt.Sprintf("cached method %q matches skip_if_method", m)
		}
	}

	if rules.SkipSameStageEnabled() && cached.CreatedByStage == incomingStageID && cached.QualityTier != model.TierFailed {
		return true, "same stage already produced a non-failed result"
	}

	return false, "no skip rule matched"
}
