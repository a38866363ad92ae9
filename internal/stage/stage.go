// Package stage implements the stage framework (C8): the abstract stage
// lifecycle (should-skip -> process -> assess -> cache write) shared by
// every concrete stage, grounded on the teacher's
// internal/pipeline/geocode.go phase pattern.
package stage

import (
	"context"

	"github.com/sells-group/geoticket/internal/model"
)

// Stage is the capability set a concrete stage supplies: a stable id, its
// skip rules, and a process function. Modeled as an interface rather than
// a class hierarchy, per the spec's polymorphism note.
type Stage interface {
	ID() string
	SkipRules() model.SkipRules
	Process(ctx context.Context, ticket model.Ticket, cached *model.GeocodeRecord) (*model.GeocodeRecord, error)
}

// Stats accumulates per-stage counters across a batch.
type Stats struct {
	Processed   int
	Succeeded   int
	Failed      int
	Skipped     int
	Degraded    int
	Improved    int
	TotalTimeMs int64
}

// AvgTimeMs is total processing time divided by processed count, 0 if none.
func (s Stats) AvgTimeMs() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.TotalTimeMs) / float64(s.Processed)
}
