// Package orchestrator implements the pipeline orchestrator (C9): it owns
// the ordered stage list and a batch of tickets, runs stage-major, and
// emits results, a prioritized review queue, and a summary.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geoticket/internal/cache"
	"github.com/sells-group/geoticket/internal/metrics"
	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/stage"
)

// Config carries the orchestrator's batch-level flags.
type Config struct {
	FailFast         bool
	SaveIntermediate bool

	// Concurrency bounds how many tickets a single stage processes at once.
	// 0 or 1 runs sequentially (the default, matching spec.md §5's "no
	// concurrency is required"). Values > 1 run process(ticket) for
	// different tickets in parallel, per §5's constraints: the road
	// network/corridor/pipeline are immutable for the batch, and all
	// cache writes still go through C1.Put, which serializes the
	// current-pointer update per ticket.
	Concurrency int
}

// StageSummary is one stage's row in the summary object.
type StageSummary struct {
	StageName string  `json:"stage_name"`
	Processed int     `json:"processed"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Degraded  int     `json:"degraded"`
	AvgTimeMs float64 `json:"avg_time_ms"`
}

// Summary is the end-of-batch JSON-shaped report.
type Summary struct {
	PipelineID     string         `json:"pipeline_id"`
	TotalTickets   int            `json:"total_tickets"`
	TotalSucceeded int            `json:"total_succeeded"`
	TotalFailed    int            `json:"total_failed"`
	TotalSkipped   int            `json:"total_skipped"`
	TotalRejected  int            `json:"total_rejected"`
	TotalTimeMs    int64          `json:"total_time_ms"`
	Stages         []StageSummary `json:"stages"`
}

// Result is everything the orchestrator emits for a batch.
type Result struct {
	Results     []model.GeocodeRecord
	ReviewQueue []model.GeocodeRecord
	Summary     Summary
}

// IntermediateSnapshot is emitted after each stage when SaveIntermediate is
// set — the external collaborator (§1, excluded from the core) decides
// what to do with it; the orchestrator only emits the data.
type IntermediateSnapshot struct {
	StageID string
	Records []model.GeocodeRecord
}

// Orchestrator runs a batch of tickets stage-major through an ordered
// stage list.
type Orchestrator struct {
	stages  []stage.Stage
	runner  *stage.Runner
	store   cache.Store
	cfg     Config
	metrics *metrics.Collector

	OnIntermediate func(IntermediateSnapshot)
}

// New constructs an orchestrator.
func New(stages []stage.Stage, runner *stage.Runner, store cache.Store, cfg Config, m *metrics.Collector) *Orchestrator {
	return &Orchestrator{stages: stages, runner: runner, store: store, cfg: cfg, metrics: m}
}

// Run processes tickets through every stage in order and returns the
// batch's results, review queue, and summary. now is injected so the
// pipeline id is deterministic in tests.
func (o *Orchestrator) Run(ctx context.Context, tickets []model.Ticket, now time.Time) (*Result, error) {
	pipelineID := fmt.Sprintf("run-%s", now.UTC().Format("20060102T150405.000Z"))
	log := zap.L().With(zap.String("component", "orchestrator"), zap.String("pipeline_id", pipelineID))

	valid := make([]model.Ticket, 0, len(tickets))
	rejected := 0
	for _, t := range tickets {
		if err := t.Validate(); err != nil {
			log.Warn("rejecting malformed ticket", zap.Error(err))
			rejected++
			continue
		}
		valid = append(valid, t)
	}

	stats := make(map[string]*stage.Stats, len(o.stages))
	start := time.Now()

	for _, s := range o.stages {
		st := &stage.Stats{}
		stats[s.ID()] = st
		var mu sync.Mutex

		if err := o.runStageTickets(ctx, s, valid, func(rec *model.GeocodeRecord, outcome stage.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			recordOutcome(st, rec, outcome)
		}); err != nil {
			if o.cfg.FailFast {
				return nil, eris.Wrapf(err, "orchestrator: stage %s aborted batch", s.ID())
			}
			log.Error("framework error absorbed without fail_fast", zap.String("stage", s.ID()), zap.Error(err))
		}

		if o.metrics != nil {
			o.metrics.RecordStage(s.ID(), *st)
		}

		if o.cfg.SaveIntermediate && o.OnIntermediate != nil {
			snap, err := o.snapshotCurrent(ctx, valid)
			if err != nil {
				log.Warn("failed to build intermediate snapshot", zap.Error(err))
			} else {
				o.OnIntermediate(IntermediateSnapshot{StageID: s.ID(), Records: snap})
			}
		}
	}

	results, err := o.snapshotCurrent(ctx, valid)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: build results")
	}

	reviewQueue := make([]model.GeocodeRecord, 0, len(results))
	for _, r := range results {
		if r.ReviewPriority != model.PriorityNone {
			reviewQueue = append(reviewQueue, r)
		}
	}
	sort.SliceStable(reviewQueue, func(i, j int) bool {
		if reviewQueue[i].ReviewPriority.Rank() != reviewQueue[j].ReviewPriority.Rank() {
			return reviewQueue[i].ReviewPriority.Rank() > reviewQueue[j].ReviewPriority.Rank()
		}
		ci, cj := confidenceOf(reviewQueue[i]), confidenceOf(reviewQueue[j])
		return ci < cj
	})

	summary := Summary{
		PipelineID:    pipelineID,
		TotalTickets:  len(valid),
		TotalRejected: rejected,
		TotalTimeMs:   time.Since(start).Milliseconds(),
	}
	for _, r := range results {
		if r.QualityTier == model.TierFailed {
			summary.TotalFailed++
		} else {
			summary.TotalSucceeded++
		}
	}
	for _, s := range o.stages {
		st := stats[s.ID()]
		summary.TotalSkipped += st.Skipped
		summary.Stages = append(summary.Stages, StageSummary{
			StageName: s.ID(),
			Processed: st.Processed,
			Succeeded: st.Succeeded,
			Failed:    st.Failed,
			Skipped:   st.Skipped,
			Degraded:  st.Degraded,
			AvgTimeMs: st.AvgTimeMs(),
		})
	}

	return &Result{Results: results, ReviewQueue: reviewQueue, Summary: summary}, nil
}

// runStageTickets drives every ticket in valid through s, sequentially by
// default or with bounded fan-out when Config.Concurrency > 1. errgroup
// cancels the shared context on the first framework-level error so
// fail_fast stops issuing new work without waiting for in-flight tickets to
// exhaust the batch.
func (o *Orchestrator) runStageTickets(ctx context.Context, s stage.Stage, valid []model.Ticket, record func(*model.GeocodeRecord, stage.Outcome)) error {
	if o.cfg.Concurrency <= 1 {
		for _, t := range valid {
			rec, outcome, err := o.runner.RunTicket(ctx, s, t)
			if err != nil {
				if o.cfg.FailFast {
					return err
				}
				continue
			}
			record(rec, outcome)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for _, t := range valid {
		t := t
		g.Go(func() error {
			rec, outcome, err := o.runner.RunTicket(gctx, s, t)
			if err != nil {
				if o.cfg.FailFast {
					return err
				}
				return nil
			}
			record(rec, outcome)
			return nil
		})
	}
	return g.Wait()
}

func recordOutcome(st *stage.Stats, rec *model.GeocodeRecord, outcome stage.Outcome) {
	if outcome == stage.OutcomeSkipped {
		st.Skipped++
		return
	}

	st.Processed++
	st.TotalTimeMs += rec.ProcessingTimeMs
	switch outcome {
	case stage.OutcomeDegraded:
		st.Degraded++
		st.Failed += failedDelta(rec)
		st.Succeeded += succeededDelta(rec)
	case stage.OutcomeImproved:
		st.Improved++
		st.Succeeded += succeededDelta(rec)
		st.Failed += failedDelta(rec)
	default:
		st.Succeeded += succeededDelta(rec)
		st.Failed += failedDelta(rec)
	}
}

func (o *Orchestrator) snapshotCurrent(ctx context.Context, tickets []model.Ticket) ([]model.GeocodeRecord, error) {
	out := make([]model.GeocodeRecord, 0, len(tickets))
	for _, t := range tickets {
		cur, err := o.store.Current(ctx, t.TicketNumber)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			out = append(out, *cur)
		}
	}
	return out, nil
}

func confidenceOf(r model.GeocodeRecord) float64 {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

func failedDelta(rec *model.GeocodeRecord) int {
	if rec.QualityTier == model.TierFailed {
		return 1
	}
	return 0
}

func succeededDelta(rec *model.GeocodeRecord) int {
	if rec.QualityTier != model.TierFailed {
		return 1
	}
	return 0
}
