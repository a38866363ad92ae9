// Package metrics exposes the orchestrator's per-stage statistics as
// Prometheus gauges, an ambient observability concern carried even though
// the spec's non-goals exclude real-time streaming — this is a batch-end
// snapshot, not a streaming concern.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/geoticket/internal/stage"
)

// Collector owns a private registry so multiple pipeline runs in the same
// process (e.g. tests) don't collide on global metric registration.
type Collector struct {
	registry  *prometheus.Registry
	processed *prometheus.GaugeVec
	succeeded *prometheus.GaugeVec
	failed    *prometheus.GaugeVec
	skipped   *prometheus.GaugeVec
	degraded  *prometheus.GaugeVec
	avgTimeMs *prometheus.GaugeVec
}

// NewCollector builds a Collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry:  reg,
		processed: gauge(reg, "geoticket_stage_processed", "Tickets processed by a pipeline stage."),
		succeeded: gauge(reg, "geoticket_stage_succeeded", "Tickets that produced a non-FAILED record for a stage."),
		failed:    gauge(reg, "geoticket_stage_failed", "Tickets that produced a FAILED record for a stage."),
		skipped:   gauge(reg, "geoticket_stage_skipped", "Tickets skipped by a stage's decider."),
		degraded:  gauge(reg, "geoticket_stage_degraded", "Tickets whose quality tier regressed on a stage."),
		avgTimeMs: gauge(reg, "geoticket_stage_avg_time_ms", "Average per-ticket processing time for a stage, in milliseconds."),
	}
	return c
}

func gauge(reg *prometheus.Registry, name, help string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{"stage"})
	reg.MustRegister(g)
	return g
}

// RecordStage publishes one stage's end-of-stage statistics.
func (c *Collector) RecordStage(stageID string, st stage.Stats) {
	if c == nil {
		return
	}
	c.processed.WithLabelValues(stageID).Set(float64(st.Processed))
	c.succeeded.WithLabelValues(stageID).Set(float64(st.Succeeded))
	c.failed.WithLabelValues(stageID).Set(float64(st.Failed))
	c.skipped.WithLabelValues(stageID).Set(float64(st.Skipped))
	c.degraded.WithLabelValues(stageID).Set(float64(st.Degraded))
	c.avgTimeMs.WithLabelValues(stageID).Set(st.AvgTimeMs())
}

// Handler returns an http.Handler serving this collector's registry in the
// Prometheus exposition format, suitable for mounting on an admin port.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
