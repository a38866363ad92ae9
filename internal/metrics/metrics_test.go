package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoticket/internal/stage"
)

func TestRecordStageExposesGaugesOverHTTP(t *testing.T) {
	c := NewCollector()
	c.RecordStage("proximity", stage.Stats{Processed: 10, Succeeded: 8, Failed: 2, Skipped: 1, Degraded: 1, TotalTimeMs: 1000})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	body := buf.String()

	assert.Contains(t, body, `geoticket_stage_processed{stage="proximity"} 10`)
	assert.Contains(t, body, `geoticket_stage_succeeded{stage="proximity"} 8`)
	assert.Contains(t, body, `geoticket_stage_avg_time_ms{stage="proximity"} 100`)
}

func TestRecordStageNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordStage("proximity", stage.Stats{Processed: 1})
	})
}

func TestRecordStageSeparatesStagesByLabel(t *testing.T) {
	c := NewCollector()
	c.RecordStage("proximity", stage.Stats{Processed: 5})
	c.RecordStage("enrichment", stage.Stats{Processed: 9})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	body := buf.String()

	assert.Contains(t, body, `geoticket_stage_processed{stage="proximity"} 5`)
	assert.Contains(t, body, `geoticket_stage_processed{stage="enrichment"} 9`)
}
