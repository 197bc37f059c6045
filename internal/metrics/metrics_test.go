package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, g prom.Gatherer) string {
	t.Helper()
	rec := httptest.NewRecorder()
	HTTPHandler(g).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveBuildDuration(time.Second)
	r.AddFilesWritten("page", 3)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	var r Recorder = NewPrometheusRecorder(reg)

	r.AddFilesWritten("page", 3)
	r.AddFilesWritten("asset", 1)
	r.AddFilesWritten("page", 2)
	r.SetNavNodes(7)
	r.AddBrokenLinks(2)
	r.IncBuildOutcome(BuildOutcomeSuccess)
	r.IncStageResult("render", ResultWarning)
	r.ObserveStageDuration("render", 20*time.Millisecond)
	r.ObserveBuildDuration(time.Second)
	r.ObserveConversion("pdf-mmd", 3*time.Second, true)

	body := scrape(t, reg)
	for _, line := range []string{
		`spectra_files_written_total{kind="page"} 5`,
		`spectra_files_written_total{kind="asset"} 1`,
		`spectra_nav_nodes 7`,
		`spectra_broken_links_total 2`,
		`spectra_build_outcomes_total{outcome="success"} 1`,
		`spectra_stage_results_total{result="warning",stage="render"} 1`,
		`spectra_conversion_duration_seconds_count{result="success",route="pdf-mmd"} 1`,
		`spectra_build_duration_seconds_count 1`,
	} {
		assert.Contains(t, body, line)
	}
}

func TestNewPrometheusRecorderNilRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusRecorder(nil).SetNavNodes(1)
	})
}
