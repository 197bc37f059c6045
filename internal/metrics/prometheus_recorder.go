package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "spectra"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration      *prom.HistogramVec
	buildDuration      prom.Histogram
	stageResults       *prom.CounterVec
	buildOutcome       *prom.CounterVec
	navNodes           prom.Gauge
	filesWritten       *prom.CounterVec
	brokenLinks        prom.Counter
	conversionDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg. A
// nil reg gets a fresh registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		navNodes: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "nav_nodes",
			Help:      "Nodes in the navigation tree of the last build",
		}),
		filesWritten: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Files written to the output directory by kind",
		}, []string{"kind"}),
		brokenLinks: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "broken_links_total",
			Help:      "Broken internal links found by link verification",
		}),
		conversionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of document conversions",
			Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300},
		}, []string{"route", "result"}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.navNodes, pr.filesWritten, pr.brokenLinks, pr.conversionDuration)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetNavNodes(n int) {
	p.navNodes.Set(float64(n))
}

func (p *PrometheusRecorder) AddFilesWritten(kind string, n int) {
	p.filesWritten.WithLabelValues(kind).Add(float64(n))
}

func (p *PrometheusRecorder) AddBrokenLinks(n int) {
	p.brokenLinks.Add(float64(n))
}

func (p *PrometheusRecorder) ObserveConversion(route string, d time.Duration, success bool) {
	res := "failed"
	if success {
		res = "success"
	}
	p.conversionDuration.WithLabelValues(route, res).Observe(d.Seconds())
}
