package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
)

// BuildOutcomeLabel is the final status of a site build.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess BuildOutcomeLabel = "success"
	BuildOutcomeWarning BuildOutcomeLabel = "warning"
	BuildOutcomeFailed  BuildOutcomeLabel = "failed"
)

// Recorder defines observability hooks for builds and conversions.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	SetNavNodes(n int)
	AddFilesWritten(kind string, n int) // kind: page|asset
	AddBrokenLinks(n int)
	ObserveConversion(route string, d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)      {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)              {}
func (NoopRecorder) IncStageResult(string, ResultLabel)              {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)               {}
func (NoopRecorder) SetNavNodes(int)                                 {}
func (NoopRecorder) AddFilesWritten(string, int)                     {}
func (NoopRecorder) AddBrokenLinks(int)                              {}
func (NoopRecorder) ObserveConversion(string, time.Duration, bool)   {}
