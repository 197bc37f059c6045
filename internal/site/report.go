package site

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/spectra/internal/metrics"
)

// Stage names used for timings and metrics.
const (
	StageDiscover = "discover"
	StageNav      = "nav"
	StageClean    = "clean"
	StagePages    = "pages"
	StageAssets   = "assets"
	StageIndex    = "index"
)

// Report summarizes one site generation.
type Report struct {
	BuildID        string
	Input          string
	Output         string
	Start          time.Time
	End            time.Time
	Pages          int  // pages written
	Assets         int  // assets copied
	NavNodes       int  // nodes in the navigation tree
	GeneratedIndex bool // root index.html was synthesized from the navigation
	Layout         string
	StageDurations map[string]time.Duration
	// Warnings are non-fatal (output path collisions).
	Warnings []error
	// Errors are per-file failures; the build continues past them.
	Errors []error
}

func newReport(buildID, input, output string) *Report {
	return &Report{
		BuildID:        buildID,
		Input:          input,
		Output:         output,
		Start:          time.Now(),
		StageDurations: map[string]time.Duration{},
	}
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Outcome derives the overall status.
func (r *Report) Outcome() metrics.BuildOutcomeLabel {
	switch {
	case len(r.Errors) > 0:
		return metrics.BuildOutcomeFailed
	case len(r.Warnings) > 0:
		return metrics.BuildOutcomeWarning
	default:
		return metrics.BuildOutcomeSuccess
	}
}

// Summary is a one-line description for logs.
func (r *Report) Summary() string {
	return fmt.Sprintf("outcome=%s pages=%d assets=%d nav_nodes=%d warnings=%d errors=%d duration=%s",
		r.Outcome(), r.Pages, r.Assets, r.NavNodes, len(r.Warnings), len(r.Errors), r.Duration().Round(time.Millisecond))
}

func (r *Report) finish() {
	r.End = time.Now()
}
