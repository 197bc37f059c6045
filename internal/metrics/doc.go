// Package metrics records build and conversion metrics.
//
// Components receive a Recorder and default to NoopRecorder, so collection is
// optional. The preview server swaps in a PrometheusRecorder and exposes it on
// /metrics through HTTPHandler.
package metrics
