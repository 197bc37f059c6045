package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared across packages.
const (
	KeyPath       = "path"
	KeyFile       = "file"
	KeySource     = "source"
	KeyTarget     = "target"
	KeyLink       = "link"
	KeyURL        = "url"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyUserAgent  = "user_agent"
	KeyRequestID  = "request_id"
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyJobID      = "job_id"
	KeyError      = "error"
)

func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Source(s string) slog.Attr        { return slog.String(KeySource, s) }
func Target(t string) slog.Attr        { return slog.String(KeyTarget, t) }
func Link(l string) slog.Attr          { return slog.String(KeyLink, l) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d) / float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
