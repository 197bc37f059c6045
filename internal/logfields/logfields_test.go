package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"File", KeyFile, "file.md", File("file.md")},
		{"Source", KeySource, "paper.pdf", Source("paper.pdf")},
		{"Target", KeyTarget, "paper.md", Target("paper.md")},
		{"Link", KeyLink, "guide/", Link("guide/")},
		{"URL", KeyURL, "http://example", URL("http://example")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
		{"RequestID", KeyRequestID, "rid", RequestID("rid")},
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Stage", KeyStage, "render", Stage("render")},
		{"JobID", KeyJobID, "2024_abc", JobID("2024_abc")},
	}

	for _, tc := range cases {
		// Key drift would break log ingestion schemas.
		assert.Equal(t, tc.attrKey, tc.attr.Key, tc.name)
		assert.Equal(t, tc.attrVal, tc.attr.Value.String(), tc.name)
	}
}

func TestNumericHelpers(t *testing.T) {
	assert.Equal(t, int64(404), Status(404).Value.Int64())
	assert.Equal(t, int64(3), Count(3).Value.Int64())
	assert.InDelta(t, 1500.0, Duration(1500*time.Millisecond).Value.Float64(), 0.001)
}

func TestError(t *testing.T) {
	assert.Equal(t, "", Error(nil).Value.String())
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
}
