package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/spectra/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, set the same way as Version.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns the version line printed by --version.
func String() string {
	return fmt.Sprintf("spectra %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
