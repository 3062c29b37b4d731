package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the host version plugins declare their minCliVersion against.
// Release builds override it via ldflags:
// go build -ldflags "-X github.com/ObvexBlackvault/custom-gemini-cli/internal/version.Version=1.2.0".
var Version = "1.1.0"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Host returns Version normalized for plugin compatibility checks. Values
// that do not parse (e.g. "dev") fall back to 0.0.0 so only plugins without
// a minimum version load.
func Host() string {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return "0.0.0"
	}
	return v.String()
}

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
