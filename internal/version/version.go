// Package version reports build information for the powerplot binaries and
// the User-Agent they send to series sources.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/aaronlmathis/powerplot/internal/version.Version=..."
var (
	Version   = "v0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build description served on /version and printed by
// `plot version`.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get collects the linked build values and the running toolchain.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("powerplot %s (commit %s, built %s, %s %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}

// UserAgent returns the User-Agent sent when fetching series sources
func UserAgent() string {
	return "powerplot/" + Version
}
