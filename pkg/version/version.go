// Package version reports which memora build is running. The CLI prints it
// and the reminders backend sees it as the User-Agent.
package version

import (
	"fmt"
	"runtime"
)

// Release builds set these with
//
//	-ldflags "-X github.com/chriscow/memora/pkg/version.Version=v1.2.0 -X ...GitCommit=$(git rev-parse --short HEAD) -X ...BuildTime=$(date -u +%FT%TZ)"
//
// Local builds keep the placeholders.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersionInfo is the line printed by `memora version`.
func GetVersionInfo() string {
	return fmt.Sprintf("memora version %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildTime, runtime.Version())
}

// UserAgent identifies this build in outgoing HTTP requests.
func UserAgent() string {
	return "memora/" + Version
}
