package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestGetVersionInfo(t *testing.T) {
	is := is.New(t)
	info := GetVersionInfo()

	is.True(strings.HasPrefix(info, "memora version dev"))
	is.True(strings.Contains(info, "commit: unknown"))
	is.True(strings.Contains(info, runtime.Version()))
}

func TestGetVersionInfoWithCustomValues(t *testing.T) {
	is := is.New(t)
	originalVersion, originalCommit, originalBuildTime := Version, GitCommit, BuildTime
	defer func() {
		Version, GitCommit, BuildTime = originalVersion, originalCommit, originalBuildTime
	}()

	Version = "v1.0.0"
	GitCommit = "abc123"
	BuildTime = "2026-01-01T00:00:00Z"

	info := GetVersionInfo()
	is.True(strings.Contains(info, "v1.0.0"))
	is.True(strings.Contains(info, "abc123"))
	is.True(strings.Contains(info, "2026-01-01T00:00:00Z"))
}

func TestUserAgent(t *testing.T) {
	is := is.New(t)
	original := Version
	defer func() { Version = original }()

	Version = "v1.2.0"
	is.Equal(UserAgent(), "memora/v1.2.0")
}
