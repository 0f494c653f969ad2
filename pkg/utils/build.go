// Build information for the fig binary. Values are injected with -ldflags at release time, e.g.
// -X github.com/nobletooth/fig/pkg/utils.Version=v1.2.0
// CAUTION: TestMode is read at init, so keep this file's init free of flag lookups.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

// devVersion is reported by binaries built without release ldflags. It must remain valid semver.
const devVersion = "v0.0.0-dev"

var (
	TestMode   string // Set to "true" by the test build to turn invariant violations into panics.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	if Version == "" {
		Version = devVersion
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false.", "error", err)
		}
	}
}

// Uptime returns how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartTime)
}
