// Package version provides build-time version information for SysInfo binaries.
// Variables are injected at build time via ldflags.
package version

import (
	"fmt"
	"runtime"

	"golang.org/x/mod/semver"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Header is the response header carrying the server version.
const Header = "X-SysInfo-Version"

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return fmt.Sprintf("SysInfo %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, runtime.Version())
}

// Short returns just the version string (e.g., "0.1.0" or "dev").
func Short() string {
	return Version
}

// Map returns version info as a map for JSON serialization.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// Compatible reports whether two versions share a semver major. Versions that
// are not valid semver (such as "dev") are treated as compatible with anything.
func Compatible(a, b string) bool {
	ca, cb := canonical(a), canonical(b)
	if ca == "" || cb == "" {
		return true
	}
	return semver.Major(ca) == semver.Major(cb)
}

func canonical(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	return semver.Canonical(v)
}
