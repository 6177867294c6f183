//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package telemetry

import "runtime"

func readOSInfo() OSInfo {
	return OSInfo{Name: runtime.GOOS, Version: "unknown"}
}
