//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package telemetry

import (
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

func readOSInfo() OSInfo {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return OSInfo{Name: runtime.GOOS, Version: "unknown"}
	}
	sysname := unix.ByteSliceToString(u.Sysname[:])
	release := unix.ByteSliceToString(u.Release[:])
	version := unix.ByteSliceToString(u.Version[:])

	return OSInfo{
		Name:    strings.TrimSpace(sysname + " " + release + " " + version),
		Version: "Unix " + release,
	}
}
