//go:build windows

package telemetry

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func readOSInfo() OSInfo {
	v := windows.RtlGetVersion()
	return OSInfo{
		Name:    fmt.Sprintf("Microsoft Windows %d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber),
		Version: fmt.Sprintf("Microsoft Windows NT %d.%d.%d.0", v.MajorVersion, v.MinorVersion, v.BuildNumber),
	}
}
