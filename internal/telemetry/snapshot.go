// Package telemetry produces point-in-time host telemetry snapshots.
package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/HerbHall/sysinfo/pkg/models"
)

// Snapshot is one complete telemetry reading. It is a value: every call to a
// Source builds a fresh one.
type Snapshot struct {
	OSName          string
	OSVersion       string
	CPUUsagePercent float64
	Memory          Memory
	UptimeSeconds   int64
	// Timestamp is seconds since the Unix epoch, taken when the snapshot is built.
	Timestamp int64
}

// Memory is the memory block of a Snapshot.
//
// On the primary path UsedBytes+FreeBytes == TotalBytes. When system memory
// cannot be read the block is filled from the Go runtime instead, UsagePercent
// is reported as 0 and Degraded is set.
type Memory struct {
	TotalBytes   int64
	UsedBytes    int64
	FreeBytes    int64
	UsagePercent float64
	Degraded     bool
}

// Response converts s into its wire document. Degraded is not carried over.
func (s Snapshot) Response() models.SystemInfoResponse {
	return models.SystemInfoResponse{
		OSName:          s.OSName,
		OSVersion:       s.OSVersion,
		CPUUsagePercent: s.CPUUsagePercent,
		MemoryInfo: models.MemoryInfo{
			TotalBytes:   s.Memory.TotalBytes,
			UsedBytes:    s.Memory.UsedBytes,
			FreeBytes:    s.Memory.FreeBytes,
			UsagePercent: s.Memory.UsagePercent,
		},
		UptimeSeconds: s.UptimeSeconds,
		Timestamp:     s.Timestamp,
	}
}

// Source produces snapshots on demand. Implementations must be safe for
// concurrent use.
//
// Transient sampling failures degrade individual fields instead of returning
// an error. An error is returned only when ctx is done or on an unexpected
// fault.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Clock supplies the time used for snapshot timestamps.
type Clock interface {
	Now() time.Time
}

// monotonicClock derives wall time from the monotonic reading taken at
// construction, so successive readings never go backwards when the system
// clock is stepped.
type monotonicClock struct {
	start time.Time
}

func newMonotonicClock() monotonicClock {
	return monotonicClock{start: time.Now()}
}

func (c monotonicClock) Now() time.Time {
	return c.start.Add(time.Since(c.start))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
