package testutil

import (
	"time"

	"github.com/HerbHall/sysinfo/internal/telemetry"
)

// NewSnapshot returns a Snapshot with sensible defaults, suitable for test fixtures.
// Memory figures satisfy used+free == total.
func NewSnapshot(opts ...func(*telemetry.Snapshot)) telemetry.Snapshot {
	s := telemetry.Snapshot{
		OSName:          "Linux 6.1.0-18-amd64 #1 SMP PREEMPT_DYNAMIC Debian 6.1.76-1",
		OSVersion:       "Unix 6.1.0.18",
		CPUUsagePercent: 23.45,
		Memory: telemetry.Memory{
			TotalBytes:   16 << 30,
			UsedBytes:    6 << 30,
			FreeBytes:    10 << 30,
			UsagePercent: 37.5,
		},
		UptimeSeconds: 86400,
		Timestamp:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithCPU sets the CPU usage percentage.
func WithCPU(pct float64) func(*telemetry.Snapshot) {
	return func(s *telemetry.Snapshot) { s.CPUUsagePercent = pct }
}

// WithOS sets the OS name and version.
func WithOS(name, version string) func(*telemetry.Snapshot) {
	return func(s *telemetry.Snapshot) {
		s.OSName = name
		s.OSVersion = version
	}
}

// WithMemory sets the memory block.
func WithMemory(m telemetry.Memory) func(*telemetry.Snapshot) {
	return func(s *telemetry.Snapshot) { s.Memory = m }
}

// WithUptime sets the uptime in seconds.
func WithUptime(secs int64) func(*telemetry.Snapshot) {
	return func(s *telemetry.Snapshot) { s.UptimeSeconds = secs }
}

// WithTimestamp sets the snapshot timestamp.
func WithTimestamp(t time.Time) func(*telemetry.Snapshot) {
	return func(s *telemetry.Snapshot) { s.Timestamp = t.Unix() }
}
