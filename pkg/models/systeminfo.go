package models

import "strings"

// MemoryInfo is the memory block of a SystemInfoResponse.
type MemoryInfo struct {
	TotalBytes   int64   `json:"totalBytes" yaml:"totalBytes" example:"17179869184"`
	UsedBytes    int64   `json:"usedBytes" yaml:"usedBytes" example:"6442450944"`
	FreeBytes    int64   `json:"freeBytes" yaml:"freeBytes" example:"10737418240"`
	UsagePercent float64 `json:"usagePercent" yaml:"usagePercent" example:"37.5"`
}

// SystemInfoResponse is the full snapshot document returned by the REST API.
type SystemInfoResponse struct {
	OSName          string     `json:"osName" yaml:"osName" example:"Linux 6.1.0-18-amd64"`
	OSVersion       string     `json:"osVersion" yaml:"osVersion" example:"Unix 6.1.0"`
	CPUUsagePercent float64    `json:"cpuUsagePercent" yaml:"cpuUsagePercent" example:"23.45"`
	MemoryInfo      MemoryInfo `json:"memoryInfo" yaml:"memoryInfo"`
	UptimeSeconds   int64      `json:"uptimeSeconds" yaml:"uptimeSeconds" example:"86400"`
	// Timestamp is seconds since the Unix epoch.
	Timestamp int64 `json:"timestamp" yaml:"timestamp" example:"1735689600"`
}

// CPUView is the cpu projection.
type CPUView struct {
	Usage float64 `json:"usage" yaml:"usage" example:"23.45"`
}

// MemoryView is the memory projection.
type MemoryView struct {
	Total        int64   `json:"total" yaml:"total"`
	Used         int64   `json:"used" yaml:"used"`
	Free         int64   `json:"free" yaml:"free"`
	UsagePercent float64 `json:"usagePercent" yaml:"usagePercent"`
}

// OSView is the os projection.
type OSView struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// UptimeView is the uptime projection.
type UptimeView struct {
	Seconds int64 `json:"seconds" yaml:"seconds"`
}

// Metric names a projection of the full snapshot.
type Metric string

const (
	MetricCPU    Metric = "cpu"
	MetricMemory Metric = "memory"
	MetricOS     Metric = "os"
	MetricUptime Metric = "uptime"
)

// Metrics lists every supported projection.
var Metrics = []Metric{MetricCPU, MetricMemory, MetricOS, MetricUptime}

// ParseMetric matches name case-insensitively against the known projections.
// Surrounding whitespace is not trimmed.
func ParseMetric(name string) (Metric, bool) {
	m := Metric(strings.ToLower(name))
	switch m {
	case MetricCPU, MetricMemory, MetricOS, MetricUptime:
		return m, true
	default:
		return "", false
	}
}

// Project returns the sub-view of r named by m. It returns nil for an
// unknown metric.
func (r SystemInfoResponse) Project(m Metric) any {
	switch m {
	case MetricCPU:
		return CPUView{Usage: r.CPUUsagePercent}
	case MetricMemory:
		return MemoryView{
			Total:        r.MemoryInfo.TotalBytes,
			Used:         r.MemoryInfo.UsedBytes,
			Free:         r.MemoryInfo.FreeBytes,
			UsagePercent: r.MemoryInfo.UsagePercent,
		}
	case MetricOS:
		return OSView{Name: r.OSName, Version: r.OSVersion}
	case MetricUptime:
		return UptimeView{Seconds: r.UptimeSeconds}
	default:
		return nil
	}
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status" yaml:"status" example:"healthy"`
	Version string            `json:"version" yaml:"version" example:"1.0.0"`
	Modules map[string]string `json:"modules,omitempty" yaml:"modules,omitempty"`
}
