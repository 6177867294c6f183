package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/telemetry"
)

// SnapshotCollector exports the host telemetry as gauges, taking one
// snapshot per scrape.
type SnapshotCollector struct {
	source  telemetry.Source
	timeout time.Duration
	logger  *zap.Logger

	cpu      *prometheus.Desc
	memTotal *prometheus.Desc
	memUsed  *prometheus.Desc
	memFree  *prometheus.Desc
	memPct   *prometheus.Desc
	uptime   *prometheus.Desc
	info     *prometheus.Desc
}

// Compile-time guard.
var _ prometheus.Collector = (*SnapshotCollector)(nil)

// NewSnapshotCollector creates a collector over source. Each scrape waits at
// most timeout for a snapshot.
func NewSnapshotCollector(source telemetry.Source, timeout time.Duration, logger *zap.Logger) *SnapshotCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", name), help, labels, nil)
	}
	return &SnapshotCollector{
		source:   source,
		timeout:  timeout,
		logger:   logger,
		cpu:      desc("cpu_usage_percent", "System-wide CPU usage."),
		memTotal: desc("memory_total_bytes", "Physical memory size."),
		memUsed:  desc("memory_used_bytes", "Physical memory in use."),
		memFree:  desc("memory_free_bytes", "Physical memory available."),
		memPct:   desc("memory_usage_percent", "Physical memory usage."),
		uptime:   desc("uptime_seconds", "Seconds since boot."),
		info:     desc("os_info", "Host operating system identity.", "name", "version"),
	}
}

// Describe implements prometheus.Collector.
func (c *SnapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.cpu, c.memTotal, c.memUsed, c.memFree, c.memPct, c.uptime, c.info} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *SnapshotCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		c.logger.Warn("snapshot for scrape failed", zap.Error(err))
		return
	}

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	gauge(c.cpu, snap.CPUUsagePercent)
	gauge(c.memTotal, float64(snap.Memory.TotalBytes))
	gauge(c.memUsed, float64(snap.Memory.UsedBytes))
	gauge(c.memFree, float64(snap.Memory.FreeBytes))
	gauge(c.memPct, snap.Memory.UsagePercent)
	gauge(c.uptime, float64(snap.UptimeSeconds))
	gauge(c.info, 1, snap.OSName, snap.OSVersion)
}
