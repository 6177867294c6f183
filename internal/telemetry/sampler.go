package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// OSInfo identifies the host operating system.
type OSInfo struct {
	Name    string
	Version string
}

// Sampler reads raw figures from the host platform. One implementation is
// selected per OS at build time.
type Sampler interface {
	// OS returns the host identity, read once at construction.
	OS() OSInfo
	// CPUPercent returns system-wide CPU usage in percent.
	CPUPercent(ctx context.Context) (float64, error)
	// VirtualMemory returns total and available physical memory in bytes.
	VirtualMemory(ctx context.Context) (total, available uint64, err error)
	// Uptime returns seconds since boot.
	Uptime(ctx context.Context) (uint64, error)
}

// SamplerConfig tunes the platform sampler.
type SamplerConfig struct {
	// CPUWindow is the shortest span a CPU reading covers. Readings taken
	// inside one window share the figure computed at its start. Zero or
	// negative selects the platform default.
	CPUWindow time.Duration
}

// NewSampler returns the sampler for the current platform.
func NewSampler(cfg SamplerConfig, logger *zap.Logger) Sampler {
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = DefaultCPUWindow
	}
	return newPlatformSampler(cfg, logger)
}

// cpuCounters is one aggregate reading of the host CPU time counters.
type cpuCounters struct {
	busy, total float64
	at          time.Time
}

// hostSampler reads figures through gopsutil. CPU usage is the busy share
// of the counter delta against the sampler's own baseline, so callers never
// disturb a baseline held by another part of the process.
type hostSampler struct {
	os     OSInfo
	window time.Duration
	now    func() time.Time
	times  func(ctx context.Context) (cpu.TimesStat, error)

	mu       sync.Mutex
	base     cpuCounters
	percent  float64
	computed time.Time
}

// Compile-time guard.
var _ Sampler = (*hostSampler)(nil)

func newHostSampler(osInfo OSInfo, window time.Duration) *hostSampler {
	return &hostSampler{
		os:     osInfo,
		window: window,
		now:    time.Now,
		times:  aggregateTimes,
	}
}

func aggregateTimes(ctx context.Context) (cpu.TimesStat, error) {
	ts, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if len(ts) == 0 {
		return cpu.TimesStat{}, errors.New("no cpu figures reported")
	}
	return ts[0], nil
}

func (s *hostSampler) OS() OSInfo { return s.os }

// prime records the baseline the first reading is measured against.
func (s *hostSampler) prime(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.base = c
	return nil
}

func (s *hostSampler) read(ctx context.Context) (cpuCounters, error) {
	t, err := s.times(ctx)
	if err != nil {
		return cpuCounters{}, err
	}
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	return cpuCounters{busy: total - t.Idle - t.Iowait, total: total, at: s.now()}, nil
}

func (s *hostSampler) CPUPercent(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.computed.IsZero() && s.now().Sub(s.computed) < s.window {
		return s.percent, nil
	}

	if s.base.at.IsZero() {
		c, err := s.read(ctx)
		if err != nil {
			return 0, err
		}
		s.base = c
	}
	// Only the very first reading can land inside the window.
	if wait := s.window - s.now().Sub(s.base.at); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C:
		}
	}

	cur, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	pct := 0.0
	if dt := cur.total - s.base.total; dt > 0 {
		pct = clampPercent((cur.busy - s.base.busy) / dt * 100)
	}
	s.base = cur
	s.percent = pct
	s.computed = cur.at
	return pct, nil
}

func (s *hostSampler) VirtualMemory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

func (s *hostSampler) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}
