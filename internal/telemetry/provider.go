package telemetry

import (
	"context"
	"runtime"

	"go.uber.org/zap"
)

// Provider is the Source backed by a platform Sampler. It holds no mutable
// state of its own and may be shared by any number of handlers and sessions.
type Provider struct {
	sampler Sampler
	clock   Clock
	logger  *zap.Logger
}

// Compile-time guard.
var _ Source = (*Provider)(nil)

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(c Clock) ProviderOption {
	return func(p *Provider) { p.clock = c }
}

// NewProvider creates a Provider reading from sampler.
func NewProvider(sampler Sampler, logger *zap.Logger, opts ...ProviderOption) *Provider {
	p := &Provider{
		sampler: sampler,
		clock:   newMonotonicClock(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot builds one Snapshot. It fails only when ctx is done.
func (p *Provider) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	cpuPct, err := p.sampler.CPUPercent(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Snapshot{}, ctxErr
		}
		p.logger.Debug("cpu reading failed", zap.Error(err))
		cpuPct = 0
	}

	osInfo := p.sampler.OS()
	return Snapshot{
		OSName:          osInfo.Name,
		OSVersion:       osInfo.Version,
		CPUUsagePercent: clampPercent(round2(cpuPct)),
		Memory:          p.memory(ctx),
		UptimeSeconds:   p.uptime(ctx),
		Timestamp:       p.clock.Now().Unix(),
	}, nil
}

func (p *Provider) memory(ctx context.Context) Memory {
	total, available, err := p.sampler.VirtualMemory(ctx)
	if err != nil || total == 0 {
		p.logger.Debug("system memory unavailable, using process figures", zap.Error(err))
		return processMemory()
	}
	if available > total {
		available = total
	}
	used := total - available
	return Memory{
		TotalBytes:   int64(total),
		UsedBytes:    int64(used),
		FreeBytes:    int64(available),
		UsagePercent: round2(float64(used) / float64(total) * 100),
	}
}

// processMemory reports the Go runtime's own footprint. UsagePercent is
// always 0 here; callers can tell this reading apart by Degraded.
func processMemory() Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	total := int64(ms.Sys)
	used := int64(ms.HeapInuse + ms.StackInuse)
	if used > total {
		used = total
	}
	return Memory{
		TotalBytes:   total,
		UsedBytes:    used,
		FreeBytes:    total - used,
		UsagePercent: 0,
		Degraded:     true,
	}
}

func (p *Provider) uptime(ctx context.Context) int64 {
	secs, err := p.sampler.Uptime(ctx)
	if err != nil {
		p.logger.Debug("uptime reading failed", zap.Error(err))
		return 0
	}
	return int64(secs)
}
