//go:build windows

package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultCPUWindow is longer than elsewhere; the processor time counters
// advance in coarse clock ticks on Windows.
const DefaultCPUWindow = 500 * time.Millisecond

func newPlatformSampler(cfg SamplerConfig, logger *zap.Logger) Sampler {
	if cfg.CPUWindow < DefaultCPUWindow/5 {
		logger.Warn("cpu sample window is below counter resolution on windows; using default",
			zap.Duration("requested", cfg.CPUWindow),
			zap.Duration("window", DefaultCPUWindow))
		cfg.CPUWindow = DefaultCPUWindow
	}
	s := newHostSampler(readOSInfo(), cfg.CPUWindow)
	if err := s.prime(context.Background()); err != nil {
		logger.Warn("cpu sampling unavailable; readings will be zero", zap.Error(err))
	}
	logger.Debug("windows sampler selected",
		zap.String("os", s.os.Name),
		zap.Duration("cpu_window", s.window),
	)
	return s
}
