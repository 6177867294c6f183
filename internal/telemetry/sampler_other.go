//go:build !windows

package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultCPUWindow is the shortest span a CPU reading covers.
const DefaultCPUWindow = 250 * time.Millisecond

func newPlatformSampler(cfg SamplerConfig, logger *zap.Logger) Sampler {
	s := newHostSampler(readOSInfo(), cfg.CPUWindow)
	if err := s.prime(context.Background()); err != nil {
		logger.Warn("cpu sampling unavailable; readings will be zero", zap.Error(err))
	}
	logger.Debug("host sampler selected",
		zap.String("os", s.os.Name),
		zap.Duration("cpu_window", s.window),
	)
	return s
}
