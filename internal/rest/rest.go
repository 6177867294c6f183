// Package rest serves host telemetry over HTTP/JSON and WebSocket.
package rest

import (
	"context"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/stream"
	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// DefaultWriteTimeout bounds a single WebSocket frame write.
const DefaultWriteTimeout = 10 * time.Second

// Module implements the REST transport.
type Module struct {
	logger          *zap.Logger
	handler         *telemetry.Handler
	observer        stream.Observer
	defaultInterval time.Duration
	writeTimeout    time.Duration
	wsOrigins       []string
	wsAnyOrigin     bool

	// ctx is cancelled by Stop so open WebSocket streams end with the module.
	ctx    context.Context
	cancel context.CancelFunc

	activeStreams atomic.Int64
}

// New creates a new REST module instance.
func New() *Module {
	ctx, cancel := context.WithCancel(context.Background())
	return &Module{ctx: ctx, cancel: cancel}
}

func (m *Module) Info() plugin.Info {
	return plugin.Info{
		Name:        "rest",
		Version:     "1.0.0",
		Description: "SystemInfo REST API and WebSocket stream",
	}
}

func (m *Module) Init(cfg, root *config.Config, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.handler = deps.Handler
	m.observer = deps.Observer
	m.defaultInterval = deps.StreamInterval

	m.writeTimeout = cfg.GetDuration("write_timeout")
	if m.writeTimeout <= 0 {
		m.writeTimeout = DefaultWriteTimeout
	}

	origins := root.GetStringSlice("server.cors_origins")
	m.wsAnyOrigin = len(origins) == 0 || slices.Contains(origins, "*")
	m.wsOrigins = origins

	m.logger.Info("rest module initialized",
		zap.Duration("stream_default_interval", m.defaultInterval),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("rest module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.cancel()
	m.logger.Info("rest module stopped", zap.Int64("open_streams", m.activeStreams.Load()))
	return nil
}

// Health reports the number of open WebSocket streams.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status:  plugin.StatusHealthy,
		Message: strconv.FormatInt(m.activeStreams.Load(), 10) + " active streams",
	}
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/api/SystemInfo", Handler: m.handleGetSystemInfo},
		{Method: "GET", Path: "/api/SystemInfo/{metric}", Handler: m.handleGetMetric},
		{Method: "GET", Path: "/ws/SystemInfo", Handler: m.handleStream},
	}
}
