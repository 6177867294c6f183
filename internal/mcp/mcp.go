// Package mcp exposes host telemetry to agents as a Model Context Protocol
// tool over streamable HTTP.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/internal/version"
	"github.com/HerbHall/sysinfo/pkg/models"
	"github.com/HerbHall/sysinfo/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

const (
	// Path is where the streamable HTTP endpoint is mounted.
	Path = "/mcp"
	// ToolName is the single tool the server offers.
	ToolName = "get_system_info"
)

// SystemInfoInput is the get_system_info argument object.
type SystemInfoInput struct {
	Metric string `json:"metric,omitempty" jsonschema:"optional projection: cpu, memory, os or uptime"`
}

// Module implements the MCP endpoint.
type Module struct {
	logger  *zap.Logger
	handler *telemetry.Handler
	server  *sdkmcp.Server
	http    http.Handler
}

// New creates a new MCP module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.Info {
	return plugin.Info{
		Name:        "mcp",
		Version:     "1.0.0",
		Description: "Model Context Protocol tool for SystemInfo snapshots",
	}
}

func (m *Module) Init(_, _ *config.Config, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.handler = deps.Handler
	m.server = NewServer(m.handler, m.logger)
	m.http = sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return m.server
	}, nil)
	m.logger.Info("mcp module initialized", zap.String("path", Path))
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }

func (m *Module) Stop(_ context.Context) error { return nil }

func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.server == nil {
		return plugin.HealthStatus{Status: plugin.StatusUnhealthy, Message: "not initialized"}
	}
	return plugin.HealthStatus{Status: plugin.StatusHealthy}
}

// Routes mounts the streamable HTTP transport for every method it speaks.
func (m *Module) Routes() []plugin.Route {
	serve := func(w http.ResponseWriter, r *http.Request) { m.http.ServeHTTP(w, r) }
	return []plugin.Route{
		{Method: http.MethodGet, Path: Path, Handler: serve},
		{Method: http.MethodPost, Path: Path, Handler: serve},
		{Method: http.MethodDelete, Path: Path, Handler: serve},
	}
}

// NewServer builds an MCP server offering the get_system_info tool.
func NewServer(handler *telemetry.Handler, logger *zap.Logger) *sdkmcp.Server {
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "sysinfo",
		Title:   "SysInfo",
		Version: version.Short(),
	}, nil)

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        ToolName,
		Description: "Returns the current host telemetry snapshot (OS, CPU, memory, uptime), or one projection of it.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in SystemInfoInput) (*sdkmcp.CallToolResult, any, error) {
		var metric models.Metric
		if in.Metric != "" {
			var ok bool
			if metric, ok = models.ParseMetric(in.Metric); !ok {
				return nil, nil, fmt.Errorf("metric %q not found", in.Metric)
			}
		}

		snap, err := handler.Handle(ctx)
		if err != nil {
			logger.Error("mcp snapshot failed", zap.Error(err))
			return nil, nil, fmt.Errorf("retrieving system information: %w", err)
		}

		resp := snap.Response()
		if metric == "" {
			return nil, resp, nil
		}
		return nil, resp.Project(metric), nil
	})
	return srv
}
