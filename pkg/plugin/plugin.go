// Package plugin defines the contract between the SysInfo server and its
// transport modules (REST, gRPC, MQTT, discovery, MCP).
package plugin

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/stream"
	"github.com/HerbHall/sysinfo/internal/telemetry"
)

// Route represents an HTTP route exposed by a module. Path is mounted
// verbatim on the server mux.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Info describes a module.
type Info struct {
	Name        string
	Version     string
	Description string
}

// Dependencies are the shared collaborators handed to every module at Init.
type Dependencies struct {
	Logger *zap.Logger
	// Handler serves unary snapshot requests over the shared source.
	Handler *telemetry.Handler
	// Observer receives stream session lifecycle events.
	Observer stream.Observer
	// StreamInterval is the cadence used when a subscriber asks for none.
	StreamInterval time.Duration
}

// Plugin is implemented by every module.
type Plugin interface {
	Info() Info

	// Init receives the module's own config subtree (modules.<name>) and the
	// root config for cross-module settings.
	Init(cfg, root *config.Config, deps Dependencies) error

	// Start begins background work. It must not block.
	Start(ctx context.Context) error

	// Stop releases resources started by Start.
	Stop(ctx context.Context) error
}
