// Package discovery advertises the SysInfo endpoints on the local network
// via mDNS/DNS-SD.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/version"
	"github.com/HerbHall/sysinfo/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// SnapshotPath is advertised in the path TXT record.
const SnapshotPath = "/api/SystemInfo"

// Responder answers mDNS queries until shut down.
type Responder interface {
	Shutdown() error
}

// ResponderFunc starts answering queries for zone.
type ResponderFunc func(zone mdns.Zone) (Responder, error)

func newServer(zone mdns.Zone) (Responder, error) {
	srv, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// Module announces one service instance for the REST port.
type Module struct {
	logger *zap.Logger

	instance string
	service  string
	domain   string
	host     string
	ips      []net.IP
	restPort int
	grpcPort int

	respond ResponderFunc

	mu        sync.Mutex
	responder Responder
	record    *mdns.MDNSService
}

// New creates a new discovery module instance.
func New() *Module {
	return &Module{respond: newServer}
}

func (m *Module) Info() plugin.Info {
	return plugin.Info{
		Name:        "discovery",
		Version:     "1.0.0",
		Description: "mDNS advertisement of the SysInfo endpoints",
	}
}

func (m *Module) Init(cfg, root *config.Config, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.instance = cfg.GetString("instance")
	m.service = cfg.GetString("service")
	m.domain = cfg.GetString("domain")
	m.host = fqdn(cfg.GetString("host"))

	for _, raw := range cfg.GetStringSlice("ips") {
		ip := net.ParseIP(strings.TrimSpace(raw))
		if ip == nil {
			return fmt.Errorf("invalid ip %q", raw)
		}
		m.ips = append(m.ips, ip)
	}

	m.restPort = root.GetInt("server.port")
	if root.GetBool("modules.grpc.enabled") {
		m.grpcPort = root.GetInt("modules.grpc.port")
	}

	m.logger.Info("discovery module initialized",
		zap.String("instance", m.instance),
		zap.String("service", m.service),
		zap.Int("port", m.restPort),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.instance == "" {
		return errors.New("instance is required")
	}
	if m.service == "" {
		return errors.New("service is required")
	}
	if m.restPort <= 0 {
		return fmt.Errorf("server.port %d cannot be advertised", m.restPort)
	}
	return nil
}

// TXT returns the TXT records published with the service.
func (m *Module) TXT() []string {
	txt := []string{
		"path=" + SnapshotPath,
		"version=" + version.Short(),
	}
	if m.grpcPort > 0 {
		txt = append(txt, "grpc="+strconv.Itoa(m.grpcPort))
	}
	return txt
}

func (m *Module) Start(_ context.Context) error {
	record, err := mdns.NewMDNSService(m.instance, m.service, m.domain, m.host, m.restPort, m.ips, m.TXT())
	if err != nil {
		return fmt.Errorf("build mdns record: %w", err)
	}
	responder, err := m.respond(record)
	if err != nil {
		return fmt.Errorf("start mdns responder: %w", err)
	}

	m.mu.Lock()
	m.record = record
	m.responder = responder
	m.mu.Unlock()

	m.logger.Info("advertising via mDNS",
		zap.String("instance", record.Instance),
		zap.String("service", record.Service),
		zap.String("host", record.HostName),
		zap.Int("port", record.Port),
		zap.Strings("txt", record.TXT),
	)
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	responder := m.responder
	m.responder = nil
	m.mu.Unlock()

	if responder == nil {
		return nil
	}
	if err := responder.Shutdown(); err != nil {
		return fmt.Errorf("stop mdns responder: %w", err)
	}
	m.logger.Info("discovery module stopped")
	return nil
}

func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.responder == nil {
		return plugin.HealthStatus{Status: plugin.StatusUnhealthy, Message: "not advertising"}
	}
	return plugin.HealthStatus{
		Status:  plugin.StatusHealthy,
		Message: fmt.Sprintf("advertising %s.%s", m.record.Instance, m.record.Service),
	}
}

// fqdn adds the trailing dot mDNS requires. Empty stays empty so the
// library falls back to the OS hostname.
func fqdn(host string) string {
	if host == "" || strings.HasSuffix(host, ".") {
		return host
	}
	return host + "."
}
