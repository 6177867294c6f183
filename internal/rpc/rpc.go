// Package rpc serves host telemetry over gRPC (sysinfo.v1.SystemInfoService).
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	sysinfopb "github.com/HerbHall/sysinfo/api/proto/v1"
	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// Message size limits.
const (
	DefaultMaxRecvBytes = 2 << 20
	DefaultMaxSendBytes = 5 << 20
)

// Module implements the gRPC transport.
type Module struct {
	logger  *zap.Logger
	host    string
	port    int
	maxRecv int
	maxSend int

	service *Service
	server  *grpc.Server
	health  *health.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error

	stopOnce sync.Once
	stopErr  error
}

// New creates a new gRPC module instance.
func New() *Module {
	ctx, cancel := context.WithCancel(context.Background())
	return &Module{ctx: ctx, cancel: cancel}
}

func (m *Module) Info() plugin.Info {
	return plugin.Info{
		Name:        "grpc",
		Version:     "1.0.0",
		Description: "SystemInfo gRPC service with server streaming",
	}
}

// Init builds the gRPC server. Deps.Observer also receives per-call metrics
// when it implements CallObserver.
func (m *Module) Init(cfg, _ *config.Config, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.host = cfg.GetString("host")
	m.port = cfg.GetInt("port")
	m.maxRecv = cfg.GetInt("max_recv_bytes")
	if m.maxRecv <= 0 {
		m.maxRecv = DefaultMaxRecvBytes
	}
	m.maxSend = cfg.GetInt("max_send_bytes")
	if m.maxSend <= 0 {
		m.maxSend = DefaultMaxSendBytes
	}

	var calls CallObserver = nopCallObserver{}
	if o, ok := deps.Observer.(CallObserver); ok {
		calls = o
	}

	m.service = NewService(m.ctx, deps.Handler, m.logger, deps.Observer, deps.StreamInterval)
	m.server = grpc.NewServer(
		grpc.ForceServerCodec(sysinfopb.Codec{}),
		grpc.MaxRecvMsgSize(m.maxRecv),
		grpc.MaxSendMsgSize(m.maxSend),
		grpc.ChainUnaryInterceptor(observeUnary(m.logger, calls), recoverUnary(m.logger)),
		grpc.ChainStreamInterceptor(observeStream(m.logger, calls), recoverStream(m.logger)),
	)
	sysinfopb.RegisterSystemInfoServiceServer(m.server, m.service)

	m.health = health.NewServer()
	m.health.SetServingStatus(sysinfopb.SystemInfoService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(m.server, m.health)

	m.logger.Info("grpc module initialized",
		zap.String("addr", m.addr()),
		zap.Int("max_recv_bytes", m.maxRecv),
		zap.Int("max_send_bytes", m.maxSend),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.port < 0 || m.port > 65535 {
		return fmt.Errorf("port %d out of range", m.port)
	}
	return nil
}

func (m *Module) addr() string {
	return net.JoinHostPort(m.host, strconv.Itoa(m.port))
}

// Start listens on the configured address and serves in the background.
func (m *Module) Start(_ context.Context) error {
	lis, err := net.Listen("tcp", m.addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.addr(), err)
	}
	m.serve(lis)
	return nil
}

// serve runs the gRPC server on lis until Stop.
func (m *Module) serve(lis net.Listener) {
	m.mu.Lock()
	m.listener = lis
	m.serveErr = make(chan error, 1)
	m.mu.Unlock()

	m.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	m.health.SetServingStatus(sysinfopb.SystemInfoService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	m.logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	go func() {
		err := m.server.Serve(lis)
		if errors.Is(err, grpc.ErrServerStopped) {
			err = nil
		}
		m.serveErr <- err
	}()
}

// Addr returns the bound listener address, or "" before Start.
func (m *Module) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Stop ends open streams and drains the server. If ctx expires first the
// server is stopped hard. Later calls return the first result.
func (m *Module) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { m.stopErr = m.stop(ctx) })
	return m.stopErr
}

func (m *Module) stop(ctx context.Context) error {
	if m.health != nil {
		m.health.Shutdown()
	}
	m.cancel()
	if m.server == nil {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		m.server.GracefulStop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		m.server.Stop()
		<-drained
	}

	m.mu.Lock()
	errc := m.serveErr
	m.mu.Unlock()
	var err error
	if errc != nil {
		err = <-errc
	}
	m.logger.Info("grpc module stopped")
	return err
}

// Health reports the serving state and the number of open streams.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.Addr() == "" {
		return plugin.HealthStatus{Status: plugin.StatusUnhealthy, Message: "not listening"}
	}
	if m.ctx.Err() != nil {
		return plugin.HealthStatus{Status: plugin.StatusUnhealthy, Message: "stopped"}
	}
	return plugin.HealthStatus{
		Status:  plugin.StatusHealthy,
		Message: strconv.FormatInt(m.service.ActiveStreams(), 10) + " active streams",
	}
}
