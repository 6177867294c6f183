package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	_ "github.com/HerbHall/sysinfo/docs" // registers the OpenAPI document
	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/metrics"
	"github.com/HerbHall/sysinfo/internal/plugin"
	"github.com/HerbHall/sysinfo/internal/version"
	"github.com/HerbHall/sysinfo/pkg/models"
	sdk "github.com/HerbHall/sysinfo/pkg/plugin"
)

// Config holds HTTP server settings.
type Config struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxConnections   int
	CORSOrigins      []string
	RateLimitRPS     float64
	RateLimitBurst   int
	RateLimitClients int
	JWTSecret        string
}

// ConfigFrom reads the server.* and auth.* keys.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Host:             c.GetString("server.host"),
		Port:             c.GetInt("server.port"),
		ReadTimeout:      c.GetDuration("server.read_timeout"),
		WriteTimeout:     c.GetDuration("server.write_timeout"),
		IdleTimeout:      c.GetDuration("server.idle_timeout"),
		MaxConnections:   c.GetInt("server.max_connections"),
		CORSOrigins:      c.GetStringSlice("server.cors_origins"),
		RateLimitRPS:     c.GetFloat64("server.rate_limit.rps"),
		RateLimitBurst:   c.GetInt("server.rate_limit.burst"),
		RateLimitClients: c.GetInt("server.rate_limit.max_clients"),
		JWTSecret:        c.GetString("auth.jwt_secret"),
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server is the SysInfo HTTP server.
type Server struct {
	cfg        Config
	httpServer *http.Server
	registry   *plugin.Registry
	metrics    *metrics.Metrics
	logger     *zap.Logger
	mux        *http.ServeMux

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new Server instance with core and module routes mounted.
func New(cfg Config, reg *plugin.Registry, m *metrics.Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:      cfg,
		registry: reg,
		metrics:  m,
		logger:   logger,
		mux:      mux,
	}

	s.registerCoreRoutes()
	s.mountModuleRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}
	return s
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var limiter *ClientLimiter
	if s.cfg.RateLimitRPS > 0 {
		limiter = NewClientLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, s.cfg.RateLimitClients)
	}

	var obs RequestObserver
	if s.metrics != nil {
		obs = s.metrics
	}

	return Chain(s.mux,
		Recover(s.logger),
		RequestID(),
		BearerIdentity([]byte(s.cfg.JWTSecret), s.logger),
		AccessLog(s.logger, obs, s.routeOf),
		CORS(s.cfg.CORSOrigins),
		RateLimit(limiter),
		VersionHeader(),
	)
}

// routeOf resolves the mux pattern for a request without serving it.
func (s *Server) routeOf(r *http.Request) string {
	if _, pattern := s.mux.Handler(r); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/modules", s.handleModules)
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// mountModuleRoutes registers all module routes at their declared paths.
func (s *Server) mountModuleRoutes() {
	for name, routes := range s.registry.AllRoutes() {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s %s", route.Method, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("module", name),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Listen binds the configured address, capped at MaxConnections.
func (s *Server) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	if s.cfg.MaxConnections > 0 {
		l = netutil.LimitListener(l, s.cfg.MaxConnections)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return l, nil
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Start listens and serves. It blocks until Shutdown.
func (s *Server) Start() error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Addr returns the bound address once listening, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
//
//	@Summary		Server health
//	@Description	Reports overall status, version and per-module health.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	models.HealthResponse
//	@Router			/api/v1/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:  sdk.StatusHealthy,
		Version: version.Short(),
		Modules: make(map[string]string),
	}
	for name, h := range s.registry.Health(r.Context()) {
		resp.Modules[name] = h.Status
		if h.Status != sdk.StatusHealthy {
			resp.Status = sdk.StatusDegraded
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleModules lists the enabled modules.
func (s *Server) handleModules(w http.ResponseWriter, _ *http.Request) {
	type moduleResponse struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
	}
	mods := s.registry.All()
	out := make([]moduleResponse, 0, len(mods))
	for _, p := range mods {
		info := p.Info()
		out = append(out, moduleResponse{Name: info.Name, Version: info.Version, Description: info.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
