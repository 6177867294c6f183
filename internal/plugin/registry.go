// Package plugin manages the lifecycle of SysInfo modules.
package plugin

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/config"
	sdk "github.com/HerbHall/sysinfo/pkg/plugin"
)

// Registry manages the lifecycle of all registered modules.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]sdk.Plugin
	order   []string
	enabled map[string]bool
	started []string
	logger  *zap.Logger
}

// NewRegistry creates a new module registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]sdk.Plugin),
		enabled: make(map[string]bool),
		logger:  logger,
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(p sdk.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("module has empty name")
	}
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("module %q already registered", info.Name)
	}

	r.plugins[info.Name] = p
	r.order = append(r.order, info.Name)
	r.logger.Info("module registered", zap.String("name", info.Name), zap.String("version", info.Version))
	return nil
}

// InitAll initializes every module enabled under modules.<name>.enabled.
// Disabled modules are skipped and stay out of Start, Routes and Health.
func (r *Registry) InitAll(root *config.Config, deps sdk.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		cfg := root.Sub("modules." + name)
		if !cfg.GetBool("enabled") {
			r.logger.Info("module disabled, skipping", zap.String("name", name))
			continue
		}

		p := r.plugins[name]
		moduleDeps := deps
		moduleDeps.Logger = deps.Logger.Named(name)

		r.logger.Info("initializing module", zap.String("name", name))
		if err := p.Init(cfg, root, moduleDeps); err != nil {
			return fmt.Errorf("failed to initialize module %q: %w", name, err)
		}
		if v, ok := p.(sdk.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				return fmt.Errorf("invalid config for module %q: %w", name, err)
			}
		}
		r.enabled[name] = true
	}
	return nil
}

// StartAll starts all enabled modules in registration order. If one fails,
// the modules already started are stopped again.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if !r.enabled[name] {
			continue
		}
		r.logger.Info("starting module", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			r.stopLocked(ctx)
			return fmt.Errorf("failed to start module %q: %w", name, err)
		}
		r.started = append(r.started, name)
	}
	return nil
}

// StopAll stops started modules in reverse order.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(ctx)
}

func (r *Registry) stopLocked(ctx context.Context) {
	for i := len(r.started) - 1; i >= 0; i-- {
		name := r.started[i]
		r.logger.Info("stopping module", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop module", zap.String("name", name), zap.Error(err))
		}
	}
	r.started = nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (sdk.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Enabled reports whether the named module passed InitAll.
func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// All returns all enabled modules in registration order.
func (r *Registry) All() []sdk.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]sdk.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if r.enabled[name] {
			result = append(result, r.plugins[name])
		}
	}
	return result
}

// AllRoutes returns the routes of every enabled HTTP module, keyed by module.
func (r *Registry) AllRoutes() map[string][]sdk.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]sdk.Route)
	for _, name := range r.order {
		if !r.enabled[name] {
			continue
		}
		hp, ok := r.plugins[name].(sdk.HTTPProvider)
		if !ok {
			continue
		}
		if pr := hp.Routes(); len(pr) > 0 {
			routes[name] = pr
		}
	}
	return routes
}

// Health collects the status of every enabled module. Modules that do not
// report health are listed as healthy.
func (r *Registry) Health(ctx context.Context) map[string]sdk.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]sdk.HealthStatus, len(r.order))
	for _, name := range r.order {
		if !r.enabled[name] {
			continue
		}
		if hc, ok := r.plugins[name].(sdk.HealthChecker); ok {
			out[name] = hc.Health(ctx)
			continue
		}
		out[name] = sdk.HealthStatus{Status: sdk.StatusHealthy}
	}
	return out
}
