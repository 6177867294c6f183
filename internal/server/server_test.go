package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/metrics"
	"github.com/HerbHall/sysinfo/internal/plugin"
	"github.com/HerbHall/sysinfo/pkg/models"
	sdk "github.com/HerbHall/sysinfo/pkg/plugin"
)

type stubModule struct {
	health sdk.HealthStatus
}

func (m *stubModule) Info() sdk.Info {
	return sdk.Info{Name: "stub", Version: "0.1.0", Description: "test module"}
}
func (m *stubModule) Init(_, _ *config.Config, _ sdk.Dependencies) error { return nil }
func (m *stubModule) Start(context.Context) error                        { return nil }
func (m *stubModule) Stop(context.Context) error                         { return nil }
func (m *stubModule) Health(context.Context) sdk.HealthStatus            { return m.health }
func (m *stubModule) Routes() []sdk.Route {
	return []sdk.Route{{
		Method: http.MethodGet,
		Path:   "/api/stub",
		Handler: func(w http.ResponseWriter, _ *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
		},
	}}
}

func newTestServer(t *testing.T, health sdk.HealthStatus) *Server {
	t.Helper()
	reg := plugin.NewRegistry(zap.NewNop())
	if err := reg.Register(&stubModule{health: health}); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.Set("modules.stub.enabled", true)
	if err := reg.InitAll(config.New(v), sdk.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatal(err)
	}
	cfg := Config{Host: "127.0.0.1", Port: 0, CORSOrigins: []string{"*"}}
	return New(cfg, reg, metrics.New(), zap.NewNop())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		module string
		want   string
	}{
		{"all healthy", sdk.StatusHealthy, sdk.StatusHealthy},
		{"module degraded", sdk.StatusDegraded, sdk.StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, sdk.HealthStatus{Status: tt.module})
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var resp models.HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.want {
				t.Errorf("status = %q, want %q", resp.Status, tt.want)
			}
			if resp.Modules["stub"] != tt.module {
				t.Errorf("modules[stub] = %q, want %q", resp.Modules["stub"], tt.module)
			}
		})
	}
}

func TestModuleRoutesMountedVerbatim(t *testing.T) {
	srv := newTestServer(t, sdk.HealthStatus{Status: sdk.StatusHealthy})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stub", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request ID header")
	}
}

func TestModulesList(t *testing.T) {
	srv := newTestServer(t, sdk.HealthStatus{Status: sdk.StatusHealthy})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/modules", nil))

	if !strings.Contains(w.Body.String(), `"name":"stub"`) {
		t.Errorf("body = %s, want stub module", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, sdk.HealthStatus{Status: sdk.StatusHealthy})
	h := srv.Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stub", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `sysinfo_http_requests_total{code="200",method="GET",route="GET /api/stub"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", body)
	}
}

func TestSwaggerDoc(t *testing.T) {
	srv := newTestServer(t, sdk.HealthStatus{Status: sdk.StatusHealthy})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/api/SystemInfo/{metric}") {
		t.Error("swagger doc missing SystemInfo paths")
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv := newTestServer(t, sdk.HealthStatus{Status: sdk.StatusHealthy})
	l, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
