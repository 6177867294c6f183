package democlient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	sysinfopb "github.com/HerbHall/sysinfo/api/proto/v1"
	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/metrics"
	"github.com/HerbHall/sysinfo/internal/plugin"
	"github.com/HerbHall/sysinfo/internal/rest"
	"github.com/HerbHall/sysinfo/internal/rpc"
	"github.com/HerbHall/sysinfo/internal/server"
	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/internal/testutil"
	"github.com/HerbHall/sysinfo/internal/version"
	"github.com/HerbHall/sysinfo/pkg/models"
	sdk "github.com/HerbHall/sysinfo/pkg/plugin"
)

func newRESTServer(t *testing.T, src telemetry.Source) *httptest.Server {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	root := config.New(v)

	reg := plugin.NewRegistry(zap.NewNop())
	require.NoError(t, reg.Register(rest.New()))
	require.NoError(t, reg.InitAll(root, sdk.Dependencies{
		Logger:         zap.NewNop(),
		Handler:        telemetry.NewHandler(src, zap.NewNop()),
		StreamInterval: 10 * time.Millisecond,
	}))

	srv := server.New(server.ConfigFrom(root), reg, metrics.New(), zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		reg.StopAll(context.Background())
		ts.Close()
	})
	return ts
}

func newGRPCClient(t *testing.T, src telemetry.Source) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	done, cancel := context.WithCancel(context.Background())

	gs := grpc.NewServer(grpc.ForceServerCodec(sysinfopb.Codec{}))
	sysinfopb.RegisterSystemInfoServiceServer(gs, rpc.NewService(done, telemetry.NewHandler(src, zap.NewNop()), zap.NewNop(), nil, 10*time.Millisecond))
	go func() { _ = gs.Serve(lis) }()

	c, err := DialGRPC("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		gs.Stop()
	})
	return c
}

func TestRESTClient_Snapshot(t *testing.T) {
	ts := newRESTServer(t, testutil.NewSource(nil))
	c := NewRESTClient(ts.URL+"/", nil)

	var seen string
	c.OnServerVersion = func(v string) { seen = v }

	snap, elapsed, n, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23.45, snap.CPUUsagePercent)
	assert.Positive(t, elapsed)
	assert.Positive(t, n)
	assert.Equal(t, version.Short(), seen)
}

func TestRESTClient_Metric(t *testing.T) {
	ts := newRESTServer(t, testutil.NewSource(nil))
	c := NewRESTClient(ts.URL, nil)

	mem, err := c.Metric(context.Background(), "Memory")
	require.NoError(t, err)
	assert.EqualValues(t, 17179869184, mem["total"])

	_, err = c.Metric(context.Background(), "bogus")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Metric 'bogus' not found", apiErr.Detail)
}

func TestRESTClient_Poll(t *testing.T) {
	ts := newRESTServer(t, testutil.NewSource(nil))
	c := NewRESTClient(ts.URL, nil)

	var rounds []int
	err := c.Poll(context.Background(), 3, time.Millisecond, func(i int, _ models.SystemInfoResponse, _ time.Duration) error {
		rounds = append(rounds, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, rounds)
}

func TestRESTClient_PollCancelled(t *testing.T) {
	ts := newRESTServer(t, testutil.NewSource(nil))
	c := NewRESTClient(ts.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := c.Poll(ctx, 0, time.Hour, func(int, models.SystemInfoResponse, time.Duration) error {
		calls++
		cancel()
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRESTClient_Watch(t *testing.T) {
	ts := newRESTServer(t, testutil.NewSource(nil))
	c := NewRESTClient(ts.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := 0
	err := c.Watch(ctx, 5*time.Millisecond, func(s models.SystemInfoResponse) error {
		got++
		assert.Equal(t, 23.45, s.CPUUsagePercent)
		if got == 3 {
			cancel()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, got, 3)
}

func TestRESTClient_SendsBearerToken(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(models.SystemInfoResponse{})
	}))
	defer ts.Close()

	tok, err := MintToken([]byte("s3cret"), "demo-client", time.Minute)
	require.NoError(t, err)

	_, _, _, err = NewRESTClient(ts.URL, nil).WithToken(tok).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+tok, auth)
}

func TestMintToken(t *testing.T) {
	tok, err := MintToken([]byte("s3cret"), "demo-client", time.Minute)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "demo-client", claims.Subject)

	_, err = MintToken(nil, "x", time.Minute)
	assert.Error(t, err)
}

func TestVersionWarning(t *testing.T) {
	tests := []struct {
		client, server string
		warn           bool
	}{
		{"1.2.0", "1.9.3", false},
		{"1.2.0", "2.0.0", true},
		{"v2.0.0", "2.1.0", false},
		{"dev", "2.0.0", false},
	}
	for _, tt := range tests {
		got := VersionWarning(tt.client, tt.server)
		if (got != "") != tt.warn {
			t.Errorf("VersionWarning(%q, %q) = %q, want warning %v", tt.client, tt.server, got, tt.warn)
		}
	}
}

func TestGRPCClient_Unary(t *testing.T) {
	c := newGRPCClient(t, testutil.NewSource(nil))

	snap, _, n, err := c.Unary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Unix 6.1.0.18", snap.OSVersion)
	assert.Equal(t, snap.MemoryInfo.TotalBytes, snap.MemoryInfo.UsedBytes+snap.MemoryInfo.FreeBytes)
	assert.Positive(t, n)
}

func TestGRPCClient_StreamCancelIsClean(t *testing.T) {
	c := newGRPCClient(t, testutil.NewSource(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := 0
	err := c.Stream(ctx, 5*time.Millisecond, func(models.SystemInfoResponse) error {
		got++
		if got == 3 {
			cancel()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, got, 3)
}

func TestGRPCClient_StreamDeadlineIsClean(t *testing.T) {
	c := newGRPCClient(t, testutil.NewSource(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Stream(ctx, 5*time.Millisecond, func(models.SystemInfoResponse) error { return nil })
	assert.NoError(t, err)
}

func TestGRPCClient_StreamCallbackError(t *testing.T) {
	c := newGRPCClient(t, testutil.NewSource(nil))

	stop := errors.New("stop")
	err := c.Stream(context.Background(), 5*time.Millisecond, func(models.SystemInfoResponse) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestGRPCClient_StreamServerFailure(t *testing.T) {
	src := testutil.NewSource(nil)
	src.FailAfter(0, errors.New("sensor offline"))
	c := newGRPCClient(t, src)

	err := c.Stream(context.Background(), 5*time.Millisecond, func(models.SystemInfoResponse) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error occurred during streaming")
}

func TestIntervalMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int32
	}{
		{time.Second, 1000},
		{1500 * time.Microsecond, 1},
		{0, 0},
		{-time.Second, -1000},
		{30 * 24 * time.Hour, math.MaxInt32},
		{time.Duration(math.MaxInt64), math.MaxInt32},
		{time.Duration(math.MinInt64), math.MinInt32},
	}
	for _, tt := range tests {
		if got := intervalMillis(tt.in); got != tt.want {
			t.Errorf("intervalMillis(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	src := testutil.NewSource(nil)
	cmp, err := Compare(context.Background(), newGRPCClient(t, src), NewRESTClient(newRESTServer(t, src).URL, nil))
	require.NoError(t, err)
	assert.Positive(t, cmp.GRPCBytes)
	assert.Positive(t, cmp.RESTBytes)
	assert.Contains(t, []string{"grpc", "rest"}, cmp.Faster())
}

func TestPrinter(t *testing.T) {
	snap := testutil.NewSnapshot().Response()
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{OutputText, "CPU"},
		{OutputJSON, `"cpuUsagePercent": 23.45`},
		{OutputYAML, "cpuUsagePercent: 23.45"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			p := &Printer{Format: tt.format, Writer: &buf}
			require.NoError(t, p.Print(snap))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestPrinter_NotefOnlyInText(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Format: OutputJSON, Writer: &buf}
	p.Notef("hello %d", 1)
	assert.Empty(t, buf.String())

	p.Format = OutputText
	p.Notef("hello %d", 1)
	assert.Equal(t, "hello 1\n", buf.String())
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "JSON", "yaml"} {
		_, err := ParseOutputFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseOutputFormat("xml")
	assert.Error(t, err)
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		6 << 30: "6.0 GiB",
	}
	for in, want := range tests {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
