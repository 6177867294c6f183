package telemetry_test

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/stream"
	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/internal/testutil"
)

type fakeSampler struct {
	os        telemetry.OSInfo
	cpu       float64
	cpuErr    error
	total     uint64
	available uint64
	memErr    error
	uptime    uint64
	uptimeErr error
}

func (f *fakeSampler) OS() telemetry.OSInfo { return f.os }

func (f *fakeSampler) CPUPercent(ctx context.Context) (float64, error) {
	return f.cpu, f.cpuErr
}

func (f *fakeSampler) VirtualMemory(ctx context.Context) (uint64, uint64, error) {
	return f.total, f.available, f.memErr
}

func (f *fakeSampler) Uptime(ctx context.Context) (uint64, error) {
	return f.uptime, f.uptimeErr
}

func newFakeSampler() *fakeSampler {
	return &fakeSampler{
		os:        telemetry.OSInfo{Name: "Linux 6.1.0", Version: "Unix 6.1.0"},
		cpu:       12.346,
		total:     8 << 30,
		available: 6 << 30,
		uptime:    3600,
	}
}

func TestProvider_PrimaryPath(t *testing.T) {
	clock := testutil.NewClock()
	p := telemetry.NewProvider(newFakeSampler(), zap.NewNop(), telemetry.WithClock(clock))

	snap, err := p.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.OSName != "Linux 6.1.0" || snap.OSVersion != "Unix 6.1.0" {
		t.Errorf("os = %q/%q", snap.OSName, snap.OSVersion)
	}
	if snap.CPUUsagePercent != 12.35 {
		t.Errorf("CPUUsagePercent = %v, want 12.35", snap.CPUUsagePercent)
	}
	m := snap.Memory
	if m.TotalBytes != 8<<30 || m.FreeBytes != 6<<30 || m.UsedBytes != 2<<30 {
		t.Errorf("memory = %+v", m)
	}
	if m.UsedBytes+m.FreeBytes != m.TotalBytes {
		t.Errorf("used+free = %d, want %d", m.UsedBytes+m.FreeBytes, m.TotalBytes)
	}
	if m.UsagePercent != 25 {
		t.Errorf("UsagePercent = %v, want 25", m.UsagePercent)
	}
	if m.Degraded {
		t.Error("primary path reported Degraded")
	}
	if snap.UptimeSeconds != 3600 {
		t.Errorf("UptimeSeconds = %d, want 3600", snap.UptimeSeconds)
	}
	if snap.Timestamp != clock.Now().Unix() {
		t.Errorf("Timestamp = %d, want %d", snap.Timestamp, clock.Now().Unix())
	}
}

func TestProvider_ClampsCPU(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"negative", -3, 0},
		{"over 100", 100.4, 100},
		{"NaN", math.NaN(), 0},
		{"in range", 57.891, 57.89},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSampler()
			s.cpu = tt.in
			p := telemetry.NewProvider(s, zap.NewNop())
			snap, err := p.Snapshot(context.Background())
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			if snap.CPUUsagePercent != tt.want {
				t.Errorf("CPUUsagePercent = %v, want %v", snap.CPUUsagePercent, tt.want)
			}
		})
	}
}

func TestProvider_DegradesOnSamplerErrors(t *testing.T) {
	s := newFakeSampler()
	s.cpuErr = errors.New("counters unavailable")
	s.uptimeErr = errors.New("no boot time")
	p := telemetry.NewProvider(s, zap.NewNop())

	snap, err := p.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot should not fail on transient errors: %v", err)
	}
	if snap.CPUUsagePercent != 0 {
		t.Errorf("CPUUsagePercent = %v, want 0", snap.CPUUsagePercent)
	}
	if snap.UptimeSeconds != 0 {
		t.Errorf("UptimeSeconds = %d, want 0", snap.UptimeSeconds)
	}
}

func TestProvider_MemoryFallback(t *testing.T) {
	tests := []struct {
		name   string
		total  uint64
		memErr error
	}{
		{"read error", 0, errors.New("meminfo missing")},
		{"zero total", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSampler()
			s.total, s.available, s.memErr = tt.total, 0, tt.memErr
			p := telemetry.NewProvider(s, zap.NewNop())

			snap, err := p.Snapshot(context.Background())
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			m := snap.Memory
			if !m.Degraded {
				t.Error("expected Degraded on fallback path")
			}
			if m.UsagePercent != 0 {
				t.Errorf("UsagePercent = %v, want 0 on fallback path", m.UsagePercent)
			}
			if m.TotalBytes <= 0 {
				t.Errorf("TotalBytes = %d, want runtime figure > 0", m.TotalBytes)
			}
		})
	}
}

func TestProvider_AvailableAboveTotal(t *testing.T) {
	s := newFakeSampler()
	s.total, s.available = 100, 150
	p := telemetry.NewProvider(s, zap.NewNop())

	snap, _ := p.Snapshot(context.Background())
	if snap.Memory.UsedBytes != 0 || snap.Memory.FreeBytes != 100 {
		t.Errorf("memory = %+v, want used 0 free 100", snap.Memory)
	}
}

func TestProvider_CancelledContext(t *testing.T) {
	p := telemetry.NewProvider(newFakeSampler(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Snapshot(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestProvider_TimestampsNeverDecrease(t *testing.T) {
	p := telemetry.NewProvider(newFakeSampler(), zap.NewNop())

	var prev int64
	for i := 0; i < 50; i++ {
		snap, err := p.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Timestamp < prev {
			t.Fatalf("timestamp went backwards: %d after %d", snap.Timestamp, prev)
		}
		prev = snap.Timestamp
	}
	if now := time.Now().Unix(); prev > now+1 || prev < now-5 {
		t.Errorf("timestamp %d far from wall clock %d", prev, now)
	}
}

func TestProvider_ConcurrentUse(t *testing.T) {
	p := telemetry.NewProvider(newFakeSampler(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := p.Snapshot(context.Background()); err != nil {
					t.Errorf("Snapshot: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

// loadAllCores spins one goroutine per core until the test ends.
func loadAllCores(t *testing.T) {
	t.Helper()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < runtime.NumCPU(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}
	t.Cleanup(func() {
		close(stop)
		wg.Wait()
	})
}

// assertNoCollapse fails when one reading is far below the highest one.
// A CPU-quota container on a large host cannot raise host-wide usage, so
// the check is skipped when the load never shows up.
func assertNoCollapse(t *testing.T, readings []float64) {
	t.Helper()
	lo, hi := readings[0], readings[0]
	for _, v := range readings {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi < 10 {
		t.Skipf("host load not visible to the sampler (highest reading %.2f%%)", hi)
	}
	if lo < hi/4 {
		t.Errorf("lowest reading %.2f%% collapsed against highest %.2f%%: %v", lo, hi, readings)
	}
}

func newLoadedHostProvider(t *testing.T) *telemetry.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("saturates every core")
	}
	loadAllCores(t)
	sampler := telemetry.NewSampler(telemetry.SamplerConfig{CPUWindow: 100 * time.Millisecond}, zap.NewNop())
	return telemetry.NewProvider(sampler, zap.NewNop())
}

func TestProvider_OverlappingHostReadings(t *testing.T) {
	p := newLoadedHostProvider(t)

	var readings []float64
	for round := 0; round < 5; round++ {
		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			pair  [2]float64
		)
		for i := range pair {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				snap, err := p.Snapshot(context.Background())
				if err != nil {
					t.Errorf("Snapshot: %v", err)
					return
				}
				pair[i] = snap.CPUUsagePercent
			}(i)
		}
		close(start)
		wg.Wait()
		readings = append(readings, pair[:]...)
		time.Sleep(150 * time.Millisecond)
	}
	assertNoCollapse(t, readings)
}

func TestProvider_ConcurrentSessionsOnHostSampler(t *testing.T) {
	p := newLoadedHostProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	var (
		mu       sync.Mutex
		perID    = map[int][]float64{}
		wg       sync.WaitGroup
		sessions = 2
	)
	for i := 0; i < sessions; i++ {
		sink := stream.SinkFunc(func(_ context.Context, snap telemetry.Snapshot) error {
			mu.Lock()
			defer mu.Unlock()
			perID[i] = append(perID[i], snap.CPUUsagePercent)
			return nil
		})
		sess := stream.New(p, sink, 100)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sess.Run(ctx); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()

	var all []float64
	for i := 0; i < sessions; i++ {
		if len(perID[i]) < 3 {
			t.Fatalf("session %d sent %d snapshots, want >= 3", i, len(perID[i]))
		}
		all = append(all, perID[i]...)
	}
	assertNoCollapse(t, all)
}
