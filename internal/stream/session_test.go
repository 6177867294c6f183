package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/internal/testutil"
)

// manualTicker fires only when the test sends on c.
type manualTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

func (m *manualTicker) factory() TickerFunc {
	return func(time.Duration) Ticker { return m }
}

// freeRunning returns a ticker that is always ready.
func freeRunning() TickerFunc {
	c := make(chan time.Time)
	close(c)
	return func(time.Duration) Ticker { return &manualTicker{c: c} }
}

// recordingSink collects delivered snapshots and signals each delivery.
type recordingSink struct {
	mu        sync.Mutex
	snaps     []telemetry.Snapshot
	delivered chan struct{}
	failOn    int
	err       error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{delivered: make(chan struct{}, 64)}
}

func (r *recordingSink) Send(_ context.Context, snap telemetry.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil && len(r.snaps)+1 >= r.failOn {
		return r.err
	}
	r.snaps = append(r.snaps, snap)
	r.delivered <- struct{}{}
	return nil
}

func (r *recordingSink) Snapshots() []telemetry.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Snapshot(nil), r.snaps...)
}

type recordingObserver struct {
	mu        sync.Mutex
	started   int
	delivered int
	ended     []State
}

func (o *recordingObserver) SessionStarted(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) SnapshotSent(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered++
}

func (o *recordingObserver) SessionEnded(_ string, st State, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, st)
}

func runAsync(ctx context.Context, s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
		return nil
	}
}

func TestSession_FiveTicksFiveSnapshots(t *testing.T) {
	clock := testutil.NewClock()
	src := testutil.NewSource(clock)
	sink := newRecordingSink()
	tk := newManualTicker()
	obs := &recordingObserver{}

	s := New(src, sink, 1000, WithTicker(tk.factory()), WithObserver(obs), WithLogger(testutil.Logger(t)))
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	// One immediate delivery, then one per tick; the fifth tick would land
	// at the 5s mark, where the session is cancelled.
	for i := 0; i < 5; i++ {
		<-sink.delivered
		if i < 4 {
			clock.Advance(time.Second)
			tk.c <- clock.Now()
		}
	}
	cancel()

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snaps := sink.Snapshots()
	if len(snaps) != 5 {
		t.Fatalf("delivered %d snapshots, want 5", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Timestamp < snaps[i-1].Timestamp {
			t.Errorf("snapshot %d timestamp %d < previous %d", i, snaps[i].Timestamp, snaps[i-1].Timestamp)
		}
	}
	for i, snap := range snaps {
		if snap.CPUUsagePercent < 0 || snap.CPUUsagePercent > 100 {
			t.Errorf("snapshot %d CPU = %v", i, snap.CPUUsagePercent)
		}
		if snap.Memory.UsagePercent < 0 || snap.Memory.UsagePercent > 100 {
			t.Errorf("snapshot %d memory = %v", i, snap.Memory.UsagePercent)
		}
	}

	if s.State() != StateCancelled {
		t.Errorf("State = %v, want cancelled", s.State())
	}
	if s.Sent() != 5 {
		t.Errorf("Sent = %d, want 5", s.Sent())
	}
	if !tk.stopped.Load() {
		t.Error("ticker not stopped")
	}
	if obs.started != 1 || obs.delivered != 5 || len(obs.ended) != 1 || obs.ended[0] != StateCancelled {
		t.Errorf("observer = started %d delivered %d ended %v", obs.started, obs.delivered, obs.ended)
	}
}

func TestSession_CancelDuringWaitIsImmediate(t *testing.T) {
	src := testutil.NewSource(nil)
	sink := newRecordingSink()

	// Real ticker with an interval far longer than the test timeout.
	s := New(src, sink, int64(time.Hour/time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	<-sink.delivered
	start := time.Now()
	cancel()

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
	if src.Calls() != 1 {
		t.Errorf("source calls = %d, want 1", src.Calls())
	}
}

func TestSession_NoSendAfterCancelObserved(t *testing.T) {
	src := testutil.NewSource(nil)
	sink := newRecordingSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while the second snapshot is being taken.
	src.OnCall(func(call int) {
		if call == 2 {
			cancel()
		}
	})

	s := New(src, sink, 1, WithTicker(freeRunning()))
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(sink.Snapshots()); got != 1 {
		t.Errorf("delivered %d snapshots, want 1", got)
	}
	if s.State() != StateCancelled {
		t.Errorf("State = %v, want cancelled", s.State())
	}
}

func TestSession_AlreadyCancelled(t *testing.T) {
	src := testutil.NewSource(nil)
	sink := newRecordingSink()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(src, sink, 1000)
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.Calls() != 0 {
		t.Errorf("source calls = %d, want 0", src.Calls())
	}
}

func TestSession_DeliveryFailure(t *testing.T) {
	src := testutil.NewSource(nil)
	sink := newRecordingSink()
	sink.failOn = 3
	sink.err = errors.New("broken pipe")
	obs := &recordingObserver{}

	s := New(src, sink, 1, WithTicker(freeRunning()), WithObserver(obs))
	err := s.Run(context.Background())

	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if !errors.Is(err, sink.err) {
		t.Errorf("err = %v, want cause preserved", err)
	}
	if s.State() != StateFailed {
		t.Errorf("State = %v, want failed", s.State())
	}
	if s.Sent() != 2 {
		t.Errorf("Sent = %d, want 2", s.Sent())
	}
	if src.Calls() != 3 {
		t.Errorf("source calls = %d, want 3 (no retry)", src.Calls())
	}
	if len(obs.ended) != 1 || obs.ended[0] != StateFailed {
		t.Errorf("observer ended = %v, want [failed]", obs.ended)
	}
}

func TestSession_SourceFailure(t *testing.T) {
	src := testutil.NewSource(nil)
	cause := errors.New("sampler crashed")
	src.FailAfter(1, cause)
	sink := newRecordingSink()

	s := New(src, sink, 1, WithTicker(freeRunning()))
	err := s.Run(context.Background())

	if !errors.Is(err, ErrSourceFailed) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want ErrSourceFailed wrapping cause", err)
	}
	if s.State() != StateFailed {
		t.Errorf("State = %v, want failed", s.State())
	}
	if got := len(sink.Snapshots()); got != 1 {
		t.Errorf("delivered %d, want 1", got)
	}
}

func TestSession_SourcePanic(t *testing.T) {
	src := testutil.NewSource(nil)
	src.PanicWith("index out of range")

	s := New(src, newRecordingSink(), 1000)
	err := s.Run(context.Background())
	if !errors.Is(err, ErrSourceFailed) {
		t.Fatalf("err = %v, want ErrSourceFailed", err)
	}
	if s.State() != StateFailed {
		t.Errorf("State = %v, want failed", s.State())
	}
}

func TestSession_RunTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(testutil.NewSource(nil), newRecordingSink(), 1000)
	if err := s.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run err = %v, want ErrAlreadyStarted", err)
	}
}

func TestSession_RealTickerCadence(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	src := testutil.NewSource(nil)
	sink := newRecordingSink()

	const interval = 50 * time.Millisecond
	const duration = 260 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	s := New(src, sink, int64(interval/time.Millisecond))
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Immediate first delivery plus floor(D/I) ticks, with scheduling slack.
	want := int(duration/interval) + 1
	got := len(sink.Snapshots())
	if got < want-2 || got > want+1 {
		t.Errorf("delivered %d snapshots, want about %d", got, want)
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		opts []Option
		want time.Duration
	}{
		{"positive", 250, nil, 250 * time.Millisecond},
		{"zero", 0, nil, DefaultInterval},
		{"negative", -10, nil, DefaultInterval},
		{"configured default", 0, []Option{WithDefaultInterval(2 * time.Second)}, 2 * time.Second},
		{"explicit wins over default", 500, []Option{WithDefaultInterval(2 * time.Second)}, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testutil.NewSource(nil), newRecordingSink(), tt.ms, tt.opts...)
			if s.Interval() != tt.want {
				t.Errorf("Interval() = %v, want %v", s.Interval(), tt.want)
			}
			if s.State() != StateIdle {
				t.Errorf("new session state = %v, want idle", s.State())
			}
			if s.ID() == "" {
				t.Error("empty session ID")
			}
		})
	}
}

func TestNew_WithID(t *testing.T) {
	s := New(testutil.NewSource(nil), newRecordingSink(), 0, WithID("fixed"), WithTransport("grpc"))
	if s.ID() != "fixed" {
		t.Errorf("ID() = %q, want fixed", s.ID())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:      "idle",
		StateRunning:   "running",
		StateCancelled: "cancelled",
		StateFailed:    "failed",
	}
	for st, want := range tests {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
	if StateRunning.Terminal() || !StateFailed.Terminal() {
		t.Error("Terminal() mismatch")
	}
}
