package testutil

import (
	"context"
	"sync"

	"github.com/HerbHall/sysinfo/internal/telemetry"
)

// Compile-time interface check.
var _ telemetry.Source = (*Source)(nil)

// Source is a scriptable telemetry.Source. Each call returns the template
// snapshot stamped with the clock's current time.
type Source struct {
	mu        sync.Mutex
	clock     *Clock
	snap      telemetry.Snapshot
	calls     int
	failAfter int
	err       error
	panicWith any
	block     bool
	onCall    func(call int)
}

// NewSource returns a Source stamping snapshots from clock. A nil clock
// gets a fresh NewClock.
func NewSource(clock *Clock, opts ...func(*telemetry.Snapshot)) *Source {
	if clock == nil {
		clock = NewClock()
	}
	return &Source{clock: clock, snap: NewSnapshot(opts...)}
}

// Snapshot implements telemetry.Source.
func (s *Source) Snapshot(ctx context.Context) (telemetry.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return telemetry.Snapshot{}, err
	}

	s.mu.Lock()
	s.calls++
	call := s.calls
	block, panicWith, hook := s.block, s.panicWith, s.onCall
	var err error
	if s.err != nil && call > s.failAfter {
		err = s.err
	}
	snap := s.snap
	snap.Timestamp = s.clock.Now().Unix()
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if panicWith != nil {
		panic(panicWith)
	}
	if block {
		<-ctx.Done()
		return telemetry.Snapshot{}, ctx.Err()
	}
	if err != nil {
		return telemetry.Snapshot{}, err
	}
	return snap, nil
}

// Calls returns how many times Snapshot has been called.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FailAfter makes every call after the first n return err.
func (s *Source) FailAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
	s.err = err
}

// PanicWith makes every call panic with v.
func (s *Source) PanicWith(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicWith = v
}

// BlockUntilCancelled makes every call wait for ctx to be done.
func (s *Source) BlockUntilCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = true
}

// OnCall registers a hook run on every call, outside the lock, with the
// 1-based call number.
func (s *Source) OnCall(fn func(call int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCall = fn
}
