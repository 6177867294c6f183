// Package stream delivers periodic telemetry snapshots to a single subscriber.
//
// A Session owns one subscriber's sequence. It samples the shared
// telemetry.Source once per tick, hands the snapshot to a Sink, and waits for
// the next tick. The sequence ends only when ctx is cancelled or when the
// source or sink fails; it is never restarted.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/telemetry"
)

// DefaultInterval is used when a subscriber asks for a non-positive cadence.
const DefaultInterval = time.Second

var (
	// ErrAlreadyStarted is returned by Run on a session that has already run.
	ErrAlreadyStarted = errors.New("stream: session already started")
	// ErrDeliveryFailed wraps a Sink error that ended the session.
	ErrDeliveryFailed = errors.New("stream: delivery failed")
	// ErrSourceFailed wraps a snapshot source fault that ended the session.
	ErrSourceFailed = errors.New("stream: snapshot source failed")
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateFailed
}

// Sink receives snapshots in order, one at a time. A returned error ends the
// session without retry.
type Sink interface {
	Send(ctx context.Context, snap telemetry.Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, snap telemetry.Snapshot) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, snap telemetry.Snapshot) error {
	return f(ctx, snap)
}

// Ticker paces a session between deliveries.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Observer is notified of session lifecycle events. Implementations must be
// safe for concurrent use by many sessions.
type Observer interface {
	SessionStarted(transport string)
	SnapshotSent(transport string)
	SessionEnded(transport string, state State, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(string)                     {}
func (nopObserver) SnapshotSent(string)                       {}
func (nopObserver) SessionEnded(string, State, time.Duration) {}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTicker replaces the wall-clock ticker. A nil fn keeps the default.
func WithTicker(fn TickerFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.newTicker = fn
		}
	}
}

// WithObserver attaches a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithTransport labels the session for logs and metrics ("grpc", "ws", "mqtt").
func WithTransport(name string) Option {
	return func(s *Session) { s.transport = name }
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithDefaultInterval sets the cadence used when the requested interval is
// not positive.
func WithDefaultInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.defaultInterval = d
		}
	}
}

// Session is one subscriber's periodic snapshot stream.
type Session struct {
	id              string
	transport       string
	requested       int64
	defaultInterval time.Duration
	interval        time.Duration
	source          telemetry.Source
	sink            Sink
	logger          *zap.Logger
	observer        Observer
	newTicker       TickerFunc

	state atomic.Int32
	sent  atomic.Int64
}

// New creates an idle session sending every intervalMillis. A non-positive
// interval selects the default cadence.
func New(source telemetry.Source, sink Sink, intervalMillis int64, opts ...Option) *Session {
	s := &Session{
		id:              uuid.NewString(),
		transport:       "unknown",
		requested:       intervalMillis,
		defaultInterval: DefaultInterval,
		source:          source,
		sink:            sink,
		logger:          zap.NewNop(),
		observer:        nopObserver{},
		newTicker:       newTimeTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.interval = s.defaultInterval
	if intervalMillis > 0 {
		s.interval = time.Duration(intervalMillis) * time.Millisecond
	}
	s.logger = s.logger.With(
		zap.String("session_id", s.id),
		zap.String("transport", s.transport),
	)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Interval returns the effective cadence.
func (s *Session) Interval() time.Duration { return s.interval }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Sent returns how many snapshots the sink has accepted.
func (s *Session) Sent() int64 { return s.sent.Load() }

// Run delivers the first snapshot immediately and one more on every tick
// until ctx is done. It blocks for the life of the session.
//
// Cancellation is a normal end and returns nil. A source or sink fault
// returns an error wrapping ErrSourceFailed or ErrDeliveryFailed. No
// snapshot is sent once cancellation has been observed.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	start := time.Now()
	s.observer.SessionStarted(s.transport)
	s.logger.Debug("stream session started",
		zap.Int64("requested_ms", s.requested),
		zap.Duration("interval", s.interval),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrSourceFailed, r)
		}
		final := StateCancelled
		if err != nil {
			final = StateFailed
			s.logger.Warn("stream session failed",
				zap.Int64("sent", s.Sent()),
				zap.Error(err),
			)
		} else {
			s.logger.Info("stream session cancelled", zap.Int64("sent", s.Sent()))
		}
		s.state.Store(int32(final))
		s.observer.SessionEnded(s.transport, final, time.Since(start))
	}()

	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		snap, err := s.source.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrSourceFailed, err)
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := s.sink.Send(ctx, snap); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}
		s.sent.Add(1)
		s.observer.SnapshotSent(s.transport)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
		}
	}
}
