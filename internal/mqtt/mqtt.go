// Package mqtt publishes host telemetry snapshots to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/stream"
	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

const (
	defaultInterval       = 5 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second

	// disconnectQuiesceMs lets in-flight publishes finish on shutdown.
	disconnectQuiesceMs = 250
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish within the configured timeout.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Publisher is the subset of paho.Client the module needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Connector dials the broker described by opts.
type Connector func(opts *paho.ClientOptions, timeout time.Duration) (Publisher, error)

// Settings holds the publisher configuration under modules.mqtt.
type Settings struct {
	Broker         string
	Topic          string
	ClientID       string
	Username       string
	Password       string
	Interval       time.Duration
	QoS            int
	Retained       bool
	PublishTimeout time.Duration
	ConnectTimeout time.Duration
}

// SettingsFrom reads modules.mqtt, filling unset durations with defaults.
func SettingsFrom(cfg *config.Config) Settings {
	s := Settings{
		Broker:         cfg.GetString("broker"),
		Topic:          cfg.GetString("topic"),
		ClientID:       cfg.GetString("client_id"),
		Username:       cfg.GetString("username"),
		Password:       cfg.GetString("password"),
		Interval:       cfg.GetDuration("interval"),
		QoS:            cfg.GetInt("qos"),
		Retained:       cfg.GetBool("retained"),
		PublishTimeout: cfg.GetDuration("publish_timeout"),
		ConnectTimeout: cfg.GetDuration("connect_timeout"),
	}
	if s.Interval <= 0 {
		s.Interval = defaultInterval
	}
	if s.PublishTimeout <= 0 {
		s.PublishTimeout = defaultPublishTimeout
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = defaultConnectTimeout
	}
	return s
}

// Module runs one long-lived streaming session whose sink is an MQTT topic.
type Module struct {
	logger   *zap.Logger
	source   telemetry.Source
	observer stream.Observer
	settings Settings
	connect  Connector
	ticker   stream.TickerFunc

	client Publisher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session *stream.Session
	runErr  error
}

// New creates a new MQTT module instance that dials brokers with paho.
func New() *Module {
	return &Module{connect: dial}
}

func (m *Module) Info() plugin.Info {
	return plugin.Info{
		Name:        "mqtt",
		Version:     "1.0.0",
		Description: "Publishes SystemInfo snapshots to an MQTT topic",
	}
}

func (m *Module) Init(cfg, _ *config.Config, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.source = deps.Handler.Source()
	m.observer = deps.Observer

	m.settings = SettingsFrom(cfg)

	m.logger.Info("mqtt module initialized",
		zap.String("broker", m.settings.Broker),
		zap.String("topic", m.settings.Topic),
		zap.Duration("interval", m.settings.Interval),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.settings.Broker == "" {
		return errors.New("broker is required")
	}
	if m.settings.Topic == "" {
		return errors.New("topic is required")
	}
	if m.settings.QoS < 0 || m.settings.QoS > 2 {
		return fmt.Errorf("qos %d must be 0, 1 or 2", m.settings.QoS)
	}
	return nil
}

func (m *Module) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(m.settings.Broker).
		SetClientID(m.settings.ClientID).
		SetConnectTimeout(m.settings.ConnectTimeout).
		SetWriteTimeout(m.settings.PublishTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			m.logger.Warn("mqtt connection lost", zap.Error(err))
		})
	if m.settings.Username != "" {
		opts.SetUsername(m.settings.Username).SetPassword(m.settings.Password)
	}
	return opts
}

func dial(opts *paho.ClientOptions, timeout time.Duration) (Publisher, error) {
	c := paho.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect: timed out after %s", timeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return c, nil
}

// Start connects to the broker and begins publishing.
func (m *Module) Start(_ context.Context) error {
	client, err := m.connect(m.clientOptions(), m.settings.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("mqtt broker %s: %w", m.settings.Broker, err)
	}
	m.client = client

	sess := stream.New(m.source, stream.SinkFunc(m.publish), m.settings.Interval.Milliseconds(),
		stream.WithTransport("mqtt"),
		stream.WithLogger(m.logger),
		stream.WithObserver(m.observer),
		stream.WithTicker(m.ticker),
	)
	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := sess.Run(ctx)
		if err != nil {
			m.logger.Error("mqtt publisher stopped", zap.Error(err))
		}
		m.mu.Lock()
		m.runErr = err
		m.mu.Unlock()
	}()

	m.logger.Info("mqtt module started", zap.String("session_id", sess.ID()))
	return nil
}

// publish sends one snapshot and waits for the broker's acknowledgement.
func (m *Module) publish(ctx context.Context, snap telemetry.Snapshot) error {
	payload, err := json.Marshal(snap.Response())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tok := m.client.Publish(m.settings.Topic, byte(m.settings.QoS), m.settings.Retained, payload)
	timer := time.NewTimer(m.settings.PublishTimeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesceMs)
	}
	m.logger.Info("mqtt module stopped")
	return nil
}

// Health reports whether the publisher session is still running.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.Lock()
	sess, runErr := m.session, m.runErr
	m.mu.Unlock()

	switch {
	case sess == nil:
		return plugin.HealthStatus{Status: plugin.StatusUnhealthy, Message: "not started"}
	case runErr != nil:
		return plugin.HealthStatus{Status: plugin.StatusUnhealthy, Message: runErr.Error()}
	case sess.State() == stream.StateRunning:
		return plugin.HealthStatus{
			Status:  plugin.StatusHealthy,
			Message: strconv.FormatInt(sess.Sent(), 10) + " snapshots published",
		}
	default:
		return plugin.HealthStatus{Status: plugin.StatusDegraded, Message: sess.State().String()}
	}
}
