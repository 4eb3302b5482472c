package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/config"
)

// eventBufferSize bounds how far the broker can run ahead of the consumer
// before delivery blocks.
const eventBufferSize = 64

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// clientFactory creates a paho client from options. Replaced in tests.
type clientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for connection lifecycle events.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBackOff overrides the reconnect schedule built from the config.
func WithBackOff(b backoff.BackOff) Option {
	return func(m *Manager) {
		if b != nil {
			m.backoff = b
		}
	}
}

// withClientFactory swaps the paho client constructor.
func withClientFactory(f clientFactory) Option {
	return func(m *Manager) {
		m.newClient = f
	}
}

// Manager owns a single subscription session to one broker and one topic.
//
// Run drives the session lifecycle (connect, subscribe, detect loss,
// reconnect with exponential backoff). Everything that happens is reported
// on Events, in order, as one stream.
//
// Ordering: EventConnected precedes every message of its session. The
// subscription's EventSubscribed follows the SUBACK, so a retained message
// may arrive ahead of it.
//
// Thread Safety:
//   - Run must be called once; Events is safe for concurrent use.
type Manager struct {
	cfg    config.MQTTConfig
	broker string
	topic  string
	qos    byte

	logger    Logger
	backoff   backoff.BackOff
	newClient clientFactory

	client pahomqtt.Client
	mu     sync.Mutex

	events  chan Event
	done    chan struct{}
	abort   sync.Once
	closed  bool
	sendMu  sync.RWMutex
	started atomic.Bool
}

// NewManager validates the broker settings and prepares a Manager.
//
// Parameters:
//   - cfg: MQTT configuration
//   - topic: The exact topic to subscribe to
//   - opts: Optional logger / backoff overrides
//
// Returns:
//   - *Manager: Manager ready to Run
//   - error: ErrInvalidConfig if the address, port, topic or QoS is malformed
func NewManager(cfg config.MQTTConfig, topic string, opts ...Option) (*Manager, error) {
	broker, err := brokerURL(cfg.Broker)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		return nil, fmt.Errorf("%w: topic cannot be empty", ErrInvalidConfig)
	}
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, fmt.Errorf("%w: qos %d (must be 0, 1, or 2)", ErrInvalidConfig, cfg.QoS)
	}

	m := &Manager{
		cfg:       cfg,
		broker:    broker,
		topic:     topic,
		qos:       byte(cfg.QoS),
		logger:    noopLogger{},
		backoff:   newReconnectBackOff(cfg.Reconnect),
		newClient: pahomqtt.NewClient,
		events:    make(chan Event, eventBufferSize),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// newReconnectBackOff returns the exponential schedule for reconnect attempts:
// initial delay, doubling, capped at the max delay, never giving up on its own.
func newReconnectBackOff(cfg config.MQTTReconnectConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.GetInitialDelay()
	b.MaxInterval = cfg.GetMaxDelay()
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Broker returns the broker URL the manager connects to.
func (m *Manager) Broker() string {
	return m.broker
}

// Events returns the ordered stream of session events.
// The channel is closed when Run returns.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Run connects and keeps the session alive until ctx is cancelled.
//
// Connection and subscription failures are logged and retried. Run returns
// nil on cancellation, or ErrRetriesExhausted when a positive
// Reconnect.MaxAttempts budget of consecutive failures is spent.
func (m *Manager) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("mqtt: manager already running")
	}

	stop := context.AfterFunc(ctx, m.stopEmitting)
	defer stop()
	defer m.closeEvents()

	m.backoff.Reset()
	failures := 0

	for {
		lost, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			failures++
			m.logger.Warn("broker connection failed",
				"broker", m.broker,
				"attempt", failures,
				"error", err,
			)

			if limit := m.cfg.Reconnect.MaxAttempts; limit > 0 && failures >= limit {
				return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, failures, err)
			}

			if !sleepCtx(ctx, m.backoff.NextBackOff()) {
				return nil
			}
			continue
		}

		failures = 0
		m.backoff.Reset()

		select {
		case <-ctx.Done():
			m.disconnect()
			return nil

		case lostErr := <-lost:
			m.setClient(nil)
			m.logger.Warn("connection lost", "broker", m.broker, "error", lostErr)
			m.emit(Event{Kind: EventDisconnected, Err: lostErr})

			if !sleepCtx(ctx, m.backoff.NextBackOff()) {
				return nil
			}
		}
	}
}

// connect performs one connection attempt followed by the subscribe request.
// The returned channel receives the error that ends the session.
func (m *Manager) connect(ctx context.Context) (<-chan error, error) {
	lost := make(chan error, 1)

	opts := buildClientOptions(m.cfg, m.broker)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	m.logger.Debug("connecting to broker", "broker", m.broker)

	client := m.newClient(opts)
	if err := waitToken(ctx, client.Connect(), defaultConnectTimeout); err != nil {
		client.Disconnect(0)
		return nil, &ConnectError{Broker: m.broker, Err: err}
	}

	m.setClient(client)
	m.logger.Info("connected to broker", "broker", m.broker)

	// Emitted before the handler is registered so no message of this
	// session can overtake it
	m.emit(Event{Kind: EventConnected})

	err := m.subscribe(ctx, client)
	m.emit(Event{Kind: EventSubscribed, Err: err})

	return lost, nil
}

// subscribe issues the subscription for the watched topic.
//
// A rejected subscription is logged but the session is kept: the transport
// keep-alive still detects loss, and the next reconnect retries the subscribe.
func (m *Manager) subscribe(ctx context.Context, client pahomqtt.Client) error {
	token := client.Subscribe(m.topic, m.qos, m.forward)
	err := waitToken(ctx, token, defaultSubscribeTimeout)

	if err == nil {
		if st, ok := token.(*pahomqtt.SubscribeToken); ok {
			if code, found := st.Result()[m.topic]; found && code == subackFailure {
				err = fmt.Errorf("broker rejected subscription (return code 0x%02x)", code)
			}
		}
	}

	if err != nil {
		subErr := &SubscribeError{Topic: m.topic, Err: err}
		m.logger.Error("subscribe failed",
			"topic", m.topic,
			"error", subErr,
		)
		return subErr
	}

	m.logger.Info("subscribed", "topic", m.topic, "qos", m.qos)
	return nil
}

// forward is the paho message handler. It copies the payload and queues it
// on the event stream; paho calls it sequentially in delivery order.
func (m *Manager) forward(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("MQTT handler panic recovered",
				"topic", msg.Topic(),
				"panic", r,
			)
		}
	}()

	payload := append([]byte(nil), msg.Payload()...)
	m.emit(Event{Kind: EventMessage, Topic: msg.Topic(), Payload: payload})
}

// emit queues an event, blocking while the consumer is behind.
// It gives up once the manager is shutting down.
func (m *Manager) emit(ev Event) bool {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()

	if m.closed {
		return false
	}

	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

// stopEmitting releases any emit blocked on a consumer that has gone away.
func (m *Manager) stopEmitting() {
	m.abort.Do(func() { close(m.done) })
}

// closeEvents closes the event stream once no emit is in flight.
func (m *Manager) closeEvents() {
	m.stopEmitting()

	m.sendMu.Lock()
	m.closed = true
	close(m.events)
	m.sendMu.Unlock()
}

// disconnect gracefully closes the current session.
func (m *Manager) disconnect() {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return
	}

	client.Disconnect(defaultDisconnectQuiesce)
	m.setClient(nil)
	m.logger.Info("disconnected from broker", "broker", m.broker)
}

func (m *Manager) setClient(client pahomqtt.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
}

// waitToken waits for a paho token to complete, time out, or be cancelled.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleepCtx waits for d or until ctx is cancelled. It reports whether the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
