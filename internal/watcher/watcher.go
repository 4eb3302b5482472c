package watcher

import (
	"context"
	"sync"

	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/mqtt"
)

// Dispatcher runs the recovery action once per firing.
// Implementations must not block for long unless inline invocation is intended.
type Dispatcher interface {
	Dispatch(ctx context.Context, reason string)
}

// Recorder receives every status change on the watched topic.
type Recorder interface {
	RecordStatus(state State, fired bool)
}

// Logger defines the logging interface for the watcher.
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

// Option configures a Watcher.
type Option func(*Watcher)

// WithRecorder sets an optional sink for status changes.
func WithRecorder(r Recorder) Option {
	return func(w *Watcher) {
		w.recorder = r
	}
}

// Watcher applies the edge rule to messages on one topic.
//
// State is process-lifetime: reconnects never reset it, so the first
// message after a reconnect is compared against whatever was last seen.
type Watcher struct {
	topic      string
	dispatcher Dispatcher
	logger     Logger
	recorder   Recorder

	mu    sync.Mutex
	state State
}

// New creates a watcher for topic. A nil logger discards output.
func New(topic string, dispatcher Dispatcher, logger Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = noopLogger{}
	}

	w := &Watcher{
		topic:      topic,
		dispatcher: dispatcher,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns a snapshot of the current state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// HandleMessage processes one inbound message and reports whether the
// action fired. Messages on other topics are ignored entirely.
func (w *Watcher) HandleMessage(ctx context.Context, topic string, payload []byte) bool {
	if topic != w.topic {
		return false
	}

	status := ParseStatus(payload)

	// State is read and shifted before dispatch so two close firings
	// can never both observe the same previous value.
	w.mu.Lock()
	next, fire := Next(w.state, status)
	w.state = next
	w.mu.Unlock()

	w.logger.Info("status",
		"topic", topic,
		"status", next.Current.String(),
		"previous", next.Previous.String(),
	)

	if w.recorder != nil {
		w.recorder.RecordStatus(next, fire)
	}

	if !fire {
		return false
	}

	reason := next.Previous.String() + " -> " + next.Current.String()
	w.logger.Info("availability restored, triggering action", "transition", reason)
	w.dispatcher.Dispatch(ctx, reason)
	return true
}

// Run consumes events in order until ctx is done or events is closed.
func (w *Watcher) Run(ctx context.Context, events <-chan mqtt.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev mqtt.Event) {
	switch ev.Kind {
	case mqtt.EventMessage:
		w.HandleMessage(ctx, ev.Topic, ev.Payload)
	case mqtt.EventConnected:
		w.logger.Debug("session up", "status", w.State().Current.String())
	case mqtt.EventSubscribed:
		if ev.Err != nil {
			w.logger.Debug("not subscribed until the next session", "error", ev.Err)
		}
	case mqtt.EventDisconnected:
		w.logger.Debug("session down, keeping status", "status", w.State().Current.String())
	default:
		w.logger.Warn("unexpected event", "kind", ev.Kind.String())
	}
}
