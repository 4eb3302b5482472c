package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-fedorov-wb/ha-monitor/internal/action"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/mqtt"
)

const testTopic = "homeassistant/status"

// countingDispatcher records every firing.
type countingDispatcher struct {
	mu      sync.Mutex
	reasons []string
}

func (d *countingDispatcher) Dispatch(_ context.Context, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reasons)
}

// statusLogger records "status" log lines.
type statusLogger struct {
	mu       sync.Mutex
	statuses []string
}

func (l *statusLogger) Debug(string, ...any) {}
func (l *statusLogger) Warn(string, ...any)  {}
func (l *statusLogger) Error(string, ...any) {}

func (l *statusLogger) Info(msg string, args ...any) {
	if msg != "status" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "status" {
			l.statuses = append(l.statuses, args[i+1].(string))
		}
	}
}

// stateRecorder records every status change.
type stateRecorder struct {
	states []State
	fired  []bool
}

func (r *stateRecorder) RecordStatus(state State, fired bool) {
	r.states = append(r.states, state)
	r.fired = append(r.fired, fired)
}

func feed(w *Watcher, payloads ...string) []bool {
	fired := make([]bool, 0, len(payloads))
	for _, p := range payloads {
		fired = append(fired, w.HandleMessage(context.Background(), testTopic, []byte(p)))
	}
	return fired
}

func TestWatcher_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		payloads []string
		fired    []bool
		final    State
	}{
		{
			name:     "first online fires",
			payloads: []string{"online"},
			fired:    []bool{true},
			final:    State{Previous: Unknown, Current: Status{Kind: KindOnline, Text: "online"}},
		},
		{
			name:     "repeated online fires once",
			payloads: []string{"online", "online"},
			fired:    []bool{true, false},
			final: State{
				Previous: Status{Kind: KindOnline, Text: "online"},
				Current:  Status{Kind: KindOnline, Text: "online"},
			},
		},
		{
			name:     "offline then online",
			payloads: []string{"offline", "online"},
			fired:    []bool{false, true},
			final: State{
				Previous: Status{Kind: KindOffline, Text: "offline"},
				Current:  Status{Kind: KindOnline, Text: "online"},
			},
		},
		{
			name:     "online offline online",
			payloads: []string{"online", "offline", "online"},
			fired:    []bool{true, false, true},
			final: State{
				Previous: Status{Kind: KindOffline, Text: "offline"},
				Current:  Status{Kind: KindOnline, Text: "online"},
			},
		},
		{
			name:     "other token then online does not fire",
			payloads: []string{"unavailable", "online"},
			fired:    []bool{false, false},
			final: State{
				Previous: Status{Kind: KindOther, Text: "unavailable"},
				Current:  Status{Kind: KindOnline, Text: "online"},
			},
		},
		{
			name:     "normalisation",
			payloads: []string{"  OFFLINE\n", "Online "},
			fired:    []bool{false, true},
			final: State{
				Previous: Status{Kind: KindOffline, Text: "offline"},
				Current:  Status{Kind: KindOnline, Text: "online"},
			},
		},
		{
			name:     "online through other token back to online",
			payloads: []string{"online", "unavailable", "online"},
			fired:    []bool{true, false, false},
			final: State{
				Previous: Status{Kind: KindOther, Text: "unavailable"},
				Current:  Status{Kind: KindOnline, Text: "online"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &countingDispatcher{}
			w := New(testTopic, d, nil)

			fired := feed(w, tt.payloads...)

			assert.Equal(t, tt.fired, fired)
			assert.Equal(t, tt.final, w.State())

			want := 0
			for _, f := range tt.fired {
				if f {
					want++
				}
			}
			assert.Equal(t, want, d.count())
		})
	}
}

func TestWatcher_IgnoresOtherTopics(t *testing.T) {
	d := &countingDispatcher{}
	logger := &statusLogger{}
	rec := &stateRecorder{}
	w := New(testTopic, d, logger, WithRecorder(rec))

	fired := w.HandleMessage(context.Background(), "homeassistant/status/extra", []byte("online"))

	assert.False(t, fired)
	assert.Equal(t, State{}, w.State())
	assert.Zero(t, d.count())
	assert.Empty(t, logger.statuses)
	assert.Empty(t, rec.states)
}

func TestWatcher_LogsEveryStatus(t *testing.T) {
	logger := &statusLogger{}
	w := New(testTopic, &countingDispatcher{}, logger)

	feed(w, "online", "online", "weird", "")

	assert.Equal(t, []string{"online", "online", "weird", "unknown"}, logger.statuses)
}

func TestWatcher_RecordsStatusChanges(t *testing.T) {
	rec := &stateRecorder{}
	w := New(testTopic, &countingDispatcher{}, nil, WithRecorder(rec))

	feed(w, "offline", "online")

	require.Len(t, rec.states, 2)
	assert.Equal(t, []bool{false, true}, rec.fired)
	assert.Equal(t, KindOnline, rec.states[1].Current.Kind)
}

func TestWatcher_DispatchReason(t *testing.T) {
	d := &countingDispatcher{}
	w := New(testTopic, d, nil)

	feed(w, "offline", "online")

	require.Len(t, d.reasons, 1)
	assert.Equal(t, "offline -> online", d.reasons[0])
}

func TestWatcher_FailingActionDoesNotStopProcessing(t *testing.T) {
	runner := action.NewRunner(action.Config{Binary: "/nonexistent/wb-engine-helper", Args: []string{"--start"}})
	w := New(testTopic, runner, nil)

	fired := feed(w, "online", "offline", "online")

	assert.Equal(t, []bool{true, false, true}, fired)
	assert.EqualValues(t, 2, runner.Runs())
	assert.EqualValues(t, 2, runner.Failures())
}

func TestWatcher_Run_ReconnectKeepsState(t *testing.T) {
	d := &countingDispatcher{}
	w := New(testTopic, d, nil)

	events := make(chan mqtt.Event, 16)
	events <- mqtt.Event{Kind: mqtt.EventConnected}
	events <- mqtt.Event{Kind: mqtt.EventSubscribed}
	events <- mqtt.Event{Kind: mqtt.EventMessage, Topic: testTopic, Payload: []byte("online")}
	events <- mqtt.Event{Kind: mqtt.EventDisconnected}
	events <- mqtt.Event{Kind: mqtt.EventConnected}
	events <- mqtt.Event{Kind: mqtt.EventSubscribed}
	// Retained "online" redelivered after reconnect must not re-fire
	events <- mqtt.Event{Kind: mqtt.EventMessage, Topic: testTopic, Payload: []byte("online")}
	close(events)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, w.Run(ctx, events))
	assert.Equal(t, 1, d.count())
	assert.Equal(t, KindOnline, w.State().Previous.Kind)
}

func TestWatcher_Run_StopsOnCancel(t *testing.T) {
	w := New(testTopic, &countingDispatcher{}, nil)
	events := make(chan mqtt.Event)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, events)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
