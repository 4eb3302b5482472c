package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/victor-fedorov-wb/ha-monitor/internal/action"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/config"
	"github.com/victor-fedorov-wb/ha-monitor/internal/watcher"
)

// fakeWriteAPI captures points instead of sending them.
type fakeWriteAPI struct {
	api.WriteAPI

	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriteAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriteAPI) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newTestClient() (*Client, *fakeWriteAPI) {
	fake := &fakeWriteAPI{}
	c := newClient(nil, fake, config.InfluxDBConfig{Enabled: true})
	c.host = "test-host"
	return c, fake
}

func tagsOf(p *write.Point) map[string]string {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func fieldsOf(p *write.Point) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, field := range p.FieldList() {
		fields[field.Key] = field.Value
	}
	return fields
}

func TestRecordStatus(t *testing.T) {
	c, fake := newTestClient()

	c.RecordStatus(watcher.State{
		Previous: watcher.Unknown,
		Current:  watcher.ParseStatus([]byte("online")),
	}, true)

	if len(fake.points) != 1 {
		t.Fatalf("points = %d, want 1", len(fake.points))
	}
	p := fake.points[0]
	if p.Name() != measurementStatus {
		t.Errorf("measurement = %q, want %q", p.Name(), measurementStatus)
	}

	tags := tagsOf(p)
	if tags["status"] != "online" || tags["previous"] != "unknown" || tags["host"] != "test-host" {
		t.Errorf("tags = %v", tags)
	}
	if fired, _ := fieldsOf(p)["fired"].(bool); !fired {
		t.Errorf("fired field = %v, want true", fieldsOf(p)["fired"])
	}
}

func TestRecordAction(t *testing.T) {
	c, fake := newTestClient()
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c.RecordAction(action.Outcome{
		Reason:   "offline -> online",
		ExitCode: 2,
		Started:  started,
		Duration: 1500 * time.Millisecond,
		Err:      &action.ExecutionError{Binary: "wb-engine-helper", ExitCode: 2, Err: errors.New("exit status 2")},
	})

	if len(fake.points) != 1 {
		t.Fatalf("points = %d, want 1", len(fake.points))
	}
	p := fake.points[0]
	if p.Name() != measurementAction {
		t.Errorf("measurement = %q, want %q", p.Name(), measurementAction)
	}
	if !p.Time().Equal(started) {
		t.Errorf("time = %v, want %v", p.Time(), started)
	}
	if got := tagsOf(p)["reason"]; got != "offline -> online" {
		t.Errorf("reason tag = %q", got)
	}

	fields := fieldsOf(p)
	if success, _ := fields["success"].(bool); success {
		t.Error("success field = true for failed outcome")
	}
	if fields["duration_ms"] != int64(1500) {
		t.Errorf("duration_ms = %v, want 1500", fields["duration_ms"])
	}
	if _, ok := fields["error"]; !ok {
		t.Error("error field missing for failed outcome")
	}
}

func TestRecord_AfterClose(t *testing.T) {
	c, fake := newTestClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	c.RecordStatus(watcher.State{}, false)
	c.RecordAction(action.Outcome{})

	if len(fake.points) != 0 {
		t.Errorf("points after Close = %d, want 0", len(fake.points))
	}
}

func TestRecord_NilClient(t *testing.T) {
	var c *Client

	// Must not panic
	c.RecordStatus(watcher.State{}, false)
	c.RecordAction(action.Outcome{})
}

func TestHandleWriteErrors(t *testing.T) {
	c, _ := newTestClient()

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- errors.New("bucket not found")
	close(errs)
	c.handleWriteErrors(errs)

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	default:
		t.Fatal("onError not called")
	}
}
