package influxdb

import (
	"os"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/victor-fedorov-wb/ha-monitor/internal/action"
	"github.com/victor-fedorov-wb/ha-monitor/internal/watcher"
)

// Measurement names.
const (
	measurementStatus = "status_change"
	measurementAction = "action_run"
)

// RecordStatus writes one status_change point per message on the watched topic.
// It satisfies watcher.Recorder.
func (c *Client) RecordStatus(state watcher.State, fired bool) {
	if c == nil || !c.IsConnected() {
		return
	}

	c.writePoint(measurementStatus,
		map[string]string{
			"host":     c.host,
			"status":   state.Current.String(),
			"previous": state.Previous.String(),
		},
		map[string]interface{}{
			"fired": fired,
		},
		time.Now(),
	)
}

// RecordAction writes one action_run point per invocation.
// It satisfies action.Recorder.
func (c *Client) RecordAction(o action.Outcome) {
	if c == nil || !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"success":     o.Success(),
		"exit_code":   o.ExitCode,
		"duration_ms": o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		fields["error"] = o.Err.Error()
	}

	c.writePoint(measurementAction,
		map[string]string{
			"host":   c.host,
			"reason": o.Reason,
		},
		fields,
		o.Started,
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}
