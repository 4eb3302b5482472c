package influxdb_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/victor-fedorov-wb/ha-monitor/internal/action"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/config"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/influxdb"
	"github.com/victor-fedorov-wb/ha-monitor/internal/watcher"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	url := os.Getenv("HAMONITOR_TEST_INFLUXDB_URL")
	if url == "" {
		url = "http://127.0.0.1:8086"
	}
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "ha-monitor-dev-token",
		Org:           "ha-monitor",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the dev InfluxDB or skips the test.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	client := connectOrSkip(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Twice(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestRecord_Roundtrip(t *testing.T) {
	client := connectOrSkip(t)

	writeErrs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case writeErrs <- err:
		default:
		}
	})

	client.RecordStatus(watcher.State{
		Previous: watcher.ParseStatus([]byte("offline")),
		Current:  watcher.ParseStatus([]byte("online")),
	}, true)
	client.RecordAction(action.Outcome{
		Reason:   "offline -> online",
		ExitCode: 0,
		Started:  time.Now(),
		Duration: 120 * time.Millisecond,
	})
	// Close flushes the batch synchronously
	client.Close()

	select {
	case err := <-writeErrs:
		t.Errorf("Write error = %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
