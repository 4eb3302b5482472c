// Package influxdb records ha-monitor telemetry in InfluxDB v2.
//
// Telemetry is optional (influxdb.enabled, default false). When enabled,
// every status message and every action invocation becomes one point:
//
//	status_change  tags: host, status, previous  fields: fired
//	action_run     tags: host, reason            fields: success, exit_code, duration_ms, error
//
// Client satisfies both watcher.Recorder and action.Recorder.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	switch {
//	case errors.Is(err, influxdb.ErrDisabled):
//	    // run without telemetry
//	case err != nil:
//	    log.Warn("telemetry unavailable", "error", err)
//	default:
//	    defer client.Close()
//	    runner.SetRecorder(client)
//	}
//
// # Error Handling
//
// Writes are non-blocking and batched. Write failures arrive asynchronously
// through SetOnError and never affect the watcher.
package influxdb
