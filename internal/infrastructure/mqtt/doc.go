// Package mqtt manages the broker session ha-monitor watches.
//
// This package manages:
//   - Connection to the broker (tcp:// or ssl://, optional credentials)
//   - The single subscription to the watched availability topic
//   - Keep-alive based detection of a dead transport
//   - Reconnection with bounded exponential backoff
//   - One ordered event stream (connected, subscribed, message, disconnected)
//
// # Architecture
//
// Instead of exposing paho callbacks, the Manager turns everything that
// happens on the session into Events read from a single channel:
//
//	Broker ↔ Manager.Run ──Events()──▶ watcher loop
//
// Messages are delivered in broker order; the channel applies backpressure
// rather than dropping. The subscription is re-issued on every reconnect
// because sessions are clean.
//
// # Failure Handling
//
//   - ConnectError: logged, retried after backoff (forever by default)
//   - SubscribeError: logged with the broker's reason, carried by
//     EventSubscribed, session kept
//   - Connection loss: logged, EventDisconnected emitted, reconnect scheduled
//   - ErrInvalidConfig: returned by NewManager, the only fatal error
//
// # Usage
//
//	mgr, err := mqtt.NewManager(cfg.MQTT, cfg.Watch.Topic, mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	go mgr.Run(ctx)
//
//	for ev := range mgr.Events() {
//	    // handle ev
//	}
package mqtt
