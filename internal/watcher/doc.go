// Package watcher detects the "became available" edge on the status topic.
//
// Each message on the watched topic is normalised (trimmed, lower-cased),
// shifted into a two-value State and run through Next. The action fires on
// the first "online" since start and on every "offline" to "online" move.
// Repeated "online" does not re-fire. Neither does "online" reached from any
// other token.
//
// The Watcher consumes mqtt.Events in delivery order on a single goroutine.
// Reconnects never reset State.
package watcher
