package watcher

// State is the two most recent statuses seen on the watched topic.
// The zero value is (Unknown, Unknown).
type State struct {
	Previous Status
	Current  Status
}

// Next shifts incoming into state and reports whether the action fires.
//
// It fires iff incoming is online and the status it replaces is unknown
// or offline. Repeated "online" never re-fires, and neither does a move to
// "online" from any other token.
func Next(state State, incoming Status) (State, bool) {
	next := State{
		Previous: state.Current,
		Current:  incoming,
	}

	if incoming.Kind != KindOnline {
		return next, false
	}

	switch next.Previous.Kind {
	case KindUnknown, KindOffline:
		return next, true
	default:
		return next, false
	}
}
