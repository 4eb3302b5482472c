package mqtt

// EventKind identifies what happened on the broker session.
type EventKind int

const (
	// EventConnected is emitted after every successful (re)connect.
	EventConnected EventKind = iota + 1

	// EventSubscribed reports the SUBACK for the watched topic. Err is a
	// *SubscribeError when the broker rejected it; the session is kept either way.
	EventSubscribed

	// EventDisconnected is emitted when an established session drops.
	EventDisconnected

	// EventMessage carries one inbound message.
	EventMessage
)

// String returns the lower-case event name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventSubscribed:
		return "subscribed"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is one item of the Manager's ordered event stream.
type Event struct {
	Kind EventKind

	// Err is the subscribe failure (EventSubscribed) or the reason the
	// session dropped (EventDisconnected).
	Err error

	// Topic and Payload are set for EventMessage. Payload is owned by the receiver.
	Topic   string
	Payload []byte
}
