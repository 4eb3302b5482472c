package mqtt

import (
	"errors"
	"fmt"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidConfig is returned when the broker address or port is malformed.
	// It is the only fatal error of this package.
	ErrInvalidConfig = errors.New("mqtt: invalid broker configuration")

	// ErrConnectionFailed is wrapped by ConnectError.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrSubscribeFailed is wrapped by SubscribeError.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrRetriesExhausted is returned by Run when a configured retry budget is spent.
	ErrRetriesExhausted = errors.New("mqtt: connection retries exhausted")

	// ErrTimeout is returned when a broker operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)

// ConnectError reports a failed transport connection or handshake.
type ConnectError struct {
	Broker string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConnectionFailed, e.Broker, e.Err)
}

// Unwrap allows matching both ErrConnectionFailed and the underlying cause.
func (e *ConnectError) Unwrap() []error {
	return []error{ErrConnectionFailed, e.Err}
}

// SubscribeError reports a subscription the broker did not accept.
type SubscribeError struct {
	Topic string
	Err   error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSubscribeFailed, e.Topic, e.Err)
}

// Unwrap allows matching both ErrSubscribeFailed and the underlying cause.
func (e *SubscribeError) Unwrap() []error {
	return []error{ErrSubscribeFailed, e.Err}
}
