package mqtt

import "errors"

var (
	// ErrPublishTimeout is returned when the broker does not confirm a publish
	// before the deadline.
	ErrPublishTimeout = errors.New("timeout waiting for publish confirmation")
	// ErrNotConnected is returned when no broker connection is available.
	ErrNotConnected = errors.New("mqtt client not connected")
)
