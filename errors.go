package main

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed is returned by sends on a connection that has
	// already been closed, locally or by a failed receive.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrKeyboardStopped is returned by Keyboard.Next once Stop was called.
	ErrKeyboardStopped = errors.New("keyboard stopped")
)

// Loop names used in notices and log lines.
const (
	originListen = "listen thread"
	originKeys   = "key thread"
)

// ProvisioningError reports a failed shell provisioning request. StatusCode
// is zero when no HTTP response was received.
type ProvisioningError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProvisioningError) Error() string {
	switch {
	case e.StatusCode != 0 && e.StatusCode != 200:
		return fmt.Sprintf("provisioning failed: HTTP %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("provisioning failed: %v", e.Err)
	default:
		return "provisioning failed"
	}
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ConnectError reports a WebSocket connection that could not be established.
// Host is kept instead of the full URL, which usually carries a session token.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TransportError is a send or receive failure in the middle of a session.
type TransportError struct {
	Origin string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Origin, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeWarning marks an inbound chunk that was not valid UTF-8.
type DecodeWarning struct {
	Size   int
	Offset int
}

func (e *DecodeWarning) Error() string {
	return fmt.Sprintf("invalid UTF-8 at byte %d of %d-byte chunk", e.Offset, e.Size)
}
