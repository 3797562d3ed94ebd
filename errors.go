package sshmcp

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfiguration indicates a ConnectionConfig failed validation.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrNotConnected indicates an operation that needs a live connection was
// attempted on a session that is not Connected.
var ErrNotConnected = errors.New("session not connected")

// ErrCommandTimeout indicates a command did not complete within its timeout.
var ErrCommandTimeout = errors.New("command timed out")

// ErrSessionNotFound indicates a registry lookup for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionFailed indicates the session is in the Error state. A failed
// session must be closed and a new one created.
var ErrSessionFailed = errors.New("session is in a failed state")

// ErrTooManySessions indicates the registry is at its configured capacity.
var ErrTooManySessions = errors.New("too many sessions")

// ErrNotSupported indicates that the requested feature (e.g., SFTP) is not
// supported by the transport behind the session.
var ErrNotSupported = errors.New("operation not supported")

// ErrStreamConsumed indicates a LineStream was iterated after it finished.
var ErrStreamConsumed = errors.New("stream already consumed")

// ConfigError describes a single invalid ConnectionConfig field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// ConnectionError reports a failed handshake, authentication or dial.
type ConnectionError struct {
	Host      string
	Port      int
	SessionID string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s:%d (session %s): %v", e.Host, e.Port, e.SessionID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NotConnectedError is returned when a session is asked to do work while it
// is not in the Connected state.
type NotConnectedError struct {
	SessionID string
	State     State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("session %s is not connected (state: %s)", e.SessionID, e.State)
}

func (e *NotConnectedError) Is(target error) bool {
	return target == ErrNotConnected
}

// CommandTimeoutError is returned when a command exceeds its timeout.
type CommandTimeoutError struct {
	SessionID string
	Command   string
	Timeout   time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command %q on session %s timed out after %s", e.Command, e.SessionID, e.Timeout)
}

func (e *CommandTimeoutError) Is(target error) bool {
	return target == ErrCommandTimeout
}

// SessionNotFoundError is returned by Registry.Lookup for unknown ids.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.ID)
}

func (e *SessionNotFoundError) Is(target error) bool {
	return target == ErrSessionNotFound
}

// TransportError represents a failure in the underlying transport
// (e.g. channel open refused, connection dropped mid-command).
type TransportError struct {
	SessionID string
	Command   string
	Err       error
}

func (e *TransportError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("transport error on session %s: %v", e.SessionID, e.Err)
	}

	return fmt.Sprintf("transport error executing %q on session %s: %v", e.Command, e.SessionID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
