package sshmcp

import (
	"strings"
	"time"

	"github.com/google/shlex"
)

// State is the lifecycle state of a Session.
type State string

const (
	// StateDisconnected is the initial state and the state after Disconnect.
	StateDisconnected State = "disconnected"
	// StateConnecting covers dialing, handshake and authentication.
	StateConnecting State = "connecting"
	// StateConnected means the session can accept commands.
	StateConnected State = "connected"
	// StateExecuting means a command is in flight.
	StateExecuting State = "executing"
	// StateError means connecting failed or the connection was lost.
	StateError State = "error"
)

// IsLive reports whether the session holds an open connection.
func (s State) IsLive() bool {
	return s == StateConnected || s == StateExecuting
}

func (s State) String() string {
	return string(s)
}

// maxTransitions bounds the per-session transition history.
const maxTransitions = 50

// StateTransition records a single state change.
type StateTransition struct {
	From State
	To   State
	At   time.Time
}

// StateCallback is invoked after every state change. It runs outside the
// session's locks and must not block for long.
type StateCallback func(sessionID string, from, to State)

// CommandResult is the outcome of one completed command.
type CommandResult struct {
	SessionID  string
	ExitStatus int
	Stdout     string
	Stderr     string
	Duration   time.Duration
}

// Success returns true if the command exited with status 0.
func (r *CommandResult) Success() bool {
	return r.ExitStatus == 0
}

// Failed returns true if the command exited with a non-zero status.
func (r *CommandResult) Failed() bool {
	return !r.Success()
}

// SessionInfo is a point-in-time snapshot of a Session.
type SessionInfo struct {
	ID           string
	Host         string
	Port         int
	Username     string
	State        State
	CreatedAt    time.Time
	ConnectedAt  time.Time
	LastActivity time.Time
	CommandCount int
	LastError    string
}

// ProgramName returns the executable a shell command line invokes, skipping
// leading VAR=value assignments. Used to log commands without their arguments.
func ProgramName(command string) string {
	parts, err := shlex.Split(command)
	if err != nil {
		parts = strings.Fields(command)
	}

	for _, p := range parts {
		if k, _, ok := strings.Cut(p, "="); ok && k != "" && !strings.ContainsAny(k, "/ ") {
			continue
		}

		return p
	}

	return ""
}
