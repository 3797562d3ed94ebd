package sshmcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCommandTimeout is used when ExecuteCommand is given a zero timeout.
const DefaultCommandTimeout = 30 * time.Second

// Default PTY geometry for OpenShell.
const (
	DefaultTerm   = "xterm"
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Session is one tracked connection to a remote host.
//
// Connect, ExecuteCommand, an active LineStream, file transfers and
// Disconnect are serialized by a per-session lock, so at most one of them
// touches the connection at a time. Info never waits on that lock.
type Session struct {
	id        string
	cfg       ConnectionConfig
	transport Transport
	logger    zerolog.Logger
	onState   StateCallback

	// opMu serializes every operation that uses conn.
	opMu sync.Mutex

	// Guarded by opMu.
	keepaliveStop chan struct{}
	keepaliveDone chan struct{}

	stateMu      sync.RWMutex
	state        State
	conn         Conn
	createdAt    time.Time
	connectedAt  time.Time
	lastActivity time.Time
	commandCount int
	lastErr      error
	transitions  []StateTransition
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger. The default discards everything.
func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithStateCallback registers fn to run after every state change.
func WithStateCallback(fn StateCallback) SessionOption {
	return func(s *Session) {
		s.onState = fn
	}
}

// NewSession creates a Disconnected session with a fresh random id.
func NewSession(cfg ConnectionConfig, transport Transport, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if transport == nil {
		return nil, errors.New("session requires a transport")
	}

	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		transport: transport,
		logger:    zerolog.Nop(),
		state:     StateDisconnected,
		createdAt: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With().Str("session", s.id).Str("endpoint", cfg.String()).Logger()

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns a copy of the session's connection configuration.
func (s *Session) Config() ConnectionConfig {
	return s.cfg
}

// State returns the current state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	return s.state
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	info := SessionInfo{
		ID:           s.id,
		Host:         s.cfg.Host,
		Port:         s.cfg.Port,
		Username:     s.cfg.Username,
		State:        s.state,
		CreatedAt:    s.createdAt,
		ConnectedAt:  s.connectedAt,
		LastActivity: s.lastActivity,
		CommandCount: s.commandCount,
	}

	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}

	return info
}

// Transitions returns the most recent state changes, oldest first.
func (s *Session) Transitions() []StateTransition {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	out := make([]StateTransition, len(s.transitions))
	copy(out, s.transitions)

	return out
}

// Connect dials and authenticates. It is a no-op on a connected session and
// fails with ErrSessionFailed on a session in the Error state.
// The dial is bounded by the config Timeout as well as ctx.
func (s *Session) Connect(ctx context.Context) (SessionInfo, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.RLock()
	state, lastErr := s.state, s.lastErr
	s.stateMu.RUnlock()

	switch state {
	case StateConnected, StateExecuting:
		return s.Info(), nil
	case StateError:
		err := ErrSessionFailed
		if lastErr != nil {
			err = fmt.Errorf("%w: %w", ErrSessionFailed, lastErr)
		}

		return SessionInfo{}, s.connectionError(err)
	case StateDisconnected, StateConnecting:
	}

	s.setState(StateConnecting, nil)

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()

	conn, err := s.transport.Dial(dialCtx, s.cfg)
	if err != nil {
		s.setState(StateError, err)
		s.logger.Info().Err(err).Dur("elapsed", time.Since(start)).Msg("connect failed")

		return SessionInfo{}, s.connectionError(err)
	}

	now := time.Now()

	s.stateMu.Lock()
	s.conn = conn
	s.connectedAt = now
	s.lastActivity = now
	s.stateMu.Unlock()

	s.setState(StateConnected, nil)
	s.startKeepalive()

	s.logger.Info().Dur("elapsed", time.Since(start)).Msg("connected")

	return s.Info(), nil
}

// ExecuteCommand runs command to completion and captures its output.
// A zero timeout means DefaultCommandTimeout. A non-zero exit status is
// returned as a normal result. Invalid UTF-8 in the output is replaced with
// U+FFFD.
func (s *Session) ExecuteCommand(ctx context.Context, command string, timeout time.Duration, opts ...ExecOption) (*CommandResult, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	line := buildLine(command, opts)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	conn, err := s.beginCommand()
	if err != nil {
		return nil, err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	start := time.Now()
	status, err := conn.Exec(cmdCtx, line, &stdout, &stderr)
	duration := time.Since(start)

	s.endCommand()

	log := s.logger.Debug().Str("program", ProgramName(command)).Dur("duration", duration)

	if err != nil {
		if ctx.Err() == nil && errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			log.Msg("command timed out")

			return nil, &CommandTimeoutError{SessionID: s.id, Command: command, Timeout: timeout}
		}

		log.Err(err).Msg("command failed")

		if ctx.Err() == nil {
			s.checkConnection(conn, err)
		}

		return nil, &TransportError{SessionID: s.id, Command: command, Err: err}
	}

	log.Int("exit_status", status).Msg("command finished")

	return &CommandResult{
		SessionID:  s.id,
		ExitStatus: status,
		Stdout:     decodeOutput(stdout.Bytes()),
		Stderr:     decodeOutput(stderr.Bytes()),
		Duration:   duration,
	}, nil
}

// ExecuteStream starts command lazily and returns its stdout as a line
// sequence. The connection check happens now; the session lock is taken on
// the first call to Next and held until the stream is exhausted or closed.
// Callers must Close the stream.
func (s *Session) ExecuteStream(ctx context.Context, command string, opts ...ExecOption) (*LineStream, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	return &LineStream{
		session: s,
		ctx:     ctx,
		command: command,
		line:    buildLine(command, opts),
	}, nil
}

// OpenShell opens an interactive PTY channel. Zero values fall back to
// DefaultTerm, DefaultWidth and DefaultHeight. The caller owns the channel.
func (s *Session) OpenShell(ctx context.Context, term string, width, height int) (Channel, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	if term == "" {
		term = DefaultTerm
	}

	if width <= 0 {
		width = DefaultWidth
	}

	if height <= 0 {
		height = DefaultHeight
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	conn, err := s.liveConn()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Shell(ctx, PtyRequest{Term: term, Width: width, Height: height})
	if err != nil {
		return nil, &TransportError{SessionID: s.id, Err: fmt.Errorf("open shell: %w", err)}
	}

	s.touch()

	return ch, nil
}

// Upload copies a local file or directory to the remote host.
func (s *Session) Upload(ctx context.Context, localPath, remotePath string, opts ...FileOption) error {
	cfg := fileConfig(opts)

	return s.withFiles(func(ft FileTransfer) error {
		return ft.Upload(ctx, localPath, remotePath, cfg)
	})
}

// Download copies a remote file or directory to the local machine.
func (s *Session) Download(ctx context.Context, remotePath, localPath string, opts ...FileOption) error {
	cfg := fileConfig(opts)

	return s.withFiles(func(ft FileTransfer) error {
		return ft.Download(ctx, remotePath, localPath, cfg)
	})
}

// ListDir lists a remote directory.
func (s *Session) ListDir(ctx context.Context, remotePath string) ([]FileEntry, error) {
	var entries []FileEntry

	err := s.withFiles(func(ft FileTransfer) error {
		var err error
		entries, err = ft.ListDir(ctx, remotePath)

		return err
	})

	return entries, err
}

// Disconnect closes the connection and returns the session to Disconnected.
// It waits for any in-flight operation, never fails and is idempotent.
func (s *Session) Disconnect() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stopKeepalive()

	s.stateMu.Lock()
	conn := s.conn
	s.conn = nil
	s.stateMu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing connection")
		}
	}

	if s.State() != StateDisconnected {
		s.setState(StateDisconnected, nil)
		s.logger.Info().Msg("disconnected")
	}
}

func (s *Session) withFiles(fn func(FileTransfer) error) error {
	if err := s.requireConnected(); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	conn, err := s.liveConn()
	if err != nil {
		return err
	}

	ft, ok := conn.(FileTransfer)
	if !ok {
		return fmt.Errorf("file transfer on session %s: %w", s.id, ErrNotSupported)
	}

	defer s.touch()

	if err := fn(ft); err != nil {
		return &TransportError{SessionID: s.id, Err: err}
	}

	return nil
}

// requireConnected is the eager precondition check. It performs no I/O.
func (s *Session) requireConnected() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if !s.state.IsLive() {
		return &NotConnectedError{SessionID: s.id, State: s.state}
	}

	return nil
}

// liveConn re-checks the state once opMu is held. Callers must hold opMu.
func (s *Session) liveConn() (Conn, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if s.state != StateConnected || s.conn == nil {
		return nil, &NotConnectedError{SessionID: s.id, State: s.state}
	}

	return s.conn, nil
}

// beginCommand moves Connected to Executing. Callers must hold opMu.
func (s *Session) beginCommand() (Conn, error) {
	conn, err := s.liveConn()
	if err != nil {
		return nil, err
	}

	s.setState(StateExecuting, nil)

	return conn, nil
}

// endCommand moves Executing back to Connected. Callers must hold opMu.
func (s *Session) endCommand() {
	s.stateMu.Lock()
	s.commandCount++
	s.lastActivity = time.Now()
	s.stateMu.Unlock()

	if s.State() == StateExecuting {
		s.setState(StateConnected, nil)
	}
}

func (s *Session) touch() {
	s.stateMu.Lock()
	s.lastActivity = time.Now()
	s.stateMu.Unlock()
}

// checkConnection pings conn after a transport failure and marks the session
// lost if the peer no longer answers. Callers must hold opMu.
func (s *Session) checkConnection(conn Conn, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if err := conn.Keepalive(ctx); err != nil {
		s.markLost(fmt.Errorf("%w (keepalive: %w)", cause, err))
	}
}

// markLost drops a dead connection and moves the session to Error.
// Callers must hold opMu.
func (s *Session) markLost(cause error) {
	s.stateMu.Lock()
	conn := s.conn
	s.conn = nil
	s.stateMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	s.setState(StateError, fmt.Errorf("connection lost: %w", cause))
	s.logger.Warn().Err(cause).Msg("connection lost")
}

func (s *Session) setState(to State, cause error) {
	s.stateMu.Lock()

	from := s.state
	s.state = to

	if cause != nil {
		s.lastErr = cause
	}

	s.transitions = append(s.transitions, StateTransition{From: from, To: to, At: time.Now()})
	if len(s.transitions) > maxTransitions {
		s.transitions = s.transitions[len(s.transitions)-maxTransitions:]
	}

	cb := s.onState
	s.stateMu.Unlock()

	s.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state change")

	if cb != nil && from != to {
		cb(s.id, from, to)
	}
}

func (s *Session) connectionError(err error) *ConnectionError {
	return &ConnectionError{Host: s.cfg.Host, Port: s.cfg.Port, SessionID: s.id, Err: err}
}

func buildLine(command string, opts []ExecOption) string {
	var cfg ExecConfig
	for _, o := range opts {
		o(&cfg)
	}

	return BuildCommandLine(command, cfg)
}

func fileConfig(opts []FileOption) FileConfig {
	cfg := DefaultFileConfig()
	for _, o := range opts {
		o(&cfg)
	}

	return cfg
}

func decodeOutput(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
