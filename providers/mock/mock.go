package mock

import (
	"context"
	"io"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/mock"
)

// Transport implements a mock sshmcp.Transport using testify/mock.
type Transport struct {
	mock.Mock
}

var _ sshmcp.Transport = (*Transport)(nil)

// New creates a new mock transport.
func New() *Transport {
	return &Transport{}
}

// Dial mocks opening a connection.
func (m *Transport) Dial(ctx context.Context, cfg sshmcp.ConnectionConfig) (sshmcp.Conn, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(sshmcp.Conn), args.Error(1)
}

// Conn implements a mock sshmcp.Conn using testify/mock.
type Conn struct {
	mock.Mock
}

var _ sshmcp.Conn = (*Conn)(nil)

// Exec mocks running a command.
func (m *Conn) Exec(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	args := m.Called(ctx, command, stdout, stderr)

	return args.Int(0), args.Error(1)
}

// Shell mocks opening an interactive channel.
func (m *Conn) Shell(ctx context.Context, pty sshmcp.PtyRequest) (sshmcp.Channel, error) {
	args := m.Called(ctx, pty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(sshmcp.Channel), args.Error(1)
}

// Keepalive mocks a liveness check.
func (m *Conn) Keepalive(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// Close mocks closing the connection.
func (m *Conn) Close() error {
	args := m.Called()

	return args.Error(0)
}

// FileConn is a mock Conn that also implements sshmcp.FileTransfer.
type FileConn struct {
	Conn
}

var _ sshmcp.FileTransfer = (*FileConn)(nil)

// Upload mocks uploading a file.
func (m *FileConn) Upload(ctx context.Context, localPath, remotePath string, cfg sshmcp.FileConfig) error {
	args := m.Called(ctx, localPath, remotePath, cfg)

	return args.Error(0)
}

// Download mocks downloading a file.
func (m *FileConn) Download(ctx context.Context, remotePath, localPath string, cfg sshmcp.FileConfig) error {
	args := m.Called(ctx, remotePath, localPath, cfg)

	return args.Error(0)
}

// ListDir mocks listing a remote directory.
func (m *FileConn) ListDir(ctx context.Context, remotePath string) ([]sshmcp.FileEntry, error) {
	args := m.Called(ctx, remotePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]sshmcp.FileEntry), args.Error(1)
}

// Channel implements a mock sshmcp.Channel using testify/mock.
type Channel struct {
	mock.Mock
}

var _ sshmcp.Channel = (*Channel)(nil)

// Read mocks reading from the channel.
func (m *Channel) Read(p []byte) (int, error) {
	args := m.Called(p)

	return args.Int(0), args.Error(1)
}

// Write mocks writing to the channel.
func (m *Channel) Write(p []byte) (int, error) {
	args := m.Called(p)

	return args.Int(0), args.Error(1)
}

// Resize mocks a window change.
func (m *Channel) Resize(width, height int) error {
	args := m.Called(width, height)

	return args.Error(0)
}

// Wait mocks waiting for the shell to exit.
func (m *Channel) Wait() error {
	args := m.Called()

	return args.Error(0)
}

// Close mocks closing the channel.
func (m *Channel) Close() error {
	args := m.Called()

	return args.Error(0)
}

// WriteOutput is a helper to simulate command output for mocked Exec calls.
// It writes stdout and stderr to the writers passed as Exec arguments 2 and 3.
// Usage: conn.On("Exec", ...).Run(WriteOutput("out", "")).Return(0, nil).
func WriteOutput(stdout, stderr string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		if w, ok := args.Get(2).(io.Writer); ok && w != nil && stdout != "" {
			_, _ = io.WriteString(w, stdout)
		}

		if w, ok := args.Get(3).(io.Writer); ok && w != nil && stderr != "" {
			_, _ = io.WriteString(w, stderr)
		}
	}
}
