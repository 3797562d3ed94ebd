// Package sshmcp manages concurrent remote command sessions.
//
// # Core Types
//
// - Session: one tracked connection with a state machine (disconnected,
// connecting, connected, executing, error) and a per-session lock that
// serializes connect and command execution.
// - Registry: the concurrency-safe table of live sessions keyed by id.
//
// # Transports
//
// The protocol itself lives behind the Transport interface. The providers/ssh
// package implements it over SSH; providers/local runs commands on the local
// machine and providers/mock is a testify mock for unit tests.
//
// A non-zero exit status is a normal CommandResult, never an error.
package sshmcp

import (
	"context"
	"io"
	"os"
	"time"
)

// Transport establishes connections described by a ConnectionConfig.
type Transport interface {
	// Dial opens and authenticates a connection. It must honor ctx
	// cancellation and the config's Timeout.
	Dial(ctx context.Context, cfg ConnectionConfig) (Conn, error)
}

// Conn is an authenticated connection owned by exactly one Session.
type Conn interface {
	io.Closer

	// Exec runs command to completion, streaming output into stdout and stderr.
	// It returns the remote exit status. A non-zero status is not an error;
	// err is reserved for transport failures and ctx cancellation.
	Exec(ctx context.Context, command string, stdout, stderr io.Writer) (int, error)

	// Shell opens an interactive PTY-backed channel.
	Shell(ctx context.Context, pty PtyRequest) (Channel, error)

	// Keepalive checks the connection. An error means the peer is gone.
	Keepalive(ctx context.Context) error
}

// Channel is a duplex interactive stream returned by Conn.Shell.
type Channel interface {
	io.ReadWriteCloser

	// Resize informs the remote PTY of a new window size.
	Resize(width, height int) error

	// Wait blocks until the remote shell exits.
	Wait() error
}

// FileTransfer is implemented by connections that can move files.
// Sessions return ErrNotSupported when their Conn does not implement it.
type FileTransfer interface {
	// Upload copies a local file or directory to the remote destination,
	// creating any missing parent directories.
	Upload(ctx context.Context, localPath, remotePath string, cfg FileConfig) error

	// Download copies a remote file or directory to the local destination,
	// creating any missing parent directories.
	Download(ctx context.Context, remotePath, localPath string, cfg FileConfig) error

	// ListDir returns the entries of a remote directory.
	ListDir(ctx context.Context, remotePath string) ([]FileEntry, error)
}

// PtyRequest describes the terminal requested for an interactive shell.
type PtyRequest struct {
	Term   string
	Width  int
	Height int
}

// FileEntry is a single remote directory entry.
type FileEntry struct {
	Name    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool
}
