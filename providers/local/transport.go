package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/ruffel/sshmcp"
)

var (
	_ sshmcp.Transport    = (*Transport)(nil)
	_ sshmcp.Conn         = (*Conn)(nil)
	_ sshmcp.FileTransfer = (*Conn)(nil)
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("local connection is closed")

const defaultWaitDelay = time.Second

// Transport implements sshmcp.Transport for the local machine.
type Transport struct {
	cfg Config
}

// New creates a new local transport.
func New(opts ...Option) *Transport {
	cfg := Config{
		shell:     defaultShell,
		waitDelay: defaultWaitDelay,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Transport{cfg: cfg}
}

// Dial returns a new local connection. The endpoint and credentials in cfg
// are not used.
func (t *Transport) Dial(ctx context.Context, _ sshmcp.ConnectionConfig) (sshmcp.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Conn{cfg: t.cfg}, nil
}

// Conn implements sshmcp.Conn by running commands through the local shell.
// Thread-safe wrapper around os/exec.
type Conn struct {
	cfg    Config
	mu     sync.RWMutex
	active int
	closed bool
}

// Exec runs command through the shell and returns its exit status.
// Cancelling ctx kills the whole process group.
func (c *Conn) Exec(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	if err := c.acquire(); err != nil {
		return -1, err
	}
	defer c.release()

	argv := shellArgs(c.cfg.shell, command)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	setProcessGroup(cmd)

	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process.Pid)
	}
	cmd.WaitDelay = c.cfg.waitDelay
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("run %q: %w", command, err)
}

// Keepalive fails only once the connection has been closed.
func (c *Conn) Keepalive(_ context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	return nil
}

// ActiveCommands returns the number of commands currently running.
func (c *Conn) ActiveCommands() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.active
}

// Close marks the connection closed. New operations fail; running commands
// finish normally. Close is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	return nil
}

func (c *Conn) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.active++

	return nil
}

func (c *Conn) release() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}
