package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("ssh connection is closed")

// killGrace bounds how long Exec waits for the remote side to acknowledge a
// kill before returning.
const killGrace = 5 * time.Second

// signalStatus maps exit-signal names to the conventional 128+n status a
// POSIX shell would report.
var signalStatus = map[ssh.Signal]int{
	ssh.SIGHUP:  129,
	ssh.SIGINT:  130,
	ssh.SIGQUIT: 131,
	ssh.SIGABRT: 134,
	ssh.SIGKILL: 137,
	ssh.SIGSEGV: 139,
	ssh.SIGPIPE: 141,
	ssh.SIGALRM: 142,
	ssh.SIGTERM: 143,
}

// Conn is an authenticated SSH connection. Each Exec or Shell opens its own
// channel; Conn itself is safe for concurrent use.
type Conn struct {
	client *ssh.Client
	addr   string
	logger zerolog.Logger

	sftpMu sync.Mutex
	sftp   *sftp.Client

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newConn(client *ssh.Client, addr string, logger zerolog.Logger) *Conn {
	return &Conn{
		client: client,
		addr:   addr,
		logger: logger,
		closed: make(chan struct{}),
	}
}

// Exec runs command on a new session channel. A non-zero exit is reported
// through the returned status, not as an error. Cancelling ctx sends SIGKILL
// and tears the channel down.
func (c *Conn) Exec(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	if c.isClosed() {
		return -1, ErrClosed
	}

	sess, err := c.client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("open session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	sess.Stdout = stdout
	sess.Stderr = stderr

	if err := sess.Start(command); err != nil {
		return -1, fmt.Errorf("start command: %w", err)
	}

	done := make(chan error, 1)

	go func() {
		done <- sess.Wait()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()

		select {
		case <-done:
		case <-time.After(killGrace):
			c.logger.Warn().Str("addr", c.addr).Msg("remote command did not exit after kill")
		}

		return -1, ctx.Err()
	}

	return exitStatus(err)
}

func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		if sig := exitErr.Signal(); sig != "" {
			if status, ok := signalStatus[ssh.Signal(sig)]; ok {
				return status, nil
			}

			return 128, nil
		}

		return exitErr.ExitStatus(), nil
	}

	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return -1, fmt.Errorf("command ended without an exit status: %w", err)
	}

	return -1, fmt.Errorf("wait for command: %w", err)
}

// Keepalive sends a keepalive@openssh.com global request and waits for the
// reply or ctx.
func (c *Conn) Keepalive(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	errCh := make(chan error, 1)

	go func() {
		_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("keepalive: %w", err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("keepalive: %w", ctx.Err())
	}
}

// Close closes the SFTP client, if one was opened, and the SSH connection.
// Close is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.sftpMu.Lock()
		if c.sftp != nil {
			_ = c.sftp.Close()
			c.sftp = nil
		}
		c.sftpMu.Unlock()

		c.closeErr = c.client.Close()
	})

	return c.closeErr
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// sftpClient returns the connection's SFTP client, starting the subsystem
// on first use.
func (c *Conn) sftpClient() (*sftp.Client, error) {
	c.sftpMu.Lock()
	defer c.sftpMu.Unlock()

	if c.isClosed() {
		return nil, ErrClosed
	}

	if c.sftp != nil {
		return c.sftp, nil
	}

	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	c.sftp = client

	return client, nil
}
