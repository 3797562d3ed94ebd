package ssh

import (
	"context"
	"fmt"
	"io"

	"github.com/ruffel/sshmcp"
	"golang.org/x/crypto/ssh"
)

var terminalModes = ssh.TerminalModes{
	ssh.ECHO:          1,
	ssh.TTY_OP_ISPEED: 14400,
	ssh.TTY_OP_OSPEED: 14400,
}

// Shell starts an interactive login shell on a PTY.
func (c *Conn) Shell(ctx context.Context, pty sshmcp.PtyRequest) (sshmcp.Channel, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	ch, err := startShell(sess, pty)
	if err != nil {
		_ = sess.Close()

		return nil, err
	}

	return ch, nil
}

func startShell(sess *ssh.Session, pty sshmcp.PtyRequest) (*shellChannel, error) {
	if err := sess.RequestPty(pty.Term, pty.Height, pty.Width, terminalModes); err != nil {
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	// With a PTY the server merges stderr into stdout; anything sent on the
	// extended stream is drained so it cannot stall the channel.
	sess.Stderr = io.Discard

	if err := sess.Shell(); err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}

	return &shellChannel{sess: sess, stdin: stdin, stdout: stdout}, nil
}

// shellChannel adapts an ssh.Session running a shell to sshmcp.Channel.
type shellChannel struct {
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
}

func (s *shellChannel) Read(p []byte) (int, error)  { return s.stdout.Read(p) }
func (s *shellChannel) Write(p []byte) (int, error) { return s.stdin.Write(p) }

// Resize sends a window-change request.
func (s *shellChannel) Resize(width, height int) error {
	return s.sess.WindowChange(height, width)
}

// Wait blocks until the shell exits. A non-zero exit is not an error.
func (s *shellChannel) Wait() error {
	if _, err := exitStatus(s.sess.Wait()); err != nil {
		return err
	}

	return nil
}

func (s *shellChannel) Close() error {
	_ = s.stdin.Close()

	err := s.sess.Close()
	if err == io.EOF {
		return nil
	}

	return err
}
