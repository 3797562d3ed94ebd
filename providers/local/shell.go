//go:build !windows

package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/ruffel/sshmcp"
)

// Shell starts an interactive shell on a new pseudo-terminal. The shell
// outlives ctx; close the returned channel to end it.
func (c *Conn) Shell(ctx context.Context, req sshmcp.PtyRequest) (sshmcp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := c.acquire(); err != nil {
		return nil, err
	}

	cmd := exec.Command(c.cfg.shell)
	cmd.Env = append(os.Environ(), "TERM="+req.Term)

	f, err := pty.StartWithSize(cmd, winsize(req.Width, req.Height))
	if err != nil {
		c.release()

		return nil, fmt.Errorf("start shell on pty: %w", err)
	}

	ch := &ptyChannel{
		conn: c,
		cmd:  cmd,
		pty:  f,
		done: make(chan struct{}),
	}

	go ch.wait()

	return ch, nil
}

// ptyChannel implements sshmcp.Channel over a local pseudo-terminal.
type ptyChannel struct {
	conn *Conn
	cmd  *exec.Cmd
	pty  *os.File

	done      chan struct{}
	err       error
	closeOnce sync.Once
}

func (p *ptyChannel) Read(b []byte) (int, error) {
	return p.pty.Read(b)
}

func (p *ptyChannel) Write(b []byte) (int, error) {
	return p.pty.Write(b)
}

func (p *ptyChannel) Resize(width, height int) error {
	return pty.Setsize(p.pty, winsize(width, height))
}

func (p *ptyChannel) Wait() error {
	<-p.done

	return p.err
}

// Close kills the shell if it is still running and releases the terminal.
func (p *ptyChannel) Close() error {
	p.closeOnce.Do(func() {
		select {
		case <-p.done:
		default:
			// The shell leads its own session, so the group id equals its pid.
			_ = killProcessGroup(p.cmd.Process.Pid)
			<-p.done
		}

		_ = p.pty.Close()
	})

	return nil
}

func (p *ptyChannel) wait() {
	defer p.conn.release()

	p.err = p.cmd.Wait()
	close(p.done)
}

func winsize(width, height int) *pty.Winsize {
	return &pty.Winsize{
		Cols: uint16(width),  //nolint:gosec // Terminal sizes fit in uint16.
		Rows: uint16(height), //nolint:gosec // Terminal sizes fit in uint16.
	}
}
