//go:build !windows

package sshtest

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// channelSession tracks the state of one "session" channel.
type channelSession struct {
	srv *Server
	ch  ssh.Channel

	mu     sync.Mutex
	env    []string
	pty    *ptyRequest
	tty    *os.File
	proc   *os.Process
	exited bool
}

type ptyRequest struct {
	Term    string
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
	Modes   string
}

type windowChange struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

type exitStatusMsg struct {
	Status uint32
}

type exitSignalMsg struct {
	Signal     string
	CoreDumped bool
	Error      string
	Lang       string
}

func (s *Server) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	cs := &channelSession{srv: s, ch: ch}

	for req := range requests {
		ok := cs.handle(req)
		if req.WantReply {
			_ = req.Reply(ok, nil)
		}
	}

	cs.kill()
}

func (cs *channelSession) handle(req *ssh.Request) bool {
	switch req.Type {
	case "env":
		var kv struct{ Name, Value string }
		if ssh.Unmarshal(req.Payload, &kv) != nil {
			return false
		}

		cs.mu.Lock()
		cs.env = append(cs.env, kv.Name+"="+kv.Value)
		cs.mu.Unlock()

		return true

	case "pty-req":
		var p ptyRequest
		if ssh.Unmarshal(req.Payload, &p) != nil {
			return false
		}

		cs.mu.Lock()
		cs.pty = &p
		cs.mu.Unlock()

		return true

	case "window-change":
		var w windowChange
		if ssh.Unmarshal(req.Payload, &w) != nil {
			return false
		}

		cs.resize(w.Columns, w.Rows)

		return true

	case "exec":
		var payload struct{ Command string }
		if ssh.Unmarshal(req.Payload, &payload) != nil {
			return false
		}

		cs.srv.recordCommand(payload.Command)

		return cs.start(exec.Command(cs.srv.shell, "-c", payload.Command), false)

	case "shell":
		return cs.start(exec.Command(cs.srv.shell), true)

	case "subsystem":
		var payload struct{ Name string }
		if ssh.Unmarshal(req.Payload, &payload) != nil || payload.Name != "sftp" {
			return false
		}

		go cs.serveSFTP()

		return true

	case "signal":
		cs.kill()

		return true

	default:
		return false
	}
}

// start launches cmd and streams its output to the channel. Shell requests
// run on the PTY requested earlier, if any.
func (cs *channelSession) start(cmd *exec.Cmd, interactive bool) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.proc != nil {
		return false
	}

	cmd.Dir = cs.srv.workDir
	cmd.Env = append(os.Environ(), cs.env...)

	if interactive && cs.pty != nil {
		cmd.Env = append(cmd.Env, "TERM="+cs.pty.Term)

		tty, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(cs.pty.Rows), Cols: uint16(cs.pty.Columns)})
		if err != nil {
			return false
		}

		cs.tty = tty
		cs.proc = cmd.Process

		go func() { _, _ = io.Copy(tty, cs.ch) }()
		go cs.wait(cmd, func() {
			_, _ = io.Copy(cs.ch, tty)
			_ = tty.Close()
		})

		return true
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = cs.ch
	cmd.Stderr = cs.ch.Stderr()

	if interactive {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return false
		}

		go func() {
			_, _ = io.Copy(stdin, cs.ch)
			_ = stdin.Close()
		}()
	}

	if err := cmd.Start(); err != nil {
		return false
	}

	cs.proc = cmd.Process

	go cs.wait(cmd, nil)

	return true
}

// wait reports the exit of cmd to the client and closes the channel. drain,
// when set, copies remaining PTY output before the status is sent.
func (cs *channelSession) wait(cmd *exec.Cmd, drain func()) {
	drained := make(chan struct{})

	if drain != nil {
		go func() {
			drain()
			close(drained)
		}()
	} else {
		close(drained)
	}

	err := cmd.Wait()

	cs.mu.Lock()
	cs.exited = true
	cs.mu.Unlock()

	if cs.tty != nil {
		// Reading the master returns EIO once the child side is gone.
		<-drained
	}

	var exitErr *exec.ExitError

	switch {
	case err == nil:
		_, _ = cs.ch.SendRequest("exit-status", false, ssh.Marshal(exitStatusMsg{Status: 0}))
	case errors.As(err, &exitErr):
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			_, _ = cs.ch.SendRequest("exit-signal", false, ssh.Marshal(exitSignalMsg{Signal: signalName(ws.Signal())}))
		} else {
			_, _ = cs.ch.SendRequest("exit-status", false, ssh.Marshal(exitStatusMsg{Status: uint32(exitErr.ExitCode())}))
		}
	default:
		_, _ = cs.ch.SendRequest("exit-status", false, ssh.Marshal(exitStatusMsg{Status: 255}))
	}

	_ = cs.ch.CloseWrite()
	_ = cs.ch.Close()
}

func (cs *channelSession) resize(cols, rows uint32) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.tty != nil {
		_ = pty.Setsize(cs.tty, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	}
}

// kill terminates the process group started for this channel.
func (cs *channelSession) kill() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.proc != nil && !cs.exited {
		_ = syscall.Kill(-cs.proc.Pid, syscall.SIGKILL)
	}
}

func (cs *channelSession) serveSFTP() {
	var opts []sftp.ServerOption
	if cs.srv.workDir != "" {
		opts = append(opts, sftp.WithServerWorkingDirectory(cs.srv.workDir))
	}

	server, err := sftp.NewServer(cs.ch, opts...)
	if err != nil {
		_ = cs.ch.Close()

		return
	}

	_ = server.Serve()
	_ = server.Close()
}

func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return string(ssh.SIGKILL)
	case syscall.SIGTERM:
		return string(ssh.SIGTERM)
	case syscall.SIGINT:
		return string(ssh.SIGINT)
	case syscall.SIGHUP:
		return string(ssh.SIGHUP)
	default:
		return string(ssh.SIGKILL)
	}
}
