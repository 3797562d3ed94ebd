package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruffel/sshmcp"
	"golang.org/x/crypto/ssh"
)

var (
	_ sshmcp.Transport    = (*Transport)(nil)
	_ sshmcp.Conn         = (*Conn)(nil)
	_ sshmcp.FileTransfer = (*Conn)(nil)
)

// Transport implements sshmcp.Transport over golang.org/x/crypto/ssh.
type Transport struct {
	opts options
}

// New creates an SSH transport. By default host keys are checked against
// ~/.ssh/known_hosts and unknown hosts are recorded on first use.
func New(opts ...Option) *Transport {
	o := options{
		hostKeyPolicy: AcceptNew,
		logger:        zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Transport{opts: o}
}

// Dial performs the TCP connect, handshake and authentication. The whole
// exchange is bounded by ctx and by cfg.Timeout.
func (t *Transport) Dial(ctx context.Context, cfg sshmcp.ConnectionConfig) (sshmcp.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hostKey, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	auth, err := t.buildAuth(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer auth.Close()

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth.methods,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
		ClientVersion:   t.opts.clientVersion,
	}

	if cfg.Compress {
		t.opts.logger.Debug().Msg("compression requested but not supported, continuing without it")
	}

	addr := cfg.Address()

	netConn, err := (&net.Dialer{Timeout: cfg.Timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = netConn.SetDeadline(deadline)

	// The handshake has no context of its own; closing the socket aborts it.
	stop := context.AfterFunc(ctx, func() { _ = netConn.Close() })

	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, clientCfg)
	if !stop() {
		if err == nil {
			_ = c.Close()
		}

		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, ctx.Err())
	}

	if err != nil {
		_ = netConn.Close()

		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	_ = netConn.SetDeadline(time.Time{})

	t.opts.logger.Debug().
		Str("endpoint", cfg.String()).
		Str("server_version", string(c.ServerVersion())).
		Msg("ssh connection established")

	return newConn(ssh.NewClient(c, chans, reqs), addr, t.opts.logger), nil
}

func (t *Transport) homeDir() string {
	if t.opts.homeDir != "" {
		return t.opts.homeDir
	}

	if home, err := os.UserHomeDir(); err == nil {
		return home
	}

	return "."
}

func (t *Transport) knownHostsPath() string {
	if t.opts.knownHostsPath != "" {
		return expandHome(t.opts.knownHostsPath, t.homeDir())
	}

	return filepath.Join(t.homeDir(), ".ssh", "known_hosts")
}
