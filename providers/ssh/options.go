package ssh

import (
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// options holds Transport-wide settings that are not part of a
// sshmcp.ConnectionConfig.
type options struct {
	hostKeyCallback ssh.HostKeyCallback
	hostKeyPolicy   HostKeyPolicy
	knownHostsPath  string
	homeDir         string
	agentSocket     string
	clientVersion   string
	logger          zerolog.Logger
}

// Option defines a functional option for the SSH transport.
type Option func(*options)

// HostKeyPolicy decides how unknown or changed host keys are handled.
type HostKeyPolicy int

const (
	// AcceptNew trusts and records keys for hosts not yet in known_hosts and
	// rejects changed keys (OpenSSH StrictHostKeyChecking=accept-new).
	AcceptNew HostKeyPolicy = iota
	// Strict rejects any host not already in known_hosts.
	Strict
	// Insecure accepts every host key. Use ONLY for testing.
	Insecure
)

// WithHostKeyPolicy selects how host keys are verified.
func WithHostKeyPolicy(p HostKeyPolicy) Option {
	return func(o *options) {
		o.hostKeyPolicy = p
	}
}

// WithHostKeyCallback overrides host key verification entirely.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(o *options) {
		o.hostKeyCallback = cb
	}
}

// WithKnownHosts sets the known_hosts file. Defaults to ~/.ssh/known_hosts.
func WithKnownHosts(path string) Option {
	return func(o *options) {
		o.knownHostsPath = path
	}
}

// WithHomeDir sets the directory searched for ~/.ssh identities and
// known_hosts. Defaults to the current user's home directory.
func WithHomeDir(dir string) Option {
	return func(o *options) {
		o.homeDir = dir
	}
}

// WithAgentSocket sets the agent socket. Defaults to $SSH_AUTH_SOCK.
func WithAgentSocket(path string) Option {
	return func(o *options) {
		o.agentSocket = path
	}
}

// WithClientVersion sets the SSH identification string sent to servers.
func WithClientVersion(v string) Option {
	return func(o *options) {
		o.clientVersion = v
	}
}

// WithLogger sets the transport logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
