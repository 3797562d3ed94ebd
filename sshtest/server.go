//go:build !windows

// Package sshtest runs an in-process SSH server for tests. Commands run
// through the local /bin/sh, shells get a real PTY and the sftp subsystem is
// served from the local filesystem, so the server behaves like a small
// OpenSSH host that shares the test's filesystem.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ruffel/sshmcp"
	"golang.org/x/crypto/ssh"
)

// Default credentials accepted by a Server.
const (
	DefaultUser     = "tester"
	DefaultPassword = "secret"
)

// Server is an in-process SSH server bound to 127.0.0.1.
type Server struct {
	// Host and Port locate the listener.
	Host string
	Port int

	// HostKey is the server's public host key.
	HostKey ssh.PublicKey

	// ClientKeyPath is an unencrypted ed25519 private key the server
	// accepts for User.
	ClientKeyPath string

	User     string
	Password string

	shell   string
	workDir string

	config   *ssh.ServerConfig
	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	conns    map[*ssh.ServerConn]struct{}
	commands []string

	keepalives atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials sets the accepted username and password.
func WithCredentials(user, password string) Option {
	return func(s *Server) {
		s.User = user
		s.Password = password
	}
}

// WithShell sets the shell used for exec and interactive sessions.
func WithShell(path string) Option {
	return func(s *Server) {
		s.shell = path
	}
}

// WithWorkDir sets the directory commands and sftp paths are relative to.
func WithWorkDir(dir string) Option {
	return func(s *Server) {
		s.workDir = dir
	}
}

// Start launches a server and registers its shutdown with t.Cleanup.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		User:     DefaultUser,
		Password: DefaultPassword,
		shell:    "/bin/sh",
		conns:    make(map[*ssh.ServerConn]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	hostSigner, err := newSigner()
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}

	s.HostKey = hostSigner.PublicKey()

	clientKey, err := writeClientKey(t.TempDir())
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}

	s.ClientKeyPath = clientKey.path

	s.config = &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if meta.User() == s.User && string(password) == s.Password {
				return &ssh.Permissions{}, nil
			}

			return nil, errors.New("invalid credentials")
		},
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if meta.User() == s.User && ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(clientKey.public) {
				return &ssh.Permissions{}, nil
			}

			return nil, errors.New("unknown public key")
		},
	}
	s.config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s.listener = listener

	addr := listener.Addr().(*net.TCPAddr)
	s.Host = addr.IP.String()
	s.Port = addr.Port

	s.wg.Add(1)

	go s.serve()

	t.Cleanup(s.Close)

	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// HostKeyCallback accepts only this server's host key.
func (s *Server) HostKeyCallback() ssh.HostKeyCallback {
	return ssh.FixedHostKey(s.HostKey)
}

// PasswordConfig returns a password-auth ConnectionConfig for the server.
// Keepalives are disabled unless opts enable them.
func (s *Server) PasswordConfig(opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error) {
	base := []sshmcp.ConfigOption{
		sshmcp.WithPort(s.Port),
		sshmcp.WithPassword(s.Password),
		sshmcp.WithKeepaliveInterval(0),
	}

	return sshmcp.NewConnectionConfig(s.Host, s.User, append(base, opts...)...)
}

// KeyConfig returns a private-key ConnectionConfig for the server.
func (s *Server) KeyConfig(opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error) {
	base := []sshmcp.ConfigOption{
		sshmcp.WithPort(s.Port),
		sshmcp.WithPrivateKey(s.ClientKeyPath, ""),
		sshmcp.WithAllowAgent(false),
		sshmcp.WithLookForKeys(false),
		sshmcp.WithKeepaliveInterval(0),
	}

	return sshmcp.NewConnectionConfig(s.Host, s.User, append(base, opts...)...)
}

// Commands returns the exec payloads received so far, in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

// Keepalives returns the number of keepalive@openssh.com requests answered.
func (s *Server) Keepalives() int64 {
	return s.keepalives.Load()
}

// DropConnections closes every open client connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*ssh.ServerConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Close stops the listener, drops all connections and waits for the accept
// loop to exit.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			return
		}

		go s.handleConn(netConn)
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		_ = netConn.Close()

		return
	}

	s.mu.Lock()
	s.conns[sshConn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, sshConn)
		s.mu.Unlock()

		_ = sshConn.Close()
	}()

	go s.handleGlobalRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")

			continue
		}

		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}

		go s.handleSession(ch, requests)
	}
}

func (s *Server) handleGlobalRequests(reqs <-chan *ssh.Request) {
	for req := range reqs {
		if req.Type == "keepalive@openssh.com" {
			s.keepalives.Add(1)
			_ = req.Reply(true, nil)

			continue
		}

		if req.WantReply {
			_ = req.Reply(false, nil)
		}
	}
}

func (s *Server) recordCommand(command string) {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()
}

type clientKey struct {
	path   string
	public ssh.PublicKey
}

func newSigner() (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return ssh.NewSignerFromKey(priv)
}

func writeClientKey(dir string) (clientKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return clientKey{}, err
	}

	block, err := ssh.MarshalPrivateKey(priv, "sshtest")
	if err != nil {
		return clientKey{}, err
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return clientKey{}, err
	}

	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return clientKey{}, fmt.Errorf("write client key: %w", err)
	}

	return clientKey{path: path, public: sshPub}, nil
}
