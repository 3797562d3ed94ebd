package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruffel/sshmcp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const agentDialTimeout = 500 * time.Millisecond

// defaultIdentities are tried in order when LookForKeys is set and no key
// path is configured.
var defaultIdentities = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// authSet is the list of auth methods for one dial plus anything that must
// be released once the handshake completes.
type authSet struct {
	methods []ssh.AuthMethod
	closers []io.Closer
}

func (a *authSet) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// buildAuth selects credentials by cfg.AuthMethod. Credentials belonging to
// other methods are ignored.
func (t *Transport) buildAuth(ctx context.Context, cfg sshmcp.ConnectionConfig) (*authSet, error) {
	set := &authSet{}

	switch cfg.AuthMethod {
	case sshmcp.AuthPassword:
		if cfg.Password == "" {
			return nil, errors.New("password authentication selected but no password given")
		}

		set.methods = append(set.methods,
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(passwordChallenge(cfg.Password)),
		)

	case sshmcp.AuthPrivateKey:
		signers, err := t.keySigners(cfg)
		if err != nil {
			return nil, err
		}

		if len(signers) > 0 {
			set.methods = append(set.methods, ssh.PublicKeys(signers...))
		}

		if cfg.AllowAgent {
			if m := t.agentAuth(ctx, set); m != nil {
				set.methods = append(set.methods, m)
			}
		}

		if len(set.methods) == 0 {
			return nil, errors.New("key authentication selected but no usable key was found")
		}

	case sshmcp.AuthAgent:
		m := t.agentAuth(ctx, set)
		if m == nil {
			return nil, errors.New("agent authentication selected but no SSH agent is reachable")
		}

		set.methods = append(set.methods, m)

	default:
		return nil, fmt.Errorf("unsupported auth method %q", cfg.AuthMethod)
	}

	if cfg.Password != "" && cfg.AuthMethod != sshmcp.AuthPassword {
		t.opts.logger.Debug().Str("auth_method", string(cfg.AuthMethod)).Msg("ignoring password for non-password auth method")
	}

	return set, nil
}

// keySigners loads the configured key, or the default identities when
// LookForKeys is set and no path was given.
func (t *Transport) keySigners(cfg sshmcp.ConnectionConfig) ([]ssh.Signer, error) {
	if cfg.PrivateKeyPath != "" {
		signer, err := loadSigner(expandHome(cfg.PrivateKeyPath, t.homeDir()), cfg.Passphrase)
		if err != nil {
			return nil, err
		}

		return []ssh.Signer{signer}, nil
	}

	if !cfg.LookForKeys {
		return nil, nil
	}

	var signers []ssh.Signer

	for _, name := range defaultIdentities {
		path := filepath.Join(t.homeDir(), ".ssh", name)

		signer, err := loadSigner(path, cfg.Passphrase)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				t.opts.logger.Debug().Err(err).Str("key", path).Msg("skipping identity")
			}

			continue
		}

		signers = append(signers, signer)
	}

	return signers, nil
}

// loadSigner reads and parses a private key file, decrypting it with
// passphrase when the key is encrypted.
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if passphrase == "" {
			return nil, fmt.Errorf("private key %s is encrypted and no passphrase was given", path)
		}

		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse private key file %s: %w", path, err)
	}

	return signer, nil
}

// agentAuth connects to the SSH agent. It returns nil if the socket is
// unset or unreachable. The agent connection is registered on set so it is
// closed after the handshake.
func (t *Transport) agentAuth(ctx context.Context, set *authSet) ssh.AuthMethod {
	socket := t.opts.agentSocket
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}

	if socket == "" {
		return nil
	}

	conn, err := (&net.Dialer{Timeout: agentDialTimeout}).DialContext(ctx, "unix", socket)
	if err != nil {
		t.opts.logger.Debug().Err(err).Msg("ssh agent unreachable")

		return nil
	}

	set.closers = append(set.closers, conn)

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}

// passwordChallenge answers keyboard-interactive prompts with the password.
// Many servers only offer keyboard-interactive for password logins.
func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}

		return answers, nil
	}
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}

	return path
}
