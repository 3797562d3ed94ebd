package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// knownHostsMu serializes appends to known_hosts files within the process.
var knownHostsMu sync.Mutex

// hostKeyCallback builds the verifier for one dial according to the
// configured policy.
func (t *Transport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.opts.hostKeyCallback != nil {
		return t.opts.hostKeyCallback, nil
	}

	switch t.opts.hostKeyPolicy {
	case Insecure:
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec

	case Strict:
		cb, err := knownhosts.New(t.knownHostsPath())
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}

		return cb, nil

	default:
		return acceptNew(t.knownHostsPath())
	}
}

// acceptNew verifies against path, recording keys for hosts that have no
// entry yet. A host whose key differs from the recorded one is rejected.
func acceptNew(path string) (ssh.HostKeyCallback, error) {
	if err := ensureFile(path); err != nil {
		return nil, fmt.Errorf("failed to prepare known_hosts: %w", err)
	}

	verify, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		return appendKnownHost(path, hostname, key)
	}, nil
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}

	defer func() { _ = f.Close() }()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}

	return nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return err
	}

	return f.Close()
}
