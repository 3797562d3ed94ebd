//go:build integration

package ssh_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/providers/ssh"
	"github.com/ruffel/sshmcp/sessiontest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	gossh "golang.org/x/crypto/ssh"
)

const (
	sshTestImage = "lscr.io/linuxserver/openssh-server:latest"
	sshTestUser  = "testuser"
)

func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg, remoteDir := setupSSHTarget(t)

	t.Logf("Connecting to %s...", cfg)

	sessiontest.Verify(t, sessiontest.Target{
		Transport: ssh.New(ssh.WithHostKeyPolicy(ssh.Insecure)),
		Config:    cfg,
		RemoteDir: remoteDir,
	})
}

// setupSSHTarget uses SSH_TEST_HOST when set and otherwise starts an
// openssh-server container.
func setupSSHTarget(t *testing.T) (sshmcp.ConnectionConfig, string) {
	t.Helper()

	if host := os.Getenv("SSH_TEST_HOST"); host != "" {
		port, _ := strconv.Atoi(os.Getenv("SSH_TEST_PORT"))
		if port == 0 {
			port = sshmcp.DefaultPort
		}

		opts := []sshmcp.ConfigOption{
			sshmcp.WithPort(port),
			sshmcp.WithTimeout(5 * time.Second),
			sshmcp.WithKeepaliveInterval(0),
		}

		if pass := os.Getenv("SSH_TEST_PASS"); pass != "" {
			opts = append(opts, sshmcp.WithPassword(pass))
		} else {
			opts = append(opts, sshmcp.WithPrivateKey(os.Getenv("SSH_TEST_KEY_PATH"), ""))
		}

		cfg, err := sshmcp.NewConnectionConfig(host, os.Getenv("SSH_TEST_USER"), opts...)
		require.NoError(t, err)

		return cfg, "/tmp"
	}

	ctx := context.Background()

	keyPath, authorizedKey := generateClientKey(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        sshTestImage,
			ExposedPorts: []string{"2222/tcp"},
			Env: map[string]string{
				"PUID":            "1000",
				"PGID":            "1000",
				"USER_NAME":       sshTestUser,
				"PUBLIC_KEY":      authorizedKey,
				"SUDO_ACCESS":     "true",
				"PASSWORD_ACCESS": "false",
			},
			WaitingFor: wait.ForListeningPort("2222/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start openssh container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "2222/tcp")
	require.NoError(t, err)

	cfg, err := sshmcp.NewConnectionConfig(host, sshTestUser,
		sshmcp.WithPort(port.Int()),
		sshmcp.WithPrivateKey(keyPath, ""),
		sshmcp.WithAllowAgent(false),
		sshmcp.WithTimeout(10*time.Second),
		sshmcp.WithKeepaliveInterval(0),
	)
	require.NoError(t, err)

	// The port opens before sshd finishes generating host keys.
	require.Eventually(t, func() bool {
		s, err := sshmcp.NewSession(cfg, ssh.New(ssh.WithHostKeyPolicy(ssh.Insecure)))
		if err != nil {
			return false
		}

		defer s.Disconnect()

		_, err = s.Connect(ctx)

		return err == nil
	}, 30*time.Second, time.Second)

	return cfg, "/config"
}

func generateClientKey(t *testing.T) (path, authorized string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := gossh.MarshalPrivateKey(priv, "sshmcp-integration")
	require.NoError(t, err)

	sshPub, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)

	path = filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	return path, string(gossh.MarshalAuthorizedKey(sshPub))
}
