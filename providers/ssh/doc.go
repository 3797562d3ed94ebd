// Package ssh implements sshmcp.Transport over golang.org/x/crypto/ssh.
//
// A Conn multiplexes every command, shell and SFTP request over one
// authenticated TCP connection:
//   - Exec opens a fresh session channel per command and kills it with
//     SIGKILL when the context ends
//   - Shell allocates a PTY and supports window-change requests
//   - Keepalive sends keepalive@openssh.com global requests
//   - Upload, Download and ListDir use a lazily started SFTP subsystem
//
// Credentials are chosen by ConnectionConfig.AuthMethod. Host keys are
// checked against known_hosts; by default unknown hosts are trusted on first
// use and recorded, matching OpenSSH's StrictHostKeyChecking=accept-new.
//
// Usage:
//
//	cfg, err := sshmcp.NewConnectionConfig("example.com", "deploy",
//		sshmcp.WithPrivateKey("~/.ssh/id_ed25519", ""))
//	session, err := sshmcp.NewSession(cfg, ssh.New())
//	_, err = session.Connect(ctx)
package ssh
