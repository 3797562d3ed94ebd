// Package local provides an implementation of the sshmcp.Transport interface
// for the local operating system.
//
// It is a thin wrapper around the standard library's "os/exec" and "os"
// packages: commands run through the system shell, interactive shells get a
// pseudo-terminal from github.com/creack/pty, and file transfers are plain
// copies. The ConnectionConfig endpoint is accepted but not used, which makes
// the package a convenient stand-in for a real SSH server in tests and demos.
//
// Usage:
//
//	reg := sshmcp.NewRegistry(local.New())
//	cfg, _ := sshmcp.NewConnectionConfig("localhost", "me")
//	info, _ := reg.CreateSession(ctx, cfg)
package local
