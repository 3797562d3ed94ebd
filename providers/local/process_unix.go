//go:build !windows

package local

import (
	"os/exec"
	"syscall"
)

const defaultShell = "/bin/sh"

// killProcessGroup kills the process group with the given PID.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// setProcessGroup puts the command in its own process group so that the
// whole tree can be killed on cancellation.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// shellArgs returns the argv that runs line through shell.
func shellArgs(shell, line string) []string {
	return []string{shell, "-c", line}
}
