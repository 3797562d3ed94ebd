//go:build windows

package local

import (
	"os/exec"
	"strconv"
)

const defaultShell = "cmd.exe"

// killProcessGroup kills the process tree rooted at pid.
//
// TODO(windows): Use Job Objects if we need resource limits or orphan handling.
func killProcessGroup(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

// setProcessGroup is a no-op until Job Objects are used.
func setProcessGroup(_ *exec.Cmd) {}

// shellArgs returns the argv that runs line through shell.
func shellArgs(shell, line string) []string {
	return []string{shell, "/C", line}
}
