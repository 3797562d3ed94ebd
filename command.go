package sshmcp

import (
	"fmt"
	"strings"
)

// BuildCommandLine renders command with the environment, working directory and
// sudo settings from cfg applied. The result is a single POSIX shell line.
//
// Environment variables are exported inline because OpenSSH servers default to
// PermitUserEnvironment=no, which makes session Setenv requests fail.
func BuildCommandLine(command string, cfg ExecConfig) string {
	line := command
	if cfg.SudoConfig != nil {
		line = buildSudo(line, cfg.SudoConfig)
	}

	return buildEnvPrefix(cfg.Env) + buildDirPrefix(cfg.Dir) + line
}

// ShellQuote wraps s in single quotes, escaping embedded single quotes.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// JoinArgs quotes each argument that needs it and joins them with spaces.
func JoinArgs(args []string) string {
	quoted := make([]string, len(args))

	for i, a := range args {
		if a != "" && !strings.ContainsAny(a, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
			quoted[i] = a

			continue
		}

		quoted[i] = ShellQuote(a)
	}

	return strings.Join(quoted, " ")
}

func buildEnvPrefix(envVars []string) string {
	var b strings.Builder

	for _, env := range envVars {
		k, v, found := strings.Cut(env, "=")
		if !found || !validEnvName(k) {
			continue
		}

		fmt.Fprintf(&b, "export %s=%s; ", k, ShellQuote(v))
	}

	return b.String()
}

// validEnvName reports whether k is a POSIX shell variable name. Anything
// else would be spliced into the command line unquoted.
func validEnvName(k string) bool {
	if k == "" {
		return false
	}

	for i, r := range k {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

func buildDirPrefix(dir string) string {
	if dir == "" {
		return ""
	}

	return fmt.Sprintf("cd %s && ", ShellQuote(dir))
}

// buildSudo runs the line through sh -c under sudo -n so that pipes and
// redirections are evaluated with the elevated privileges.
func buildSudo(line string, s *SudoConfig) string {
	args := []string{"sudo", "-n"}

	if s.User != "" {
		args = append(args, "-u", ShellQuote(s.User))
	}

	if s.Group != "" {
		args = append(args, "-g", ShellQuote(s.Group))
	}

	if s.PreserveEnv {
		args = append(args, "-E")
	}

	for _, f := range s.CustomFlags {
		args = append(args, ShellQuote(f))
	}

	args = append(args, "--", "sh", "-c", ShellQuote(line))

	return strings.Join(args, " ")
}
