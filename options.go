package sshmcp

import (
	"os"
	"time"
)

// ConfigOption defines a functional option for NewConnectionConfig.
type ConfigOption func(*ConnectionConfig)

// WithPort sets the SSH port.
func WithPort(port int) ConfigOption {
	return func(c *ConnectionConfig) {
		c.Port = port
	}
}

// WithPassword selects password authentication.
func WithPassword(password string) ConfigOption {
	return func(c *ConnectionConfig) {
		c.AuthMethod = AuthPassword
		c.Password = password
	}
}

// WithPrivateKey selects key authentication using the key file at path.
// passphrase may be empty for unencrypted keys.
func WithPrivateKey(path, passphrase string) ConfigOption {
	return func(c *ConnectionConfig) {
		c.AuthMethod = AuthPrivateKey
		c.PrivateKeyPath = path
		c.Passphrase = passphrase
	}
}

// WithAgent selects SSH agent authentication.
func WithAgent() ConfigOption {
	return func(c *ConnectionConfig) {
		c.AuthMethod = AuthAgent
	}
}

// WithAuthMethod sets the auth method without touching credentials.
func WithAuthMethod(method AuthMethod) ConfigOption {
	return func(c *ConnectionConfig) {
		c.AuthMethod = method
	}
}

// WithTimeout sets the connect timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *ConnectionConfig) {
		c.Timeout = d
	}
}

// WithKeepaliveInterval sets how often an idle connection is pinged.
// Zero disables keepalive.
func WithKeepaliveInterval(d time.Duration) ConfigOption {
	return func(c *ConnectionConfig) {
		c.KeepaliveInterval = d
	}
}

// WithCompression requests transport compression.
func WithCompression(enabled bool) ConfigOption {
	return func(c *ConnectionConfig) {
		c.Compress = enabled
	}
}

// WithLookForKeys toggles discovery of default identities under ~/.ssh.
func WithLookForKeys(enabled bool) ConfigOption {
	return func(c *ConnectionConfig) {
		c.LookForKeys = enabled
	}
}

// WithAllowAgent toggles agent fallback for key authentication.
func WithAllowAgent(enabled bool) ConfigOption {
	return func(c *ConnectionConfig) {
		c.AllowAgent = enabled
	}
}

// ExecConfig holds configuration derived from ExecOptions.
type ExecConfig struct {
	Env        []string // KEY=VALUE pairs exported before the command
	Dir        string   // Remote working directory
	SudoConfig *SudoConfig
}

// SudoConfig defines privilege escalation options.
type SudoConfig struct {
	User        string   // Target user (-u)
	Group       string   // Target group (-g)
	PreserveEnv bool     // Preserve environment (-E)
	CustomFlags []string // Additional flags
}

// ExecOption defines a functional option for command execution.
type ExecOption func(*ExecConfig)

// SudoOption defines a functional option for sudo configuration.
type SudoOption func(*SudoConfig)

// WithEnv exports key=value for the command.
func WithEnv(key, value string) ExecOption {
	return func(c *ExecConfig) {
		c.Env = append(c.Env, key+"="+value)
	}
}

// WithDir runs the command from dir.
func WithDir(dir string) ExecOption {
	return func(c *ExecConfig) {
		c.Dir = dir
	}
}

// WithSudo wraps the command in non-interactive sudo.
func WithSudo(opts ...SudoOption) ExecOption {
	return func(c *ExecConfig) {
		if c.SudoConfig == nil {
			c.SudoConfig = &SudoConfig{}
		}

		for _, o := range opts {
			o(c.SudoConfig)
		}
	}
}

// WithSudoUser sets the target user.
func WithSudoUser(user string) SudoOption {
	return func(s *SudoConfig) {
		s.User = user
	}
}

// WithSudoGroup sets the target group.
func WithSudoGroup(group string) SudoOption {
	return func(s *SudoConfig) {
		s.Group = group
	}
}

// WithSudoPreserveEnv preserves the environment.
func WithSudoPreserveEnv() SudoOption {
	return func(s *SudoConfig) {
		s.PreserveEnv = true
	}
}

// FileConfig holds configuration for file transfers.
type FileConfig struct {
	Permissions os.FileMode // Destination mode override (0 preserves the source mode)
	Recursive   bool        // Allow directory transfers
	Progress    ProgressFunc
}

// DefaultFileConfig returns defaults.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Recursive: true,
	}
}

// FileOption defines a functional option for file transfers.
type FileOption func(*FileConfig)

// WithPermissions forces a specific destination file mode.
func WithPermissions(mode os.FileMode) FileOption {
	return func(c *FileConfig) {
		c.Permissions = mode
	}
}

// WithRecursive enables or disables directory transfers.
func WithRecursive(enabled bool) FileOption {
	return func(c *FileConfig) {
		c.Recursive = enabled
	}
}

// ProgressFunc is a callback for tracking file transfer progress.
type ProgressFunc func(current, total int64)

// WithProgress calls fn with progress updates.
func WithProgress(fn ProgressFunc) FileOption {
	return func(c *FileConfig) {
		c.Progress = fn
	}
}
