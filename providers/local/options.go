package local

import "time"

// Config holds configuration for the local transport.
type Config struct {
	shell     string
	waitDelay time.Duration
}

// Option defines a functional option for the local provider.
type Option func(*Config)

// WithShell overrides the shell used to interpret command lines.
func WithShell(path string) Option {
	return func(c *Config) {
		c.shell = path
	}
}

// WithWaitDelay bounds how long Exec waits for output pipes to drain after
// a cancelled command has been killed.
func WithWaitDelay(d time.Duration) Option {
	return func(c *Config) {
		c.waitDelay = d
	}
}
