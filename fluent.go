package sshmcp

import (
	"context"
	"time"
)

// Builder assembles a command from a program and its arguments, quoting
// each argument for the remote shell.
type Builder struct {
	program string
	args    []string
	opts    []ExecOption
	timeout time.Duration
}

// Cmd starts a Builder for program.
func Cmd(program string) *Builder {
	return &Builder{program: program}
}

// Arg adds a single argument.
func (b *Builder) Arg(arg string) *Builder {
	b.args = append(b.args, arg)

	return b
}

// Args adds multiple arguments.
func (b *Builder) Args(args ...string) *Builder {
	b.args = append(b.args, args...)

	return b
}

// Env exports key=value for the command.
func (b *Builder) Env(key, value string) *Builder {
	b.opts = append(b.opts, WithEnv(key, value))

	return b
}

// Dir sets the remote working directory.
func (b *Builder) Dir(dir string) *Builder {
	b.opts = append(b.opts, WithDir(dir))

	return b
}

// Sudo runs the command through non-interactive sudo.
func (b *Builder) Sudo(opts ...SudoOption) *Builder {
	b.opts = append(b.opts, WithSudo(opts...))

	return b
}

// Timeout bounds Run. Zero means DefaultCommandTimeout.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.timeout = d

	return b
}

// String returns the quoted command line without env, dir or sudo wrapping.
func (b *Builder) String() string {
	return JoinArgs(append([]string{b.program}, b.args...))
}

// Options returns the execution options collected so far.
func (b *Builder) Options() []ExecOption {
	return append([]ExecOption(nil), b.opts...)
}

// Run executes the command on s.
func (b *Builder) Run(ctx context.Context, s *Session) (*CommandResult, error) {
	return s.ExecuteCommand(ctx, b.String(), b.timeout, b.opts...)
}

// Stream executes the command on s, passing each stdout line to onLine.
func (b *Builder) Stream(ctx context.Context, s *Session, onLine func(string)) (*CommandResult, error) {
	return RunLineStream(ctx, s, b.String(), onLine, b.opts...)
}
