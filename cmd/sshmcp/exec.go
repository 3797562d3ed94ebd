package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/spf13/cobra"
)

func newExecCmd(a *app) *cobra.Command {
	var (
		conn     connFlags
		dir      string
		env      []string
		sudo     bool
		sudoUser string
		timeout  time.Duration
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "exec [flags] [user@]host[:port] -- command [args...]",
		Short: "Run one command on a host and exit with its status",
		Long: `Connects, runs a single command and disconnects. Stdout is streamed line by
line. The remote exit status becomes the exit status of sshmcp.

A single command argument is passed to the remote shell as written, so pipes
and redirections work. Several arguments are quoted individually.`,
		Example: `  sshmcp exec ops@10.0.0.5 -- uname -a
  sshmcp exec --profile web1 -- 'journalctl -u nginx | tail -n 20'
  sshmcp exec --alias bastion --sudo -- systemctl restart nginx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rest, err := conn.resolve(a, args)
			if err != nil {
				return err
			}

			if len(rest) == 0 {
				return errors.New("no command given")
			}

			opts, err := execOptions(dir, env, sudo, sudoUser)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if timeout > 0 {
				var cancel context.CancelFunc

				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			return a.runExec(ctx, cmd, cfg, commandLine(rest), opts, verbose)
		},
	}

	conn.register(cmd)

	fs := cmd.Flags()
	fs.StringVarP(&dir, "dir", "C", "", "remote working directory")
	fs.StringArrayVarP(&env, "env", "e", nil, "export KEY=VALUE for the command (repeatable)")
	fs.BoolVar(&sudo, "sudo", false, "run through non-interactive sudo")
	fs.StringVar(&sudoUser, "sudo-user", "", "run as this user through sudo")
	fs.DurationVar(&timeout, "command-timeout", 0, "abort the command after this long (0 = no limit)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "print the session and exit status")

	return cmd
}

func (a *app) runExec(ctx context.Context, cmd *cobra.Command, cfg sshmcp.ConnectionConfig, line string, opts []sshmcp.ExecOption, verbose bool) error {
	reg, err := a.registry()
	if err != nil {
		return err
	}
	defer reg.CloseAll()

	info, err := reg.CreateSession(ctx, cfg)
	if err != nil {
		return err
	}

	s, err := reg.Lookup(info.ID)
	if err != nil {
		return err
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if verbose {
		fmt.Fprintln(stderr, titleStyle.Render("Connected to "+cfg.Address()))
		fmt.Fprintln(stderr, field("Session", info.ID))
		fmt.Fprintln(stderr, field("Command", codeStyle.Render(line)))
	}

	res, err := sshmcp.RunLineStream(ctx, s, line, func(l string) {
		fmt.Fprintln(stdout, l)
	}, opts...)
	if err != nil {
		return err
	}

	fmt.Fprint(stderr, res.Stderr)

	if verbose {
		status := exitStyle(res.ExitStatus).Render(fmt.Sprintf("%d", res.ExitStatus))
		fmt.Fprintln(stderr, field("Exit status", status))
		fmt.Fprintln(stderr, field("Duration", res.Duration.Round(time.Millisecond).String()))
	}

	if res.Failed() {
		return &exitCodeError{code: res.ExitStatus}
	}

	return nil
}

// commandLine returns a lone argument unchanged and quotes a multi-argument
// command word by word.
func commandLine(args []string) string {
	if len(args) == 1 {
		return args[0]
	}

	return sshmcp.Cmd(args[0]).Args(args[1:]...).String()
}

func execOptions(dir string, env []string, sudo bool, sudoUser string) ([]sshmcp.ExecOption, error) {
	var opts []sshmcp.ExecOption

	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q, want KEY=VALUE", kv)
		}

		opts = append(opts, sshmcp.WithEnv(k, v))
	}

	if dir != "" {
		opts = append(opts, sshmcp.WithDir(dir))
	}

	switch {
	case sudoUser != "":
		opts = append(opts, sshmcp.WithSudo(sshmcp.WithSudoUser(sudoUser)))
	case sudo:
		opts = append(opts, sshmcp.WithSudo())
	}

	return opts, nil
}
