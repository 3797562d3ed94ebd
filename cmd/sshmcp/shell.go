package main

import (
	"errors"
	"io"
	"os"

	"github.com/ruffel/sshmcp"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newShellCmd(a *app) *cobra.Command {
	var (
		conn     connFlags
		termName string
	)

	cmd := &cobra.Command{
		Use:   "shell [flags] [user@]host[:port]",
		Short: "Open an interactive shell on a host",
		Long: `Opens a PTY-backed login shell. When stdin is a terminal it is switched to
raw mode and window size changes are forwarded to the remote side.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rest, err := conn.resolve(a, args)
			if err != nil {
				return err
			}

			if len(rest) > 0 {
				return errors.New("shell takes no command; use exec")
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}
			defer reg.CloseAll()

			info, err := reg.CreateSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			s, err := reg.Lookup(info.ID)
			if err != nil {
				return err
			}

			return runShell(cmd, s, termName)
		},
	}

	conn.register(cmd)
	cmd.Flags().StringVar(&termName, "term", "", "terminal type (default $TERM or xterm-256color)")

	return cmd
}

func runShell(cmd *cobra.Command, s *sshmcp.Session, termName string) error {
	if termName == "" {
		termName = os.Getenv("TERM")
	}

	fd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(fd)

	var width, height int
	if interactive {
		width, height, _ = term.GetSize(fd)
	}

	ch, err := s.OpenShell(cmd.Context(), termName, width, height)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if interactive {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer func() { _ = term.Restore(fd, state) }()

		stop := forwardResize(fd, ch)
		defer stop()
	}

	go func() {
		_, _ = io.Copy(ch, cmd.InOrStdin())
	}()

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = io.Copy(cmd.OutOrStdout(), ch)
	}()

	<-done

	return ch.Wait()
}
