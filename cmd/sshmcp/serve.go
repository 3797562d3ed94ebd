package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/dispatch"
	"github.com/ruffel/sshmcp/internal/logging"
	"github.com/ruffel/sshmcp/mcpserver"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var maxSessions int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the SSH tools to an MCP client over stdio",
		Long: `Speaks MCP on stdin and stdout until the client disconnects or the process
is interrupted. Logs go to stderr. Every open session is closed on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []sshmcp.RegistryOption
			if maxSessions > 0 {
				opts = append(opts, sshmcp.WithMaxSessions(maxSessions))
			}

			reg, err := a.registry(opts...)
			if err != nil {
				return err
			}

			d := dispatch.New(reg, a.store(),
				dispatch.WithLogger(logging.Component("dispatch")),
			)

			srv := mcpserver.New(d, reg,
				mcpserver.WithVersion(version),
				mcpserver.WithLogger(logging.Component("mcp")),
			)

			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "refuse new sessions beyond this many (0 = unlimited)")

	return cmd
}
