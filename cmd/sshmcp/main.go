// Command sshmcp manages SSH sessions from the command line and serves them
// to MCP clients over stdio.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/internal/logging"
	"github.com/ruffel/sshmcp/profiles"
	sshprovider "github.com/ruffel/sshmcp/providers/ssh"
	"github.com/spf13/cobra"
)

// Set by the linker at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries the global flags and the collaborators every subcommand
// builds on.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	hostKeys   string
	knownHosts string

	// newTransport is swapped out in tests.
	newTransport func(a *app) (sshmcp.Transport, error)
}

func main() {
	err := newRootCmd(&app{newTransport: sshTransport}).Execute()
	if err == nil {
		return
	}

	var exit *exitCodeError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}

	fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
	os.Exit(1)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sshmcp",
		Short:         "SSH session manager and MCP server",
		Long:          `Opens and tracks SSH sessions, runs commands on them and exposes the same operations as MCP tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.Init(logging.Config{
				Level:  a.logLevel,
				Format: logging.Format(a.logFormat),
				Output: cmd.ErrOrStderr(),
			})

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "profiles file (default $SSHMCP_CONFIG or ~/.config/sshmcp/config.json)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", string(logging.FormatConsole), "log format: console or json")
	flags.StringVar(&a.hostKeys, "host-keys", "accept-new", "host key policy: accept-new, strict or insecure")
	flags.StringVar(&a.knownHosts, "known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")

	root.AddCommand(
		newServeCmd(a),
		newExecCmd(a),
		newShellCmd(a),
		newKeygenCmd(),
		newConfigCmd(a),
		newHostsCmd(a),
		newToolsCmd(a),
		newCallCmd(a),
		newVersionCmd(),
	)

	return root
}

func (a *app) store() *profiles.Store {
	path := a.configPath
	if path == "" {
		path = profiles.DefaultPath()
	}

	return profiles.NewStore(path)
}

func (a *app) registry(opts ...sshmcp.RegistryOption) (*sshmcp.Registry, error) {
	transport, err := a.newTransport(a)
	if err != nil {
		return nil, err
	}

	opts = append([]sshmcp.RegistryOption{
		sshmcp.WithRegistryLogger(logging.Component("registry")),
		sshmcp.WithSessionOptions(sshmcp.WithLogger(logging.Component("session"))),
	}, opts...)

	return sshmcp.NewRegistry(transport, opts...), nil
}

func sshTransport(a *app) (sshmcp.Transport, error) {
	policy, err := parseHostKeyPolicy(a.hostKeys)
	if err != nil {
		return nil, err
	}

	opts := []sshprovider.Option{
		sshprovider.WithHostKeyPolicy(policy),
		sshprovider.WithClientVersion("SSH-2.0-sshmcp_" + version),
		sshprovider.WithLogger(logging.Component("ssh")),
	}

	if a.knownHosts != "" {
		opts = append(opts, sshprovider.WithKnownHosts(a.knownHosts))
	}

	return sshprovider.New(opts...), nil
}

func parseHostKeyPolicy(s string) (sshprovider.HostKeyPolicy, error) {
	switch strings.ToLower(s) {
	case "", "accept-new":
		return sshprovider.AcceptNew, nil
	case "strict", "yes":
		return sshprovider.Strict, nil
	case "insecure", "no":
		return sshprovider.Insecure, nil
	default:
		return 0, fmt.Errorf("unknown host key policy %q", s)
	}
}

// exitCodeError carries a remote exit status out to main.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.code)
}
