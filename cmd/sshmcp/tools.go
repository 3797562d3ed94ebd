package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruffel/sshmcp/dispatch"
	"github.com/ruffel/sshmcp/internal/logging"
	"github.com/spf13/cobra"
)

func newToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools served by serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, closeAll, err := a.dispatcher()
			if err != nil {
				return err
			}
			defer closeAll()

			out := cmd.OutOrStdout()

			for _, t := range d.Tools() {
				fmt.Fprintln(out, nameStyle.Render(t.Name))
				fmt.Fprintln(out, codeStyle.Render(t.Description))

				for _, p := range t.Params {
					req := ""
					if p.Required {
						req = " (required)"
					}

					fmt.Fprintln(out, codeStyle.Render(fmt.Sprintf("  %s %s%s", p.Name, p.Type, req)))
				}
			}

			return nil
		},
	}
}

func newCallCmd(a *app) *cobra.Command {
	var rawJSON string

	cmd := &cobra.Command{
		Use:   "call TOOL [key=value...]",
		Short: "Invoke one tool locally and print its output",
		Long: `Runs a single tool call in this process. Sessions opened by the call are
closed when it returns, so this is most useful for ssh_config, ssh_login with
a command, ssh_list_hosts and ssh_generate_key.`,
		Example: `  sshmcp call ssh_list_hosts
  sshmcp call ssh_login command='uptime'
  sshmcp call ssh_generate_key --args '{"key_type":"rsa","key_size":4096}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseToolArgs(args[1:], rawJSON)
			if err != nil {
				return err
			}

			d, closeAll, err := a.dispatcher()
			if err != nil {
				return err
			}
			defer closeAll()

			res := d.Call(cmd.Context(), args[0], params)
			if res.IsError {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(res.Text))

				return &exitCodeError{code: 1}
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Text)

			return nil
		},
	}

	cmd.Flags().StringVar(&rawJSON, "args", "", "arguments as a JSON object, merged under key=value pairs")

	return cmd
}

func (a *app) dispatcher() (*dispatch.Dispatcher, func(), error) {
	reg, err := a.registry()
	if err != nil {
		return nil, nil, err
	}

	d := dispatch.New(reg, a.store(),
		dispatch.WithLogger(logging.Component("dispatch")),
	)

	return d, reg.CloseAll, nil
}

// parseToolArgs merges a JSON object with key=value pairs. Pair values stay
// strings; the dispatcher converts them to the parameter's type.
func parseToolArgs(pairs []string, rawJSON string) (map[string]any, error) {
	args := map[string]any{}

	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
			return nil, fmt.Errorf("invalid --args: %w", err)
		}
	}

	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid argument %q, want key=value", kv)
		}

		args[strings.TrimSpace(k)] = v
	}

	return args, nil
}
