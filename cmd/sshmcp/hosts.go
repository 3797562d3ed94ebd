package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ruffel/sshmcp/profiles"
	"github.com/spf13/cobra"
)

func newHostsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Manage saved host profiles",
	}

	cmd.AddCommand(newHostsListCmd(a), newHostsAddCmd(a), newHostsRemoveCmd(a))

	return cmd
}

func newHostsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved host profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hosts, err := a.store().Hosts()
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), renderHostTable(hosts))

			return nil
		},
	}
}

func newHostsAddCmd(a *app) *cobra.Command {
	var creds loginFlags

	cmd := &cobra.Command{
		Use:     "add NAME [user@]host[:port]",
		Short:   "Save or replace a host profile",
		Example: `  sshmcp hosts add web1 deploy@web1.internal -i ~/.ssh/id_deploy`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, host, port, err := parseTarget(args[1])
			if err != nil {
				return err
			}

			h := profiles.Host{
				Name:  args[0],
				Login: profiles.Login{Host: host, Port: port, Username: user},
			}
			creds.apply(&h.Login)

			if _, err := h.ToConnectionConfig(); err != nil {
				return err
			}

			if err := a.store().AddHost(h); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Saved host "+h.Name))

			return nil
		},
	}

	creds.register(cmd)

	return cmd
}

func newHostsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a host profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store().RemoveHost(args[0]); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Removed host "+args[0]))

			return nil
		},
	}
}

func renderHostTable(hosts []profiles.Host) string {
	if len(hosts) == 0 {
		return warnStyle.Render("No hosts saved") + "\n"
	}

	rows := [][]string{{"NAME", "ADDRESS", "USER", "AUTH"}}

	for _, h := range hosts {
		port := h.Port
		if port == 0 {
			port = 22
		}

		rows = append(rows, []string{h.Name, h.Host + ":" + strconv.Itoa(port), h.Username, authLabel(h.Login)})
	}

	widths := make([]int, len(rows[0]))

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder

	for r, row := range rows {
		cells := make([]string, len(row))

		for i, cell := range row {
			style := lipgloss.NewStyle().Width(widths[i] + 2)

			switch {
			case r == 0:
				style = style.Inherit(titleStyle)
			case i == 0:
				style = style.Inherit(nameStyle)
			}

			cells[i] = style.Render(cell)
		}

		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
		b.WriteString("\n")
	}

	return b.String()
}

func authLabel(l profiles.Login) string {
	switch {
	case l.AuthMethod != "":
		return l.AuthMethod
	case l.Password != "":
		return "password"
	case l.PrivateKeyPath != "":
		return "key " + l.PrivateKeyPath
	default:
		return "default keys"
	}
}
