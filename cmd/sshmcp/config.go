package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ruffel/sshmcp/profiles"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the default login used by ssh_login",
	}

	cmd.AddCommand(newConfigSetCmd(a), newConfigShowCmd(a), newConfigPathCmd(a))

	return cmd
}

// loginFlags are the credential flags shared by config set and hosts add.
type loginFlags struct {
	password   string
	identity   string
	passphrase string
	auth       string
	timeout    int
}

func (f *loginFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.password, "password", "", "password")
	fs.StringVarP(&f.identity, "identity", "i", "", "private key file")
	fs.StringVar(&f.passphrase, "passphrase", "", "passphrase for the private key")
	fs.StringVar(&f.auth, "auth", "", "auth method: password, private_key or agent")
	fs.IntVar(&f.timeout, "timeout", 0, "connect timeout in seconds (default 30)")
}

func (f *loginFlags) apply(l *profiles.Login) {
	l.Password = f.password
	l.PrivateKeyPath = f.identity
	l.Passphrase = f.passphrase
	l.AuthMethod = f.auth
	l.Timeout = f.timeout
}

func newConfigSetCmd(a *app) *cobra.Command {
	var creds loginFlags

	cmd := &cobra.Command{
		Use:     "set [user@]host[:port]",
		Short:   "Save the default login",
		Example: `  sshmcp config set root@10.0.0.5 --password secret`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, host, port, err := parseTarget(args[0])
			if err != nil {
				return err
			}

			if user == "" {
				return errors.New("the default login needs a user (user@host)")
			}

			login := profiles.Login{Host: host, Port: port, Username: user}
			creds.apply(&login)

			if _, err := login.ToConnectionConfig(); err != nil {
				return err
			}

			store := a.store()
			if err := store.SetDefault(login); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Saved default login to "+store.Path()))

			return nil
		},
	}

	creds.register(cmd)

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the default login with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			login, err := a.store().Default()
			if errors.Is(err, profiles.ErrNoDefault) {
				fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("No default login saved"))

				return nil
			}

			if err != nil {
				return err
			}

			printLogin(cmd, login)

			return nil
		},
	}
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the profiles file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), a.store().Path())
		},
	}
}

func printLogin(cmd *cobra.Command, l profiles.Login) {
	out := cmd.OutOrStdout()

	port := "22"
	if l.Port != 0 {
		port = strconv.Itoa(l.Port)
	}

	fmt.Fprintln(out, field("Host", l.Host+":"+port))
	fmt.Fprintln(out, field("Username", l.Username))
	fmt.Fprintln(out, field("Password", mask(l.Password)))

	if l.PrivateKeyPath != "" {
		fmt.Fprintln(out, field("Key", l.PrivateKeyPath))
	}

	if l.AuthMethod != "" {
		fmt.Fprintln(out, field("Auth", l.AuthMethod))
	}

	if l.Timeout != 0 {
		fmt.Fprintln(out, field("Timeout", strconv.Itoa(l.Timeout)+"s"))
	}
}

func mask(secret string) string {
	if secret == "" {
		return "-"
	}

	return "***"
}
