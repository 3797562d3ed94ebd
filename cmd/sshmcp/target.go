package main

import (
	"errors"
	"fmt"
	"net"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/ruffel/sshmcp"
	sshprovider "github.com/ruffel/sshmcp/providers/ssh"
	"github.com/spf13/cobra"
)

var errNoTarget = errors.New("a target, --profile or --alias is required")

// connFlags selects and authenticates the endpoint for exec and shell.
type connFlags struct {
	profile    string
	alias      string
	port       int
	user       string
	password   string
	identity   string
	passphrase string
	auth       string
	timeout    time.Duration
}

func (f *connFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.profile, "profile", "", "connect to a saved host profile")
	fs.StringVar(&f.alias, "alias", "", "connect to a Host alias from ~/.ssh/config")
	fs.IntVarP(&f.port, "port", "p", 0, "port (default 22)")
	fs.StringVarP(&f.user, "user", "u", "", "login name (default current user)")
	fs.StringVar(&f.password, "password", "", "password for password auth")
	fs.StringVarP(&f.identity, "identity", "i", "", "private key file")
	fs.StringVar(&f.passphrase, "passphrase", "", "passphrase for the private key")
	fs.StringVar(&f.auth, "auth", "", "auth method: password, private_key or agent")
	fs.DurationVar(&f.timeout, "timeout", 0, "connect timeout (default 30s)")
}

// resolve builds the connection config and returns the arguments that
// remain once the target has been consumed. Explicit flags win over values
// from a profile or alias.
func (f *connFlags) resolve(a *app, args []string) (sshmcp.ConnectionConfig, []string, error) {
	overrides, err := f.overrides()
	if err != nil {
		return sshmcp.ConnectionConfig{}, nil, err
	}

	switch {
	case f.profile != "":
		h, err := a.store().Host(f.profile)
		if err != nil {
			return sshmcp.ConnectionConfig{}, nil, err
		}

		cfg, err := h.ToConnectionConfig(overrides...)

		return cfg, args, err
	case f.alias != "":
		cfg, err := sshprovider.ResolveAlias(f.alias, "", overrides...)

		return cfg, args, err
	case len(args) == 0:
		return sshmcp.ConnectionConfig{}, nil, errNoTarget
	}

	username, host, port, err := parseTarget(args[0])
	if err != nil {
		return sshmcp.ConnectionConfig{}, nil, err
	}

	if username == "" && f.user == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}

	opts := []sshmcp.ConfigOption{}
	if port != 0 {
		opts = append(opts, sshmcp.WithPort(port))
	}

	cfg, err := sshmcp.NewConnectionConfig(host, username, append(opts, overrides...)...)

	return cfg, args[1:], err
}

func (f *connFlags) overrides() ([]sshmcp.ConfigOption, error) {
	var opts []sshmcp.ConfigOption

	if f.port != 0 {
		opts = append(opts, sshmcp.WithPort(f.port))
	}

	if f.user != "" {
		opts = append(opts, func(c *sshmcp.ConnectionConfig) { c.Username = f.user })
	}

	if f.timeout != 0 {
		opts = append(opts, sshmcp.WithTimeout(f.timeout))
	}

	if f.identity != "" {
		opts = append(opts, sshmcp.WithPrivateKey(f.identity, f.passphrase))
	} else if f.passphrase != "" {
		opts = append(opts, func(c *sshmcp.ConnectionConfig) { c.Passphrase = f.passphrase })
	}

	if f.password != "" {
		opts = append(opts, sshmcp.WithPassword(f.password))
	}

	if f.auth != "" {
		method, err := sshmcp.ParseAuthMethod(f.auth)
		if err != nil {
			return nil, err
		}

		opts = append(opts, sshmcp.WithAuthMethod(method))
	}

	return opts, nil
}

// parseTarget splits [user@]host[:port]. IPv6 hosts with a port must be
// bracketed, as in ops@[::1]:2222.
func parseTarget(target string) (username, host string, port int, err error) {
	if i := strings.LastIndex(target, "@"); i >= 0 {
		username, target = target[:i], target[i+1:]
	}

	if h, p, splitErr := net.SplitHostPort(target); splitErr == nil {
		host = h

		port, err = strconv.Atoi(p)
		if err != nil || port == 0 {
			return "", "", 0, fmt.Errorf("invalid port in target %q", target)
		}
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(target, "["), "]")
	}

	if host == "" {
		return "", "", 0, fmt.Errorf("missing host in target %q", target)
	}

	return username, host, port, nil
}
