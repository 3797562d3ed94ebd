package ssh

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/ruffel/sshmcp"
)

// ResolveAlias builds a ConnectionConfig for a Host alias in an OpenSSH
// client config file. An empty path reads ~/.ssh/config. opts are applied
// after the values taken from the file.
func ResolveAlias(alias, path string, opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error) {
	home, _ := os.UserHomeDir()

	if path == "" {
		path = filepath.Join(home, ".ssh", "config")
	}

	f, err := os.Open(expandHome(path, home))
	if err != nil {
		return sshmcp.ConnectionConfig{}, fmt.Errorf("failed to open ssh config: %w", err)
	}

	defer func() { _ = f.Close() }()

	return ResolveAliasReader(alias, f, opts...)
}

// ResolveAliasReader is ResolveAlias for config data read from r. It maps
// HostName, User, Port, IdentityFile, ConnectTimeout, ServerAliveInterval
// and Compression. Hosts without a HostName resolve to the alias itself.
func ResolveAliasReader(alias string, r io.Reader, opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return sshmcp.ConnectionConfig{}, fmt.Errorf("failed to parse ssh config: %w", err)
	}

	get := func(key string) string {
		v, _ := cfg.Get(alias, key)

		return strings.TrimSpace(v)
	}

	hostName := get("HostName")
	if hostName == "" {
		hostName = alias
	}

	username := get("User")
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}

	var fromFile []sshmcp.ConfigOption

	if v := get("Port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return sshmcp.ConnectionConfig{}, &sshmcp.ConfigError{Field: "port", Reason: fmt.Sprintf("invalid Port %q for host %s", v, alias)}
		}

		fromFile = append(fromFile, sshmcp.WithPort(port))
	}

	if v := get("IdentityFile"); v != "" {
		home, _ := os.UserHomeDir()
		fromFile = append(fromFile, sshmcp.WithPrivateKey(expandHome(v, home), ""))
	}

	if v := get("ConnectTimeout"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			fromFile = append(fromFile, sshmcp.WithTimeout(time.Duration(secs)*time.Second))
		}
	}

	if v := get("ServerAliveInterval"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			fromFile = append(fromFile, sshmcp.WithKeepaliveInterval(time.Duration(secs)*time.Second))
		}
	}

	if strings.EqualFold(get("Compression"), "yes") {
		fromFile = append(fromFile, sshmcp.WithCompression(true))
	}

	return sshmcp.NewConnectionConfig(hostName, username, append(fromFile, opts...)...)
}
