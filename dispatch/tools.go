package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/internal/logging"
	"github.com/ruffel/sshmcp/keys"
	"github.com/ruffel/sshmcp/profiles"
)

// Tool names.
const (
	ToolConfig       = "ssh_config"
	ToolLogin        = "ssh_login"
	ToolConnect      = "ssh_connect"
	ToolListHosts    = "ssh_list_hosts"
	ToolExecute      = "ssh_execute"
	ToolDisconnect   = "ssh_disconnect"
	ToolListSessions = "ssh_list_sessions"
	ToolGenerateKey  = "ssh_generate_key"
	ToolFileTransfer = "ssh_file_transfer"
)

// Defaults for ssh_config and ssh_execute arguments.
const (
	defaultLoginHost     = "127.0.0.1"
	defaultLoginUser     = "root"
	defaultTimeoutSecs   = 30
	defaultCommandSecs   = 30
	defaultListDirectory = "."
)

func (d *Dispatcher) table() []Tool {
	return []Tool{
		{
			Name:        ToolConfig,
			Description: "Save the default SSH login (host, port, username, password) for ssh_login.",
			Params: []Param{
				{Name: "host", Type: String, Description: "SSH server IP or hostname", Default: defaultLoginHost},
				{Name: "port", Type: Integer, Description: "SSH server port", Default: sshmcp.DefaultPort},
				{Name: "username", Type: String, Description: "SSH username", Default: defaultLoginUser},
				{Name: "password", Type: String, Description: "SSH password", Required: true},
				{Name: "timeout", Type: Integer, Description: "Connection timeout in seconds", Default: defaultTimeoutSecs},
			},
			Handler: d.handleConfig,
		},
		{
			Name:        ToolLogin,
			Description: "Open a session with the saved default login, optionally running a command.",
			Params: []Param{
				{Name: "command", Type: String, Description: "Command to execute after login"},
			},
			Handler: d.handleLogin,
		},
		{
			Name:        ToolConnect,
			Description: "Establish an SSH connection to a remote server.",
			Params: []Param{
				{Name: "host", Type: String, Description: "SSH server hostname or IP"},
				{Name: "port", Type: Integer, Description: "SSH server port", Default: sshmcp.DefaultPort},
				{Name: "username", Type: String, Description: "SSH username"},
				{Name: "password", Type: String, Description: "SSH password"},
				{Name: "private_key_path", Type: String, Description: "Path to a private key file"},
				{Name: "passphrase", Type: String, Description: "Passphrase for the private key"},
				{
					Name: "auth_method", Type: String, Description: "Credential to authenticate with",
					Enum: []string{string(sshmcp.AuthPassword), string(sshmcp.AuthPrivateKey), string(sshmcp.AuthAgent)}, Default: string(sshmcp.AuthPrivateKey),
				},
				{Name: "timeout", Type: Integer, Description: "Connection timeout in seconds", Default: defaultTimeoutSecs},
				{Name: "name", Type: String, Description: "Connect using a saved host profile"},
				{Name: "alias", Type: String, Description: "Connect using a Host entry from ~/.ssh/config"},
			},
			Handler: d.handleConnect,
		},
		{
			Name:        ToolListHosts,
			Description: "List the saved host profiles.",
			Handler:     d.handleListHosts,
		},
		{
			Name:        ToolExecute,
			Description: "Execute a command on an active SSH session.",
			Params: []Param{
				{Name: "session_id", Type: String, Description: "Session ID from ssh_connect", Required: true},
				{Name: "command", Type: String, Description: "Command to execute", Required: true},
				{Name: "timeout", Type: Integer, Description: "Command timeout in seconds", Default: defaultCommandSecs},
				{Name: "working_dir", Type: String, Description: "Directory to run the command in"},
				{Name: "sudo", Type: Boolean, Description: "Run the command through sudo -n", Default: false},
			},
			Handler: d.handleExecute,
		},
		{
			Name:        ToolDisconnect,
			Description: "Close an SSH session.",
			Params: []Param{
				{Name: "session_id", Type: String, Description: "Session ID to close", Required: true},
			},
			Handler: d.handleDisconnect,
		},
		{
			Name:        ToolListSessions,
			Description: "List all active SSH sessions.",
			Handler:     d.handleListSessions,
		},
		{
			Name:        ToolGenerateKey,
			Description: "Generate a new SSH key pair.",
			Params: []Param{
				{Name: "key_type", Type: String, Description: "Key algorithm", Enum: []string{keys.TypeRSA, keys.TypeEd25519}, Default: keys.TypeEd25519},
				{Name: "key_size", Type: Integer, Description: "Key size in bits for RSA", Default: keys.DefaultRSABits},
				{Name: "comment", Type: String, Description: "Comment for the key"},
				{Name: "save_path", Type: String, Description: "Path to save the private key; the public key gets a .pub suffix"},
			},
			Handler: d.handleGenerateKey,
		},
		{
			Name:        ToolFileTransfer,
			Description: "Transfer files via SFTP or list a remote directory.",
			Params: []Param{
				{Name: "session_id", Type: String, Description: "Session ID", Required: true},
				{Name: "local_path", Type: String, Description: "Local file path"},
				{Name: "remote_path", Type: String, Description: "Remote file path"},
				{Name: "direction", Type: String, Description: "Transfer direction", Required: true, Enum: []string{"upload", "download", "list"}},
				{Name: "recursive", Type: Boolean, Description: "Copy directories recursively", Default: false},
			},
			Handler: d.handleFileTransfer,
		},
	}
}

func (d *Dispatcher) handleConfig(_ context.Context, args Args) (string, error) {
	password, err := args.Require("password")
	if err != nil {
		return "", err
	}

	port, err := args.Int("port", sshmcp.DefaultPort)
	if err != nil {
		return "", err
	}

	timeout, err := args.Int("timeout", defaultTimeoutSecs)
	if err != nil {
		return "", err
	}

	login := profiles.Login{
		Host:     args.String("host", defaultLoginHost),
		Port:     port,
		Username: args.String("username", defaultLoginUser),
		Password: password,
		Timeout:  timeout,
	}

	// Reject values the login could never connect with.
	if _, err := login.ToConnectionConfig(); err != nil {
		return "", err
	}

	if err := d.profiles.SetDefault(login); err != nil {
		return "", err
	}

	return renderConfigSaved(login, d.profiles.Path()), nil
}

func (d *Dispatcher) handleLogin(ctx context.Context, args Args) (string, error) {
	login, err := d.profiles.Default()
	if errors.Is(err, profiles.ErrNoDefault) {
		return "", fmt.Errorf("no saved login; configure one with %s first", ToolConfig)
	}

	if err != nil {
		return "", err
	}

	cfg, err := login.ToConnectionConfig()
	if err != nil {
		return "", err
	}

	info, err := d.registry.CreateSession(ctx, cfg)
	if err != nil {
		return "", err
	}

	log := logging.FromContext(ctx)
	log.Info().Str("session", info.ID).Str("target", cfg.String()).Msg("session opened")

	var b strings.Builder

	b.WriteString("Login successful\n")
	writeSessionSummary(&b, info)

	command := args.String("command", "")
	if strings.TrimSpace(command) == "" {
		return b.String(), nil
	}

	s, err := d.registry.Lookup(info.ID)
	if err != nil {
		return "", err
	}

	res, err := s.ExecuteCommand(ctx, command, 0)
	if err != nil {
		return "", fmt.Errorf("session %s opened but the command failed: %w", info.ID, err)
	}

	b.WriteString("\n\n--- Command output ---\n")
	b.WriteString(renderResult(res))

	return b.String(), nil
}

func (d *Dispatcher) handleConnect(ctx context.Context, args Args) (string, error) {
	cfg, err := d.connectConfig(args)
	if err != nil {
		return "", err
	}

	info, err := d.registry.CreateSession(ctx, cfg)
	if err != nil {
		return "", err
	}

	log := logging.FromContext(ctx)
	log.Info().Str("session", info.ID).Str("target", cfg.String()).Msg("session opened")

	var b strings.Builder

	fmt.Fprintf(&b, "Successfully connected to %s:%d\n", info.Host, info.Port)
	writeSessionSummary(&b, info)

	return b.String(), nil
}

// connectConfig picks the config source: a saved profile by name, an
// ~/.ssh/config alias, or the explicit arguments.
func (d *Dispatcher) connectConfig(args Args) (sshmcp.ConnectionConfig, error) {
	timeout, err := args.Seconds("timeout", 0)
	if err != nil {
		return sshmcp.ConnectionConfig{}, err
	}

	var overrides []sshmcp.ConfigOption
	if timeout > 0 {
		overrides = append(overrides, sshmcp.WithTimeout(timeout))
	}

	if name := args.String("name", ""); name != "" {
		host, err := d.profiles.Host(name)
		if err != nil {
			return sshmcp.ConnectionConfig{}, err
		}

		return host.ToConnectionConfig(overrides...)
	}

	if alias := args.String("alias", ""); alias != "" {
		return d.resolve(alias, overrides...)
	}

	host, err := args.Require("host")
	if err != nil {
		return sshmcp.ConnectionConfig{}, err
	}

	username, err := args.Require("username")
	if err != nil {
		return sshmcp.ConnectionConfig{}, err
	}

	port, err := args.Int("port", sshmcp.DefaultPort)
	if err != nil {
		return sshmcp.ConnectionConfig{}, err
	}

	method, err := sshmcp.ParseAuthMethod(args.String("auth_method", ""))
	if err != nil {
		return sshmcp.ConnectionConfig{}, err
	}

	opts := []sshmcp.ConfigOption{
		sshmcp.WithPort(port),
		func(c *sshmcp.ConnectionConfig) {
			c.Password = args.String("password", "")
			c.PrivateKeyPath = args.String("private_key_path", "")
			c.Passphrase = args.String("passphrase", "")
		},
		sshmcp.WithAuthMethod(method),
	}

	return sshmcp.NewConnectionConfig(host, username, append(opts, overrides...)...)
}

func (d *Dispatcher) handleListHosts(_ context.Context, _ Args) (string, error) {
	hosts, err := d.profiles.Hosts()
	if err != nil {
		return "", err
	}

	return renderHosts(hosts), nil
}

func (d *Dispatcher) handleExecute(ctx context.Context, args Args) (string, error) {
	id, err := args.Require("session_id")
	if err != nil {
		return "", err
	}

	command, err := args.Require("command")
	if err != nil {
		return "", err
	}

	timeout, err := args.Seconds("timeout", defaultCommandSecs)
	if err != nil {
		return "", err
	}

	sudo, err := args.Bool("sudo", false)
	if err != nil {
		return "", err
	}

	var opts []sshmcp.ExecOption
	if dir := args.String("working_dir", ""); dir != "" {
		opts = append(opts, sshmcp.WithDir(dir))
	}

	if sudo {
		opts = append(opts, sshmcp.WithSudo())
	}

	s, err := d.registry.Lookup(id)
	if err != nil {
		return "", err
	}

	res, err := s.ExecuteCommand(ctx, command, timeout, opts...)
	if err != nil {
		return "", err
	}

	return renderResult(res), nil
}

func (d *Dispatcher) handleDisconnect(_ context.Context, args Args) (string, error) {
	id, err := args.Require("session_id")
	if err != nil {
		return "", err
	}

	d.registry.CloseSession(id)

	return fmt.Sprintf("Session %s closed", id), nil
}

func (d *Dispatcher) handleListSessions(_ context.Context, _ Args) (string, error) {
	return renderSessions(d.registry.ListSessions()), nil
}

func (d *Dispatcher) handleGenerateKey(_ context.Context, args Args) (string, error) {
	keyType := args.String("key_type", keys.TypeEd25519)

	bits, err := args.Int("key_size", keys.DefaultRSABits)
	if err != nil {
		return "", err
	}

	pair, err := keys.Generate(keyType, bits, args.String("comment", ""))
	if err != nil {
		return "", err
	}

	savePath := args.String("save_path", "")
	if savePath != "" {
		if err := keys.Save(pair, savePath); err != nil {
			return "", err
		}
	}

	return renderKey(pair, savePath), nil
}

func (d *Dispatcher) handleFileTransfer(ctx context.Context, args Args) (string, error) {
	id, err := args.Require("session_id")
	if err != nil {
		return "", err
	}

	recursive, err := args.Bool("recursive", false)
	if err != nil {
		return "", err
	}

	s, err := d.registry.Lookup(id)
	if err != nil {
		return "", err
	}

	localPath := args.String("local_path", "")
	remotePath := args.String("remote_path", "")

	switch direction := args.String("direction", ""); direction {
	case "upload", "download":
		if localPath == "" || remotePath == "" {
			return "", fmt.Errorf("%w: %s needs local_path and remote_path", errMissing, direction)
		}

		if direction == "upload" {
			if err := s.Upload(ctx, localPath, remotePath, sshmcp.WithRecursive(recursive)); err != nil {
				return "", err
			}

			return fmt.Sprintf("Uploaded %s to %s", localPath, remotePath), nil
		}

		if err := s.Download(ctx, remotePath, localPath, sshmcp.WithRecursive(recursive)); err != nil {
			return "", err
		}

		return fmt.Sprintf("Downloaded %s to %s", remotePath, localPath), nil

	case "list":
		if remotePath == "" {
			remotePath = defaultListDirectory
		}

		entries, err := s.ListDir(ctx, remotePath)
		if err != nil {
			return "", err
		}

		return renderEntries(remotePath, entries), nil

	default:
		return "", fmt.Errorf("unknown direction %q", direction)
	}
}
