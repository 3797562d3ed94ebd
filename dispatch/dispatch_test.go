//go:build !windows

package dispatch_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/dispatch"
	"github.com/ruffel/sshmcp/profiles"
	"github.com/ruffel/sshmcp/providers/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionIDPattern = regexp.MustCompile(`Session ID: (\S+)`)

type fixture struct {
	d     *dispatch.Dispatcher
	reg   *sshmcp.Registry
	store *profiles.Store
}

func newFixture(t *testing.T, opts ...dispatch.Option) *fixture {
	t.Helper()

	reg := sshmcp.NewRegistry(local.New())
	t.Cleanup(reg.CloseAll)

	store := profiles.NewStore(filepath.Join(t.TempDir(), "config.json"))

	return &fixture{d: dispatch.New(reg, store, opts...), reg: reg, store: store}
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) dispatch.Result {
	t.Helper()

	return f.d.Call(t.Context(), name, args)
}

// connect opens a session and returns its id.
func (f *fixture) connect(t *testing.T) string {
	t.Helper()

	res := f.call(t, dispatch.ToolConnect, map[string]any{"host": "10.0.0.5", "username": "ops", "port": float64(2222)})
	require.False(t, res.IsError, res.Text)

	m := sessionIDPattern.FindStringSubmatch(res.Text)
	require.Len(t, m, 2, res.Text)

	return m[1]
}

func TestDispatcher_Tools(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	names := make([]string, 0, len(f.d.Tools()))
	for _, tool := range f.d.Tools() {
		names = append(names, tool.Name)
		assert.NotNil(t, tool.Handler, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}

	assert.Equal(t, []string{
		"ssh_config", "ssh_login", "ssh_connect", "ssh_list_hosts", "ssh_execute",
		"ssh_disconnect", "ssh_list_sessions", "ssh_generate_key", "ssh_file_transfer",
	}, names)

	exec, ok := f.d.Tool(dispatch.ToolExecute)
	require.True(t, ok)

	var required []string

	for _, p := range exec.Params {
		if p.Required {
			required = append(required, p.Name)
		}
	}

	assert.Equal(t, []string{"session_id", "command"}, required)
}

func TestDispatcher_LoggerFollowsCall(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f := newFixture(t, dispatch.WithLogger(zerolog.New(&buf)))

	res := f.call(t, dispatch.ToolConnect, map[string]any{"host": "10.0.0.5", "username": "ops", "password": "hunter2"})
	require.False(t, res.IsError, res.Text)

	id := f.reg.ListSessions()[0].ID

	var opened map[string]any

	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))

		if entry["message"] == "session opened" {
			opened = entry
		}
	}

	require.NotNil(t, opened, buf.String())
	assert.Equal(t, dispatch.ToolConnect, opened["tool"])
	assert.Equal(t, id, opened["session"])
	assert.Equal(t, "ops@10.0.0.5:22", opened["target"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestDispatcher_UnknownTool(t *testing.T) {
	t.Parallel()

	res := newFixture(t).call(t, "ssh_reboot", nil)

	assert.True(t, res.IsError)
	assert.Equal(t, "Unknown tool: ssh_reboot", res.Text)
}

func TestDispatcher_SessionLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.connect(t)

	res := f.call(t, dispatch.ToolExecute, map[string]any{"session_id": id, "command": "echo hi"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "Exit Code: 0\n\n--- STDOUT ---\nhi\n", res.Text)

	res = f.call(t, dispatch.ToolExecute, map[string]any{"session_id": id, "command": "echo oops >&2; exit 3"})
	require.False(t, res.IsError, "a non-zero exit is a normal result")
	assert.Equal(t, "Exit Code: 3\n\n--- STDERR ---\noops\n", res.Text)

	res = f.call(t, dispatch.ToolListSessions, nil)
	assert.Contains(t, res.Text, "Session ID: "+id)
	assert.Contains(t, res.Text, "Host: 10.0.0.5:2222")
	assert.Contains(t, res.Text, "State: connected")
	assert.Contains(t, res.Text, "Commands: 2")

	res = f.call(t, dispatch.ToolDisconnect, map[string]any{"session_id": id})
	assert.Equal(t, "Session "+id+" closed", res.Text)

	res = f.call(t, dispatch.ToolExecute, map[string]any{"session_id": id, "command": "echo hi"})
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Text, "Error: "), res.Text)
	assert.Contains(t, res.Text, id)

	assert.Equal(t, "No active sessions", f.call(t, dispatch.ToolListSessions, nil).Text)
}

func TestDispatcher_ExecuteOptions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.connect(t)
	dir := t.TempDir()

	res := f.call(t, dispatch.ToolExecute, map[string]any{"session_id": id, "command": "pwd", "working_dir": dir})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, filepath.Base(dir))

	res = f.call(t, dispatch.ToolExecute, map[string]any{"session_id": id, "command": "sleep 5", "timeout": float64(1)})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "timed out")
}

func TestDispatcher_ArgumentErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	t.Cleanup(func() {
		assert.Zero(t, f.reg.Len(), "failed connects must not register sessions")
	})

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{name: "missing command", tool: dispatch.ToolExecute, args: map[string]any{"session_id": "x"}, want: `missing required argument "command"`},
		{name: "unknown session", tool: dispatch.ToolExecute, args: map[string]any{"session_id": "nope", "command": "true"}, want: "nope"},
		{name: "fractional timeout", tool: dispatch.ToolExecute, args: map[string]any{"session_id": "x", "command": "true", "timeout": 1.5}, want: "must be an integer"},
		{name: "missing host", tool: dispatch.ToolConnect, args: map[string]any{"username": "ops"}, want: `missing required argument "host"`},
		{name: "bad port", tool: dispatch.ToolConnect, args: map[string]any{"host": "h", "username": "ops", "port": float64(70000)}, want: "invalid configuration"},
		{name: "bad auth method", tool: dispatch.ToolConnect, args: map[string]any{"host": "h", "username": "ops", "auth_method": "kerberos"}, want: "invalid configuration"},
		{name: "unknown profile", tool: dispatch.ToolConnect, args: map[string]any{"name": "ghost"}, want: "host not found"},
		{name: "config without password", tool: dispatch.ToolConfig, args: map[string]any{"host": "h"}, want: `missing required argument "password"`},
		{name: "login without config", tool: dispatch.ToolLogin, args: nil, want: "ssh_config"},
		{name: "bad key type", tool: dispatch.ToolGenerateKey, args: map[string]any{"key_type": "dsa"}, want: "unsupported key type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := f.call(t, tt.tool, tt.args)
			assert.True(t, res.IsError, res.Text)
			assert.True(t, strings.HasPrefix(res.Text, "Error: "), res.Text)
			assert.Contains(t, res.Text, tt.want)
		})
	}
}

func TestDispatcher_ConfigAndLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res := f.call(t, dispatch.ToolConfig, map[string]any{"host": "10.0.0.9", "port": float64(2200), "password": "pw"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Host: 10.0.0.9:2200")
	assert.Contains(t, res.Text, "Username: root")
	assert.Contains(t, res.Text, "Config file: "+f.store.Path())

	login, err := f.store.Default()
	require.NoError(t, err)
	assert.Equal(t, profiles.Login{Host: "10.0.0.9", Port: 2200, Username: "root", Password: "pw", Timeout: 30}, login)

	res = f.call(t, dispatch.ToolLogin, map[string]any{"command": "echo logged in"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Login successful")
	assert.Contains(t, res.Text, "Host: 10.0.0.9:2200")
	assert.Contains(t, res.Text, "--- Command output ---\nExit Code: 0\n\n--- STDOUT ---\nlogged in\n")
	assert.Equal(t, 1, f.reg.Len())
}

func TestDispatcher_Hosts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	assert.Equal(t, "No SSH hosts configured", f.call(t, dispatch.ToolListHosts, nil).Text)

	require.NoError(t, f.store.AddHost(profiles.Host{Name: "web", Login: profiles.Login{Host: "web.internal", Username: "deploy", Password: "pw"}}))

	res := f.call(t, dispatch.ToolListHosts, nil)
	assert.Contains(t, res.Text, "- Name: web")
	assert.Contains(t, res.Text, "Host: web.internal:22")
	assert.Contains(t, res.Text, "Password: ***")
	assert.NotContains(t, res.Text, "pw\n")

	res = f.call(t, dispatch.ToolConnect, map[string]any{"name": "web"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Successfully connected to web.internal:22")
}

func TestDispatcher_ConnectAlias(t *testing.T) {
	t.Parallel()

	var gotAlias string

	f := newFixture(t, dispatch.WithAliasResolver(func(alias string, opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error) {
		gotAlias = alias

		return sshmcp.NewConnectionConfig("bastion.example.com", "jump", opts...)
	}))

	res := f.call(t, dispatch.ToolConnect, map[string]any{"alias": "bastion", "timeout": float64(5)})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "bastion", gotAlias)
	assert.Contains(t, res.Text, "bastion.example.com:22")

	sessions := f.reg.ListSessions()
	require.Len(t, sessions, 1)

	s, err := f.reg.Lookup(sessions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.Config().Timeout)
}

func TestDispatcher_GenerateKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res := f.call(t, dispatch.ToolGenerateKey, map[string]any{"comment": "ops@laptop"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Generated ed25519 key pair")
	assert.Contains(t, res.Text, "Fingerprint: SHA256:")
	assert.Contains(t, res.Text, "ssh-ed25519 ")
	assert.Contains(t, res.Text, "Key not saved")

	path := filepath.Join(t.TempDir(), "id_test")

	res = f.call(t, dispatch.ToolGenerateKey, map[string]any{"key_type": "rsa", "key_size": float64(2048), "save_path": path})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Generated rsa key pair")
	assert.Contains(t, res.Text, "Saved to: "+path)
	assert.FileExists(t, path)
	assert.FileExists(t, path+".pub")
}

func TestDispatcher_FileTransfer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.connect(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	remoteDir := t.TempDir()
	remote := filepath.Join(remoteDir, "notes.txt")

	res := f.call(t, dispatch.ToolFileTransfer, map[string]any{"session_id": id, "direction": "upload", "local_path": src, "remote_path": remote})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "Uploaded "+src+" to "+remote, res.Text)

	res = f.call(t, dispatch.ToolFileTransfer, map[string]any{"session_id": id, "direction": "list", "remote_path": remoteDir})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Files in "+remoteDir)
	assert.Contains(t, res.Text, "notes.txt")

	back := filepath.Join(t.TempDir(), "back.txt")

	res = f.call(t, dispatch.ToolFileTransfer, map[string]any{"session_id": id, "direction": "download", "local_path": back, "remote_path": remote})
	require.False(t, res.IsError, res.Text)

	data, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	res = f.call(t, dispatch.ToolFileTransfer, map[string]any{"session_id": id, "direction": "upload", "remote_path": remote})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "needs local_path and remote_path")

	res = f.call(t, dispatch.ToolFileTransfer, map[string]any{"session_id": id, "direction": "sideways"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, `unknown direction "sideways"`)
}
