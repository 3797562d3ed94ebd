//go:build !windows

package mcpserver_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/dispatch"
	"github.com/ruffel/sshmcp/mcpserver"
	"github.com/ruffel/sshmcp/profiles"
	"github.com/ruffel/sshmcp/providers/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	ID     int `json:"id"`
	Result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Tools []struct {
			Name        string `json:"name"`
			InputSchema struct {
				Required   []string                  `json:"required"`
				Properties map[string]map[string]any `json:"properties"`
			} `json:"inputSchema"`
		} `json:"tools"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newServer(t *testing.T) (*mcpserver.Server, *sshmcp.Registry) {
	t.Helper()

	reg := sshmcp.NewRegistry(local.New())
	t.Cleanup(reg.CloseAll)

	store := profiles.NewStore(filepath.Join(t.TempDir(), "config.json"))

	return mcpserver.New(dispatch.New(reg, store), reg, mcpserver.WithVersion("test")), reg
}

func handle(t *testing.T, srv *mcpserver.Server, msg string) rpcResponse {
	t.Helper()

	raw, err := json.Marshal(srv.MCP().HandleMessage(t.Context(), json.RawMessage(msg)))
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))

	return resp
}

func callMessage(id int, tool string, args map[string]any) string {
	params, _ := json.Marshal(map[string]any{"name": tool, "arguments": args})

	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":%s}`, id, params)
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t)

	resp := handle(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Nil(t, resp.Error)
	require.Len(t, resp.Result.Tools, 9)

	byName := map[string]int{}
	for i, tool := range resp.Result.Tools {
		byName[tool.Name] = i
	}

	exec := resp.Result.Tools[byName[dispatch.ToolExecute]]
	assert.ElementsMatch(t, []string{"session_id", "command"}, exec.InputSchema.Required)
	assert.Equal(t, "number", exec.InputSchema.Properties["timeout"]["type"])
	assert.Equal(t, "boolean", exec.InputSchema.Properties["sudo"]["type"])

	transfer := resp.Result.Tools[byName[dispatch.ToolFileTransfer]]
	assert.Equal(t, []any{"upload", "download", "list"}, transfer.InputSchema.Properties["direction"]["enum"])
}

func TestServer_CallTool(t *testing.T) {
	t.Parallel()

	srv, reg := newServer(t)

	resp := handle(t, srv, callMessage(1, dispatch.ToolConnect, map[string]any{"host": "10.0.0.5", "username": "ops"}))
	require.Nil(t, resp.Error)
	require.Len(t, resp.Result.Content, 1)
	assert.False(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, "Successfully connected to 10.0.0.5:22")
	require.Equal(t, 1, reg.Len())

	id := reg.ListSessions()[0].ID

	resp = handle(t, srv, callMessage(2, dispatch.ToolExecute, map[string]any{"session_id": id, "command": "echo hi"}))
	require.Nil(t, resp.Error)
	assert.Equal(t, "Exit Code: 0\n\n--- STDOUT ---\nhi\n", resp.Result.Content[0].Text)

	resp = handle(t, srv, callMessage(3, dispatch.ToolExecute, map[string]any{"session_id": "missing", "command": "true"}))
	require.Nil(t, resp.Error, "tool failures are results, not protocol errors")
	assert.True(t, resp.Result.IsError)
	assert.Equal(t, "Error: session missing not found", resp.Result.Content[0].Text)
}

func TestServer_ServeClosesSessions(t *testing.T) {
	t.Parallel()

	srv, reg := newServer(t)

	_, err := reg.CreateSession(t.Context(), mustConfig(t))
	require.NoError(t, err)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- srv.Serve(ctx, inR, outW)
	}()

	go func() {
		_, _ = io.WriteString(inW, callMessage(7, dispatch.ToolListSessions, nil)+"\n")
	}()

	lines := bufio.NewScanner(outR)

	var resp rpcResponse

	for lines.Scan() {
		if err := json.Unmarshal(lines.Bytes(), &resp); err == nil && resp.ID == 7 {
			break
		}
	}

	require.Len(t, resp.Result.Content, 1)
	assert.Contains(t, resp.Result.Content[0].Text, "Active Sessions:")

	cancel()
	_ = inW.Close()

	// Drain any trailing output so the server never blocks on write.
	go func() { _, _ = io.Copy(io.Discard, outR) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	assert.Zero(t, reg.Len())
}

func mustConfig(t *testing.T) sshmcp.ConnectionConfig {
	t.Helper()

	cfg, err := sshmcp.NewConnectionConfig("10.0.0.5", "ops", sshmcp.WithKeepaliveInterval(0))
	require.NoError(t, err)

	return cfg
}
