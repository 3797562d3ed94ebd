package sshmcp_test

import (
	"testing"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/providers/mock"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBuilder_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		builder *sshmcp.Builder
		want    string
	}{
		{name: "no args", builder: sshmcp.Cmd("uptime"), want: "uptime"},
		{name: "plain args", builder: sshmcp.Cmd("ls").Arg("-l").Arg("-a"), want: "ls -l -a"},
		{name: "quoted args", builder: sshmcp.Cmd("echo").Args("hello world", "it's"), want: `echo 'hello world' 'it'\''s'`},
		{name: "metacharacters", builder: sshmcp.Cmd("grep").Args("$(id)", "a|b"), want: "grep '$(id)' 'a|b'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.builder.String())
		})
	}
}

func TestBuilder_Run(t *testing.T) {
	t.Parallel()

	want := "export FOO='bar'; cd '/tmp' && sudo -n -u 'root' -- sh -c 'ls '\\''my dir'\\'''"

	conn := newMockConn()
	conn.On("Exec", testifymock.Anything, want, testifymock.Anything, testifymock.Anything).
		Run(mock.WriteOutput("file\n", "")).
		Return(0, nil)

	s, _ := connectedSession(t, conn)

	res, err := sshmcp.Cmd("ls").
		Arg("my dir").
		Env("FOO", "bar").
		Dir("/tmp").
		Sudo(sshmcp.WithSudoUser("root")).
		Timeout(time.Second).
		Run(t.Context(), s)
	require.NoError(t, err)
	assert.Equal(t, "file\n", res.Stdout)
	conn.AssertExpectations(t)
}

func TestBuilder_Stream(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	conn.On("Exec", testifymock.Anything, "journalctl -f", testifymock.Anything, testifymock.Anything).
		Run(mock.WriteOutput("line1\nline2\n", "note\n")).
		Return(4, nil)

	s, _ := connectedSession(t, conn)

	var lines []string

	res, err := sshmcp.Cmd("journalctl").Arg("-f").Stream(t.Context(), s, func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"line1", "line2"}, lines)
	assert.Equal(t, 4, res.ExitStatus)
	assert.Equal(t, "note\n", res.Stderr)
	assert.Empty(t, res.Stdout)
}
