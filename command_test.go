package sshmcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCommandLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		cfg     ExecConfig
		want    string
	}{
		{
			name:    "plain",
			command: "ls -la",
			want:    "ls -la",
		},
		{
			name:    "env",
			command: "env",
			cfg:     ExecConfig{Env: []string{"FOO=bar baz", "EMPTY="}},
			want:    "export FOO='bar baz'; export EMPTY=''; env",
		},
		{
			name:    "malformed env entries are skipped",
			command: "env",
			cfg:     ExecConfig{Env: []string{"NOEQUALS", "=value", "OK=1"}},
			want:    "export OK='1'; env",
		},
		{
			name:    "dir",
			command: "pwd",
			cfg:     ExecConfig{Dir: "/srv/my app"},
			want:    "cd '/srv/my app' && pwd",
		},
		{
			name:    "env and dir",
			command: "make",
			cfg:     ExecConfig{Env: []string{"CC=gcc"}, Dir: "/src"},
			want:    "export CC='gcc'; cd '/src' && make",
		},
		{
			name:    "sudo",
			command: "whoami",
			cfg:     ExecConfig{SudoConfig: &SudoConfig{}},
			want:    "sudo -n -- sh -c 'whoami'",
		},
		{
			name:    "sudo user group preserve env",
			command: "id",
			cfg: ExecConfig{SudoConfig: &SudoConfig{
				User:        "postgres",
				Group:       "admin",
				PreserveEnv: true,
				CustomFlags: []string{"-H"},
			}},
			want: "sudo -n -u 'postgres' -g 'admin' -E '-H' -- sh -c 'id'",
		},
		{
			name:    "sudo evaluates pipes under sudo",
			command: "cat /etc/shadow | wc -l",
			cfg:     ExecConfig{SudoConfig: &SudoConfig{}, Dir: "/"},
			want:    "cd '/' && sudo -n -- sh -c 'cat /etc/shadow | wc -l'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildCommandLine(tt.command, tt.cfg))
		})
	}
}

func TestShellQuote_Injection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "''"},
		{in: "simple", want: "'simple'"},
		{in: "it's", want: `'it'\''s'`},
		{in: "$(rm -rf /)", want: "'$(rm -rf /)'"},
		{in: "`id`", want: "'`id`'"},
		{in: "a; b && c", want: "'a; b && c'"},
		{in: "'; rm -rf / #", want: `''\''; rm -rf / #'`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ShellQuote(tt.in))
		})
	}
}

func TestBuildCommandLine_EnvKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{key: "PATH_2", want: "export PATH_2='v'; true"},
		{key: "_x", want: "export _x='v'; true"},
		{key: "A;id;B", want: "true"},
		{key: "$(id)", want: "true"},
		{key: "2FA", want: "true"},
		{key: "A B", want: "true"},
		{key: "", want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			got := BuildCommandLine("true", ExecConfig{Env: []string{tt.key + "=v"}})
			assert.Equal(t, tt.want, got)
		})
	}

	b := Cmd("id").Env("A;id;B", "v").Env("OK", "1")

	cfg := ExecConfig{}
	for _, o := range b.Options() {
		o(&cfg)
	}

	assert.Equal(t, "export OK='1'; id", BuildCommandLine(b.String(), cfg))
}

func TestJoinArgs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ls -la /tmp", JoinArgs([]string{"ls", "-la", "/tmp"}))
	assert.Equal(t, "echo 'hello world' ''", JoinArgs([]string{"echo", "hello world", ""}))
	assert.Equal(t, `grep 'it'\''s' '$HOME'`, JoinArgs([]string{"grep", "it's", "$HOME"}))
}
