package sessiontest

import (
	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryStream,
			Name:        "lines-in-order",
			Description: "ExecuteStream yields stdout lines in order and the exit status after exhaustion",
			Run: func(t T, s *sshmcp.Session, _ string) {
				stream, err := s.ExecuteStream(t.Context(), "printf 'one\\ntwo\\nthree\\n'; exit 3")
				require.NoError(t, err)

				var lines []string
				for stream.Next() {
					lines = append(lines, stream.Text())
				}

				require.NoError(t, stream.Err())
				require.NoError(t, stream.Close())

				assert.Equal(t, []string{"one", "two", "three"}, lines)
				assert.Equal(t, 3, stream.ExitStatus())
				assert.Equal(t, sshmcp.StateConnected, s.State())
			},
		},
		{
			Category:    CategoryStream,
			Name:        "range-over-lines",
			Description: "Lines adapts the stream to range-over-func and cannot be restarted",
			Run: func(t T, s *sshmcp.Session, _ string) {
				stream, err := s.ExecuteStream(t.Context(), "echo a; echo b")
				require.NoError(t, err)

				var lines []string
				for line, err := range stream.Lines() {
					require.NoError(t, err)

					lines = append(lines, line)
				}

				assert.Equal(t, []string{"a", "b"}, lines)

				for _, err := range stream.Lines() {
					require.ErrorIs(t, err, sshmcp.ErrStreamConsumed)
				}
			},
		},
		{
			Category:    CategoryStream,
			Name:        "early-close-releases-session",
			Description: "Closing a stream early cancels the command and frees the session for the next command",
			Run: func(t T, s *sshmcp.Session, _ string) {
				stream, err := s.ExecuteStream(t.Context(), "echo first; sleep 30; echo never")
				require.NoError(t, err)

				require.True(t, stream.Next())
				assert.Equal(t, "first", stream.Text())
				assert.Equal(t, sshmcp.StateExecuting, s.State())

				require.NoError(t, stream.Close())
				assert.False(t, stream.Next())

				res := run(t, s, "echo next")
				assert.Equal(t, "next\n", res.Stdout)
			},
		},
		{
			Category:    CategoryStream,
			Name:        "stream-after-disconnect-fails",
			Description: "ExecuteStream checks the connection eagerly",
			Run: func(t T, s *sshmcp.Session, _ string) {
				s.Disconnect()

				_, err := s.ExecuteStream(t.Context(), "echo nope")
				require.ErrorIs(t, err, sshmcp.ErrNotConnected)
			},
		},
	}
}
