package sessiontest

import (
	"strings"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nonZeroExit = 13

func coreContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryCore,
			Name:        "simple-echo",
			Description: "echo hi returns status 0, stdout hi and empty stderr",
			Run: func(t T, s *sshmcp.Session, _ string) {
				res := run(t, s, "echo hi")

				assert.Equal(t, 0, res.ExitStatus)
				assert.Equal(t, "hi\n", res.Stdout)
				assert.Empty(t, res.Stderr)
				assert.Equal(t, s.ID(), res.SessionID)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "nonzero-exit-is-result",
			Description: "A non-zero exit status is returned as a result, not an error",
			Run: func(t T, s *sshmcp.Session, _ string) {
				res := run(t, s, "echo oops >&2; exit 13")

				assert.Equal(t, nonZeroExit, res.ExitStatus)
				assert.True(t, res.Failed())
				assert.Equal(t, "oops\n", res.Stderr)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "invalid-utf8-replaced",
			Description: "Invalid UTF-8 output is decoded with the replacement character",
			Run: func(t T, s *sshmcp.Session, _ string) {
				res := run(t, s, `printf '\377ok'`)

				assert.Equal(t, "\uFFFDok", res.Stdout)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "env-and-dir-options",
			Description: "WithEnv exports variables and WithDir changes directory before the command",
			Run: func(t T, s *sshmcp.Session, dir string) {
				run(t, s, "mkdir -p "+sshmcp.ShellQuote(dir))

				res := run(t, s, `echo "$GREETING"; pwd`,
					sshmcp.WithEnv("GREETING", "it's alive"),
					sshmcp.WithDir(dir),
				)

				lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
				require.Len(t, lines, 2)
				assert.Equal(t, "it's alive", lines[0])
				assert.True(t, strings.HasSuffix(lines[1], dir), "pwd %q is not %q", lines[1], dir)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "timeout",
			Description: "A command exceeding its timeout fails with CommandTimeoutError and the session stays usable",
			Run: func(t T, s *sshmcp.Session, _ string) {
				start := time.Now()
				_, err := s.ExecuteCommand(t.Context(), "sleep 5", 300*time.Millisecond)
				require.ErrorIs(t, err, sshmcp.ErrCommandTimeout)

				var timeoutErr *sshmcp.CommandTimeoutError
				require.ErrorAs(t, err, &timeoutErr)
				assert.Equal(t, s.ID(), timeoutErr.SessionID)
				assert.Less(t, time.Since(start), 4*time.Second)

				assert.Equal(t, sshmcp.StateConnected, s.State())

				res := run(t, s, "echo after")
				assert.Equal(t, "after\n", res.Stdout)
			},
		},
	}
}
