package sessiontest

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/require"
)

const shellReadTimeout = 10 * time.Second

func shellContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryShell,
			Name:        "interactive-echo",
			Description: "An interactive shell evaluates input and exits on request",
			Run: func(t T, s *sshmcp.Session, _ string) {
				ch, err := s.OpenShell(t.Context(), "xterm", 100, 30)
				if errors.Is(err, sshmcp.ErrNotSupported) {
					t.Skipf("shell not supported: %v", err)
				}

				require.NoError(t, err)

				defer func() { _ = ch.Close() }()

				require.NoError(t, ch.Resize(120, 40))

				// The expansion proves the shell evaluated the line rather
				// than the terminal echoing it.
				_, err = io.WriteString(ch, "echo sessiontest-$((40+2))\n")
				require.NoError(t, err)

				out, found := readUntil(ch, "sessiontest-42", shellReadTimeout)
				require.True(t, found, "shell output: %q", out)

				_, err = io.WriteString(ch, "exit\n")
				require.NoError(t, err)

				done := make(chan struct{})
				go func() {
					_ = ch.Wait()

					close(done)
				}()

				select {
				case <-done:
				case <-time.After(shellReadTimeout):
					t.Errorf("shell did not exit")
				}
			},
		},
	}
}

// readUntil reads from r until the accumulated output contains target or the
// timeout expires.
func readUntil(r io.Reader, target string, timeout time.Duration) (string, bool) {
	type chunk struct {
		data string
		err  error
	}

	chunks := make(chan chunk, 16)

	go func() {
		buf := make([]byte, 4096)

		for {
			n, err := r.Read(buf)
			chunks <- chunk{data: string(buf[:n]), err: err}

			if err != nil {
				close(chunks)

				return
			}
		}
	}()

	var acc strings.Builder

	deadline := time.After(timeout)

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return acc.String(), false
			}

			acc.WriteString(c.data)

			if strings.Contains(acc.String(), target) {
				return acc.String(), true
			}
		case <-deadline:
			return acc.String(), false
		}
	}
}
