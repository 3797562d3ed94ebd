package sessiontest

import (
	"strings"
	"sync"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lifecycleContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryLifecycle,
			Name:        "connect-idempotent",
			Description: "Connect on a connected session is a no-op",
			Run: func(t T, s *sshmcp.Session, _ string) {
				before := s.Info()

				info, err := s.Connect(t.Context())
				require.NoError(t, err)
				assert.Equal(t, sshmcp.StateConnected, info.State)
				assert.Equal(t, before.ConnectedAt, info.ConnectedAt)
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "disconnect-idempotent",
			Description: "Disconnecting twice leaves the session Disconnected without error",
			Run: func(t T, s *sshmcp.Session, _ string) {
				s.Disconnect()
				s.Disconnect()

				assert.Equal(t, sshmcp.StateDisconnected, s.State())
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "execute-after-disconnect-fails",
			Description: "ExecuteCommand on a disconnected session returns NotConnectedError",
			Run: func(t T, s *sshmcp.Session, _ string) {
				s.Disconnect()

				_, err := s.ExecuteCommand(t.Context(), "echo nope", 0)
				require.ErrorIs(t, err, sshmcp.ErrNotConnected)

				var notConnected *sshmcp.NotConnectedError
				require.ErrorAs(t, err, &notConnected)
				assert.Equal(t, sshmcp.StateDisconnected, notConnected.State)
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "reconnect-after-disconnect",
			Description: "A disconnected session can connect again",
			Run: func(t T, s *sshmcp.Session, _ string) {
				s.Disconnect()

				_, err := s.Connect(t.Context())
				require.NoError(t, err)

				res := run(t, s, "echo again")
				assert.Equal(t, "again\n", res.Stdout)
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "info-tracks-activity",
			Description: "Info reports command count and activity after each command",
			Run: func(t T, s *sshmcp.Session, _ string) {
				run(t, s, "true")
				run(t, s, "false")

				info := s.Info()
				assert.Equal(t, 2, info.CommandCount)
				assert.False(t, info.LastActivity.Before(info.ConnectedAt))
				assert.Equal(t, sshmcp.StateConnected, info.State)
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "commands-serialized",
			Description: "Concurrent commands on one session never overlap",
			Run: func(t T, s *sshmcp.Session, dir string) {
				run(t, s, "mkdir -p "+sshmcp.ShellQuote(dir))

				logFile := sshmcp.ShellQuote(dir + "/order.log")
				script := "echo start >> " + logFile + "; sleep 0.2; echo end >> " + logFile

				const workers = 3

				var wg sync.WaitGroup

				errs := make(chan error, workers)

				for range workers {
					wg.Add(1)

					go func() {
						defer wg.Done()

						_, err := s.ExecuteCommand(t.Context(), script, 0)
						errs <- err
					}()
				}

				wg.Wait()
				close(errs)

				for err := range errs {
					require.NoError(t, err)
				}

				res := run(t, s, "cat "+logFile)
				lines := strings.Fields(res.Stdout)
				require.Len(t, lines, 2*workers)

				for i := 0; i < len(lines); i += 2 {
					assert.Equal(t, "start", lines[i])
					assert.Equal(t, "end", lines[i+1])
				}
			},
		},
	}
}
