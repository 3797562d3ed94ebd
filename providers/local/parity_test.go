package local_test

import (
	"testing"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/providers/local"
	"github.com/ruffel/sshmcp/sessiontest"
	"github.com/stretchr/testify/require"
)

func TestLocalParity(t *testing.T) {
	t.Parallel()

	cfg, err := sshmcp.NewConnectionConfig("localhost", "tester", sshmcp.WithKeepaliveInterval(0))
	require.NoError(t, err)

	sessiontest.Verify(t, sessiontest.Target{
		Transport: local.New(),
		Config:    cfg,
	})
}
