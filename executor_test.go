package sshmcp_test

import (
	"errors"
	"testing"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/providers/mock"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunBuffered(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	conn.On("Exec", testifymock.Anything, "true", testifymock.Anything, testifymock.Anything).Return(0, nil)
	conn.On("Exec", testifymock.Anything, "apt-get install foo", testifymock.Anything, testifymock.Anything).
		Run(mock.WriteOutput("", "Reading package lists...\nE: Unable to locate package foo\n")).
		Return(100, nil)

	s, _ := connectedSession(t, conn)

	res, err := sshmcp.RunBuffered(t.Context(), s, "true", 0)
	require.NoError(t, err)
	assert.True(t, res.Success())

	res, err = sshmcp.RunBuffered(t.Context(), s, "apt-get install foo", 0)

	var exitErr *sshmcp.ExitStatusError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 100, res.ExitStatus)
	assert.Equal(t, `command "apt-get install foo" exited with status 100: E: Unable to locate package foo`, err.Error())
}

func TestRunLineStream_TransportError(t *testing.T) {
	t.Parallel()

	broken := errors.New("reset by peer")

	conn := newMockConn()
	conn.On("Exec", testifymock.Anything, testifymock.Anything, testifymock.Anything, testifymock.Anything).Return(-1, broken)

	s, _ := connectedSession(t, conn)

	_, err := sshmcp.RunLineStream(t.Context(), s, "ls", func(string) {})
	require.ErrorIs(t, err, broken)
}
