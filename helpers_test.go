package sshmcp_test

import (
	"testing"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/providers/mock"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testConfig returns a valid password config with keepalive disabled.
func testConfig(t *testing.T, opts ...sshmcp.ConfigOption) sshmcp.ConnectionConfig {
	t.Helper()

	base := []sshmcp.ConfigOption{sshmcp.WithPassword("pw"), sshmcp.WithKeepaliveInterval(0)}

	cfg, err := sshmcp.NewConnectionConfig("10.0.0.5", "ops", append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

// mockTransport returns a transport whose every Dial yields conn.
func mockTransport(conn sshmcp.Conn) *mock.Transport {
	tr := mock.New()
	tr.On("Dial", testifymock.Anything, testifymock.Anything).Return(conn, nil)

	return tr
}

// newMockConn returns a mock connection that tolerates Close.
func newMockConn() *mock.Conn {
	conn := &mock.Conn{}
	conn.On("Close").Return(nil).Maybe()

	return conn
}

// connectedSession returns a session connected over conn. It is
// disconnected when the test ends.
func connectedSession(t *testing.T, conn sshmcp.Conn, opts ...sshmcp.ConfigOption) (*sshmcp.Session, *mock.Transport) {
	t.Helper()

	tr := mockTransport(conn)

	s, err := sshmcp.NewSession(testConfig(t, opts...), tr)
	require.NoError(t, err)

	_, err = s.Connect(t.Context())
	require.NoError(t, err)

	t.Cleanup(s.Disconnect)

	return s, tr
}
