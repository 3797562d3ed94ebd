// Package mock provides a controllable implementation of sshmcp.Transport
// for testing purposes.
//
// It allows defining expectations for dialing, command execution and file
// operations, enabling deterministic unit tests for code that builds upon
// sshmcp sessions.
//
// Usage:
//
//	conn := &mock.Conn{}
//	conn.On("Exec", mock.Anything, "uptime", mock.Anything, mock.Anything).
//		Run(mock.WriteOutput("up 3 days\n", "")).Return(0, nil)
//	tr := mock.New()
//	tr.On("Dial", mock.Anything, mock.Anything).Return(conn, nil)
//	// pass 'tr' to sshmcp.NewRegistry
package mock
