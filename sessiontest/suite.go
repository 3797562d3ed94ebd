package sessiontest

import (
	"context"
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/require"
)

// Standard categories for grouping tests.
const (
	CategoryCore       = "core"
	CategoryLifecycle  = "lifecycle"
	CategoryStream     = "stream"
	CategoryFilesystem = "filesystem"
	CategoryShell      = "shell"
)

// T is the minimal interface required for testify/assert and require.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Skipf(format string, args ...any)
	Context() context.Context
	TempDir() string
	Name() string
	Cleanup(fn func())
}

// Target describes the transport under test.
type Target struct {
	Transport sshmcp.Transport
	Config    sshmcp.ConnectionConfig

	// RemoteDir is a writable directory on the remote side. Each contract
	// works in its own subdirectory. When empty, the transport is assumed to
	// share the local filesystem and a test temp dir is used.
	RemoteDir string
}

// TestCase defines a single behavioral contract requirement.
type TestCase struct {
	Category    string
	Name        string
	Description string
	Prereq      func(t T, s *sshmcp.Session) (ok bool, reason string)
	Run         func(t T, s *sshmcp.Session, dir string)
}

// ID returns the stable, globally unique contract identifier.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s/%s", tc.Category, tc.Name)
}

// Verify is the standard Go test entry point for transport authors. Every
// contract runs on a freshly connected session.
func Verify(t *testing.T, target Target) {
	t.Helper()

	for _, tc := range AllContracts() {
		t.Run(tc.ID(), func(t *testing.T) {
			s := Connect(t, target)

			if tc.Prereq != nil {
				ok, reason := tc.Prereq(t, s)
				if !ok {
					t.Skipf("prereq unmet: %s", reason)
				}
			}

			tc.Run(t, s, workDir(t, target))
		})
	}
}

// Connect creates and connects a session for target, disconnecting it when
// the test ends.
func Connect(t T, target Target) *sshmcp.Session {
	s, err := sshmcp.NewSession(target.Config, target.Transport)
	require.NoError(t, err)

	_, err = s.Connect(t.Context())
	require.NoError(t, err)

	t.Cleanup(s.Disconnect)

	return s
}

func workDir(t T, target Target) string {
	if target.RemoteDir == "" {
		return t.TempDir()
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	return path.Join(target.RemoteDir, "sessiontest-"+name)
}

// run executes command and fails the test on transport errors.
func run(t T, s *sshmcp.Session, command string, opts ...sshmcp.ExecOption) *sshmcp.CommandResult {
	res, err := s.ExecuteCommand(t.Context(), command, 0, opts...)
	require.NoError(t, err)
	require.NotNil(t, res)

	return res
}

// AllContracts returns all test cases for the contract test suite.
func AllContracts() []TestCase {
	const initialCapacity = 32

	contracts := make([]TestCase, 0, initialCapacity)

	contracts = append(contracts, coreContracts()...)
	contracts = append(contracts, lifecycleContracts()...)
	contracts = append(contracts, streamContracts()...)
	contracts = append(contracts, fileContracts()...)
	contracts = append(contracts, shellContracts()...)

	return contracts
}
