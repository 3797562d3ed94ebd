package sessiontest

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// supportsFiles skips file contracts on transports without FileTransfer.
func supportsFiles(t T, s *sshmcp.Session) (bool, string) {
	_, err := s.ListDir(t.Context(), ".")
	if errors.Is(err, sshmcp.ErrNotSupported) {
		return false, "transport does not implement file transfer"
	}

	return true, ""
}

//nolint:funlen // Contract registration function; length comes from many test cases.
func fileContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryFilesystem,
			Name:        "upload-failure-source-missing",
			Description: "Error returned when we try to upload a non-existent local file",
			Prereq:      supportsFiles,
			Run: func(t T, s *sshmcp.Session, dir string) {
				src := filepath.Join(t.TempDir(), "this-file-really-does-not-exist-12345")

				err := s.Upload(t.Context(), src, path.Join(dir, "should-not-exist"))
				require.Error(t, err)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-creates-parents",
			Description: "Upload creates missing remote parent directories",
			Prereq:      supportsFiles,
			Run: func(t T, s *sshmcp.Session, dir string) {
				content := "hello world from sshmcp"

				srcPath := filepath.Join(t.TempDir(), "test.txt")
				require.NoError(t, os.WriteFile(srcPath, []byte(content), 0o644))

				dstPath := path.Join(dir, "nested", "dir", "test.txt")
				require.NoError(t, s.Upload(t.Context(), srcPath, dstPath, sshmcp.WithPermissions(0o600)))

				res := run(t, s, "cat "+sshmcp.ShellQuote(dstPath))
				require.Zero(t, res.ExitStatus)
				assert.Equal(t, content, res.Stdout)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-overwrite",
			Description: "Uploading over an existing file replaces its content",
			Prereq:      supportsFiles,
			Run: func(t T, s *sshmcp.Session, dir string) {
				srcPath := filepath.Join(t.TempDir(), "test.txt")
				dstPath := path.Join(dir, "overwrite.txt")

				require.NoError(t, os.WriteFile(srcPath, []byte("initial content, longer"), 0o644))
				require.NoError(t, s.Upload(t.Context(), srcPath, dstPath))

				require.NoError(t, os.WriteFile(srcPath, []byte("updated"), 0o644))
				require.NoError(t, s.Upload(t.Context(), srcPath, dstPath))

				res := run(t, s, "cat "+sshmcp.ShellQuote(dstPath))
				assert.Equal(t, "updated", res.Stdout)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "directory-round-trip",
			Description: "A directory tree uploads and downloads intact",
			Prereq:      supportsFiles,
			Run: func(t T, s *sshmcp.Session, dir string) {
				srcDir := filepath.Join(t.TempDir(), "upload-tree")
				require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "subdir"), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(srcDir, "file1.txt"), []byte("root file"), 0o644))
				require.NoError(t, os.WriteFile(filepath.Join(srcDir, "subdir", "file2.txt"), []byte("sub file"), 0o644))

				remoteDir := path.Join(dir, "tree")
				require.NoError(t, s.Upload(t.Context(), srcDir, remoteDir))

				localDir := filepath.Join(t.TempDir(), "nested", "download")
				require.NoError(t, s.Download(t.Context(), remoteDir, localDir))

				got, err := os.ReadFile(filepath.Join(localDir, "subdir", "file2.txt"))
				require.NoError(t, err)
				assert.Equal(t, "sub file", string(got))

				got, err = os.ReadFile(filepath.Join(localDir, "file1.txt"))
				require.NoError(t, err)
				assert.Equal(t, "root file", string(got))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "list-directory",
			Description: "ListDir reports names, sizes and directory flags",
			Prereq:      supportsFiles,
			Run: func(t T, s *sshmcp.Session, dir string) {
				run(t, s, "mkdir -p "+sshmcp.ShellQuote(path.Join(dir, "sub"))+" && printf abc > "+sshmcp.ShellQuote(path.Join(dir, "three.txt")))

				entries, err := s.ListDir(t.Context(), dir)
				require.NoError(t, err)

				byName := make(map[string]sshmcp.FileEntry, len(entries))
				for _, e := range entries {
					byName[e.Name] = e
				}

				require.Contains(t, byName, "sub")
				require.Contains(t, byName, "three.txt")
				assert.True(t, byName["sub"].IsDir)
				assert.False(t, byName["three.txt"].IsDir)
				assert.Equal(t, int64(3), byName["three.txt"].Size)
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "download-missing-fails",
			Description: "Downloading a missing remote path fails with a transport error",
			Prereq:      supportsFiles,
			Run: func(t T, s *sshmcp.Session, dir string) {
				err := s.Download(t.Context(), path.Join(dir, "missing.txt"), filepath.Join(t.TempDir(), "out.txt"))
				require.Error(t, err)

				var transportErr *sshmcp.TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.True(t, strings.Contains(err.Error(), "missing.txt"), err.Error())
			},
		},
	}
}
