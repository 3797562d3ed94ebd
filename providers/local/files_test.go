package local

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTransfer(t *testing.T) {
	t.Parallel()

	conn := dial(t)
	ctx := context.Background()

	tmpDir := t.TempDir()
	srcFile := filepath.Join(tmpDir, "source.txt")
	content := []byte("hello file transfer")

	require.NoError(t, os.WriteFile(srcFile, content, 0o644))

	t.Run("Upload (Copy)", func(t *testing.T) {
		t.Parallel()

		dstFile := filepath.Join(tmpDir, "dest", "target.txt")

		cfg := sshmcp.DefaultFileConfig()
		cfg.Permissions = 0o600

		var reported int64
		cfg.Progress = func(current, _ int64) { reported = current }

		require.NoError(t, conn.Upload(ctx, srcFile, dstFile, cfg))

		readContent, err := os.ReadFile(dstFile)
		require.NoError(t, err)
		assert.Equal(t, content, readContent)
		assert.Equal(t, int64(len(content)), reported)

		if runtime.GOOS != "windows" {
			info, err := os.Stat(dstFile)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		}
	})

	t.Run("Download (Copy)", func(t *testing.T) {
		t.Parallel()

		downloadDst := filepath.Join(tmpDir, "downloaded", "file.txt")
		require.NoError(t, conn.Download(ctx, srcFile, downloadDst, sshmcp.DefaultFileConfig()))

		readContent, err := os.ReadFile(downloadDst)
		require.NoError(t, err)
		assert.Equal(t, content, readContent)
	})

	t.Run("Recursive Directory", func(t *testing.T) {
		t.Parallel()

		srcDir := filepath.Join(tmpDir, "src_tree")
		dstDir := filepath.Join(tmpDir, "dst_tree")

		require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "file.txt"), content, 0o644))

		require.NoError(t, conn.Upload(ctx, srcDir, dstDir, sshmcp.DefaultFileConfig()))

		readContent, err := os.ReadFile(filepath.Join(dstDir, "sub", "file.txt"))
		require.NoError(t, err)
		assert.Equal(t, content, readContent)
	})
}

func TestFileTransfer_Validation(t *testing.T) {
	t.Parallel()

	conn := dial(t)
	ctx := context.Background()

	tmpDir := t.TempDir()
	srcFile := filepath.Join(tmpDir, "source.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("content"), 0o644))

	t.Run("recursive disabled for directories", func(t *testing.T) {
		t.Parallel()

		srcDir := filepath.Join(tmpDir, "src_tree")
		require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755))

		cfg := sshmcp.DefaultFileConfig()
		cfg.Recursive = false

		err := conn.Upload(ctx, srcDir, filepath.Join(tmpDir, "dst_tree"), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recursive transfer is disabled")
	})

	t.Run("same source and destination", func(t *testing.T) {
		t.Parallel()

		err := conn.Upload(ctx, srcFile, srcFile, sshmcp.DefaultFileConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "same file")
	})

	t.Run("list directory", func(t *testing.T) {
		t.Parallel()

		entries, err := conn.ListDir(ctx, tmpDir)
		require.NoError(t, err)

		var names []string
		for _, e := range entries {
			names = append(names, e.Name)
		}

		assert.Contains(t, names, "source.txt")
	})

	t.Run("upload fails when connection is closed", func(t *testing.T) {
		t.Parallel()

		closed := dial(t)
		require.NoError(t, closed.Close())

		err := closed.Upload(ctx, srcFile, filepath.Join(tmpDir, "dest.txt"), sshmcp.DefaultFileConfig())
		require.ErrorIs(t, err, ErrClosed)
	})
}
