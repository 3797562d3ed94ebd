package local

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/fileutil"
)

// copyDir mirrors the tree at src under dst. Directories keep their mode but
// stay writable by the owner so their contents can be created.
func copyDir(ctx context.Context, src, dst string, cfg sshmcp.FileConfig) error {
	return filepath.WalkDir(src, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)
		if err := fileutil.CheckPathTraversal(dst, target); err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}

		return copyFile(ctx, p, target, info.Mode(), cfg)
	})
}

func copyFile(ctx context.Context, src, dst string, srcMode os.FileMode, cfg sshmcp.FileConfig) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	var size int64
	if st, err := in.Stat(); err == nil {
		size = st.Size()
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	mode := fileutil.FileMode(srcMode, cfg.Permissions)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := fileutil.Copy(ctx, out, in, size, cfg.Progress); err != nil {
		return err
	}

	// Existing files and the umask both defeat the OpenFile mode.
	if err := out.Chmod(mode); err != nil {
		return err
	}

	if err := out.Sync(); err != nil {
		return err
	}

	return out.Close()
}
