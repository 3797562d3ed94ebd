package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ruffel/sshmcp"
)

// Upload copies a local file or directory to remotePath (also local).
func (c *Conn) Upload(ctx context.Context, localPath, remotePath string, cfg sshmcp.FileConfig) error {
	if c.isClosed() {
		return fmt.Errorf("cannot upload files: %w", ErrClosed)
	}

	return c.transfer(ctx, localPath, remotePath, cfg)
}

// Download copies remotePath (a local path) to localPath.
func (c *Conn) Download(ctx context.Context, remotePath, localPath string, cfg sshmcp.FileConfig) error {
	if c.isClosed() {
		return fmt.Errorf("cannot download files: %w", ErrClosed)
	}

	return c.transfer(ctx, remotePath, localPath, cfg)
}

// ListDir lists a directory on the local filesystem.
func (c *Conn) ListDir(_ context.Context, remotePath string) ([]sshmcp.FileEntry, error) {
	if c.isClosed() {
		return nil, fmt.Errorf("cannot list directory: %w", ErrClosed)
	}

	dirEntries, err := os.ReadDir(remotePath)
	if err != nil {
		return nil, err
	}

	entries := make([]sshmcp.FileEntry, 0, len(dirEntries))

	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // Removed between ReadDir and Info.
			}

			return nil, err
		}

		entries = append(entries, sshmcp.FileEntry{
			Name:    de.Name(),
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
			IsDir:   de.IsDir(),
		})
	}

	return entries, nil
}

func (c *Conn) transfer(ctx context.Context, src, dst string, cfg sshmcp.FileConfig) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if !cfg.Recursive {
			return fmt.Errorf("%s is a directory and recursive transfer is disabled", src)
		}

		return copyDir(ctx, src, dst, cfg)
	}

	if samePath(src, dst) {
		return fmt.Errorf("source and destination are the same file: %s", src)
	}

	return copyFile(ctx, src, dst, info.Mode(), cfg)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && absA == absB
}
