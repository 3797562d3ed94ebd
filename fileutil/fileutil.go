// Package fileutil provides file-transfer helpers shared by the sshmcp
// transports: progress and cancellation aware copying, remote path
// normalization and path traversal checks.
package fileutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ruffel/sshmcp"
)

// ProgressReader wraps an io.Reader to report progress via an
// sshmcp.ProgressFunc. Total is the expected size, or 0 if unknown.
type ProgressReader struct {
	io.Reader

	Total   int64
	Current int64
	Fn      sshmcp.ProgressFunc
}

// Read reads from the underlying reader and reports progress.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Current += int64(n)
		if pr.Fn != nil {
			pr.Fn(pr.Current, pr.Total)
		}
	}

	return n, err
}

// ContextReader checks for context cancellation before each Read so that a
// long io.Copy can be interrupted.
type ContextReader struct {
	Ctx    context.Context //nolint:containedctx
	Reader io.Reader
}

// Read checks for context cancellation before delegating to the underlying reader.
func (cr *ContextReader) Read(p []byte) (int, error) {
	if cr.Ctx.Err() != nil {
		return 0, cr.Ctx.Err()
	}

	return cr.Reader.Read(p)
}

// Copy copies src to dst, stopping early if ctx is cancelled and reporting
// progress against total when fn is set.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, total int64, fn sshmcp.ProgressFunc) (int64, error) {
	var r io.Reader = &ContextReader{Ctx: ctx, Reader: src}
	if fn != nil {
		r = &ProgressReader{Reader: r, Total: total, Fn: fn}
	}

	return io.Copy(dst, r)
}

// FileMode picks the destination mode: the override when set, otherwise the
// permission bits of the source.
func FileMode(src os.FileMode, override os.FileMode) os.FileMode {
	if override != 0 {
		return override
	}

	return src.Perm()
}

// RemotePath converts a user-supplied path to the forward-slash form SFTP
// servers expect and cleans it.
func RemotePath(p string) string {
	if p == "" {
		return p
	}

	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// CheckPathTraversal validates that target is a child of root using local
// filesystem path conventions. It guards directory downloads against entries
// that would escape the destination.
func CheckPathTraversal(root, target string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("illegal file path: cannot resolve root %s: %w", root, err)
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("illegal file path: cannot resolve target %s: %w", target, err)
	}

	if absRoot == absTarget {
		return nil
	}

	if !strings.HasPrefix(absTarget, absRoot+string(os.PathSeparator)) {
		return fmt.Errorf("illegal file path: %s is not within %s", target, root)
	}

	return nil
}

// CheckRemotePathTraversal is CheckPathTraversal for forward-slash remote paths.
func CheckRemotePathTraversal(root, target string) error {
	cleanRoot := path.Clean(root)
	cleanTarget := path.Clean(target)

	if cleanRoot == cleanTarget {
		return nil
	}

	prefix := cleanRoot + "/"
	if cleanRoot == "/" {
		prefix = "/"
	}

	if !strings.HasPrefix(cleanTarget, prefix) {
		return fmt.Errorf("illegal remote file path: %s is not within %s", target, root)
	}

	return nil
}
