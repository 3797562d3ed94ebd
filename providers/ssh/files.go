package ssh

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/fileutil"
)

// Upload copies a local file or directory to remotePath over SFTP, creating
// missing remote parent directories.
func (c *Conn) Upload(ctx context.Context, localPath, remotePath string, cfg sshmcp.FileConfig) error {
	client, err := c.sftpClient()
	if err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	remotePath = fileutil.RemotePath(remotePath)

	if info.IsDir() {
		if !cfg.Recursive {
			return fmt.Errorf("%s is a directory and recursive transfer is disabled", localPath)
		}

		return uploadDir(ctx, client, localPath, remotePath, cfg)
	}

	return uploadFile(ctx, client, localPath, remotePath, info.Mode(), cfg)
}

func uploadDir(ctx context.Context, client *sftp.Client, localBase, remoteBase string, cfg sshmcp.FileConfig) error {
	return filepath.Walk(localBase, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(localBase, p)
		if err != nil {
			return err
		}

		remotePath := path.Join(remoteBase, filepath.ToSlash(relPath))

		if info.IsDir() {
			if err := client.MkdirAll(remotePath); err != nil {
				return fmt.Errorf("failed to create remote directory %q: %w", remotePath, err)
			}

			return nil
		}

		return uploadFile(ctx, client, p, remotePath, info.Mode(), cfg)
	})
}

func uploadFile(ctx context.Context, client *sftp.Client, localPath, remotePath string, srcMode os.FileMode, cfg sshmcp.FileConfig) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	var size int64
	if info, err := src.Stat(); err == nil {
		size = info.Size()
	}

	if parent := path.Dir(remotePath); parent != "." && parent != "/" {
		if err := client.MkdirAll(parent); err != nil {
			return fmt.Errorf("failed to create remote directory %q: %w", parent, err)
		}
	}

	dst, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create remote file %q: %w", remotePath, err)
	}

	defer func() { _ = dst.Close() }()

	if _, err := fileutil.Copy(ctx, dst, src, size, cfg.Progress); err != nil {
		return fmt.Errorf("failed to write remote file %q: %w", remotePath, err)
	}

	if err := client.Chmod(remotePath, fileutil.FileMode(srcMode, cfg.Permissions)); err != nil {
		return fmt.Errorf("failed to chmod remote file %q: %w", remotePath, err)
	}

	return dst.Close()
}

// Download copies a remote file or directory to localPath over SFTP.
func (c *Conn) Download(ctx context.Context, remotePath, localPath string, cfg sshmcp.FileConfig) error {
	client, err := c.sftpClient()
	if err != nil {
		return err
	}

	remotePath = fileutil.RemotePath(remotePath)

	info, err := client.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat remote %q: %w", remotePath, err)
	}

	if info.IsDir() {
		if !cfg.Recursive {
			return fmt.Errorf("%s is a directory and recursive transfer is disabled", remotePath)
		}

		base, err := client.RealPath(remotePath)
		if err != nil {
			return fmt.Errorf("resolve remote %q: %w", remotePath, err)
		}

		return downloadDir(ctx, client, base, localPath, cfg)
	}

	return downloadFile(ctx, client, remotePath, localPath, info.Mode(), cfg)
}

func downloadDir(ctx context.Context, client *sftp.Client, remoteBase, localBase string, cfg sshmcp.FileConfig) error {
	walker := client.Walk(remoteBase)

	for walker.Step() {
		if err := walker.Err(); err != nil {
			return err
		}

		p := walker.Path()

		relPath, err := remoteRel(remoteBase, p)
		if err != nil {
			return err
		}

		localPath := filepath.Join(localBase, filepath.FromSlash(relPath))

		if err := fileutil.CheckPathTraversal(localBase, localPath); err != nil {
			return err
		}

		info := walker.Stat()

		if info.IsDir() {
			if err := os.MkdirAll(localPath, info.Mode().Perm()|0o700); err != nil {
				return err
			}

			continue
		}

		if err := downloadFile(ctx, client, p, localPath, info.Mode(), cfg); err != nil {
			return err
		}
	}

	return nil
}

func downloadFile(ctx context.Context, client *sftp.Client, remotePath, localPath string, srcMode os.FileMode, cfg sshmcp.FileConfig) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	src, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote %q: %w", remotePath, err)
	}

	defer func() { _ = src.Close() }()

	var size int64
	if info, err := src.Stat(); err == nil {
		size = info.Size()
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}

	mode := fileutil.FileMode(srcMode, cfg.Permissions)

	dst, err := os.OpenFile(localPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	defer func() { _ = dst.Close() }()

	if _, err := fileutil.Copy(ctx, dst, src, size, cfg.Progress); err != nil {
		return err
	}

	if err := os.Chmod(localPath, mode); err != nil {
		return fmt.Errorf("failed to chmod local file: %w", err)
	}

	return dst.Close()
}

// remoteRel returns target relative to the absolute directory base, failing
// if target lies outside it.
func remoteRel(base, target string) (string, error) {
	if err := fileutil.CheckRemotePathTraversal(base, target); err != nil {
		return "", err
	}

	base = path.Clean(base)
	target = path.Clean(target)

	if base == target {
		return "", nil
	}

	return strings.TrimPrefix(strings.TrimPrefix(target, base), "/"), nil
}

// ListDir lists a remote directory.
func (c *Conn) ListDir(_ context.Context, remotePath string) ([]sshmcp.FileEntry, error) {
	client, err := c.sftpClient()
	if err != nil {
		return nil, err
	}

	infos, err := client.ReadDir(fileutil.RemotePath(remotePath))
	if err != nil {
		return nil, fmt.Errorf("read remote directory %q: %w", remotePath, err)
	}

	entries := make([]sshmcp.FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, sshmcp.FileEntry{
			Name:    info.Name(),
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}

	return entries, nil
}
