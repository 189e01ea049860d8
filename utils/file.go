package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps report evidence on the local filesystem. Used when R2 is not configured.
type DiskStore struct {
	Root    string // directory files are written under
	BaseURL string // public prefix the directory is served from, e.g. "/uploads"
}

// EnsureDir creates the root directory if it doesn't exist.
func (d *DiskStore) EnsureDir() error {
	return os.MkdirAll(d.Root, os.ModePerm)
}

// Put writes body to Root/key and returns its public URL.
func (d *DiskStore) Put(_ context.Context, key string, body io.Reader, size int64, _ string) (string, error) {
	destPath, err := d.pathFor(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(body, size))
	if err != nil {
		_ = os.Remove(destPath)
		return "", err
	}
	if written != size {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("short write for %s: %d of %d bytes", key, written, size)
	}
	return strings.TrimRight(d.BaseURL, "/") + "/" + filepath.ToSlash(key), nil
}

// pathFor resolves key inside Root and rejects keys that escape it.
func (d *DiskStore) pathFor(key string) (string, error) {
	root, err := filepath.Abs(d.Root)
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, filepath.FromSlash(key))
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}
