package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalProvider writes objects below a base directory.
type LocalProvider struct {
	basePath string
}

func NewLocalProvider(basePath string) (*LocalProvider, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &LocalProvider{basePath: basePath}, nil
}

// Create writes to a temporary sibling file that is renamed into place on Close.
func (p *LocalProvider) Create(_ context.Context, key string) (Object, error) {
	if !filepath.IsLocal(key) {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	fullPath := filepath.Join(p.basePath, key)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(fullPath)+".*.partial")
	if err != nil {
		return nil, fmt.Errorf("failed to create file for %s: %w", key, err)
	}
	return &localObject{f: f, path: fullPath}, nil
}

func (p *LocalProvider) Location(key string) string {
	abs, err := filepath.Abs(filepath.Join(p.basePath, key))
	if err != nil {
		abs = filepath.Join(p.basePath, key)
	}
	return "file://" + filepath.ToSlash(abs)
}

type localObject struct {
	f    *os.File
	path string
}

func (o *localObject) Write(b []byte) (int, error) {
	return o.f.Write(b)
}

func (o *localObject) Close() error {
	if err := o.f.Close(); err != nil {
		_ = os.Remove(o.f.Name())
		return err
	}
	if err := os.Rename(o.f.Name(), o.path); err != nil {
		_ = os.Remove(o.f.Name())
		return err
	}
	slog.Info("Local file write completed", "path", o.path)
	return nil
}

func (o *localObject) Abort(cause error) {
	_ = o.f.Close()
	_ = os.Remove(o.f.Name())
	slog.Warn("Local file write aborted", "path", o.path, "error", cause)
}
