package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/checksum"
	"github.com/starford/spendscope/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the inbox directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute inbox path.
func (f *FS) Root() string { return f.root }

// Rel converts an absolute path under the inbox into an inbox-relative one.
func (f *FS) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("storage: %w: %s is outside the inbox", apperr.ErrInvalidInput, abs)
	}
	return filepath.ToSlash(rel), nil
}

// safePath resolves a relative path against the inbox root and rejects
// any result that escapes it.
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: %w: absolute paths not allowed: %s", apperr.ErrInvalidInput, rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: %w: path escapes inbox root: %s", apperr.ErrInvalidInput, rel)
	}
	return abs, nil
}

// List walks dir (relative to root) and returns metadata for every import
// file outside RejectedDir, in lexical order.
func (f *FS) List(dir string) ([]models.ImportMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	rejected := filepath.Join(f.root, RejectedDir)

	out := []models.ImportMetadata{}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p == rejected || (p != base && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !IsImportFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := checksum.File(p)
		if err != nil {
			return err
		}
		rel, _ := f.Rel(p)
		out = append(out, models.ImportMetadata{
			Path:      rel,
			Checksum:  sum,
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of an inbox file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file, fsync, rename. The temp file is
// hidden so List and the watcher ignore it.
func (f *FS) Write(path string, content []byte) error {
	if !IsImportFile(path) {
		return fmt.Errorf("storage: %w: unsupported file type: %s", apperr.ErrInvalidInput, path)
	}
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".spendscope-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the inbox.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", path, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Reject moves a file into RejectedDir, suffixing the name with a timestamp
// so repeated failures do not overwrite each other.
func (f *FS) Reject(path string) (string, error) {
	absOld, err := f.safePath(path)
	if err != nil {
		return "", err
	}
	e := ext(path)
	base := strings.TrimSuffix(filepath.Base(absOld), e)
	target := filepath.Join(RejectedDir, fmt.Sprintf("%s.%s%s", base, time.Now().UTC().Format("20060102T150405"), e))
	absNew, err := f.safePath(target)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir for reject: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return "", fmt.Errorf("storage: reject: %w", err)
	}
	return filepath.ToSlash(target), nil
}

func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
