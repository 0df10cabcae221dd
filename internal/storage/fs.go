package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/models"
)

const (
	noteExt   = ".md"
	tmpPrefix = ".vaultsnap-tmp-"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

var _ Provider = (*FS)(nil)

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

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

func isNote(name string, skip []string) bool {
	if !strings.EqualFold(filepath.Ext(name), noteExt) || strings.HasPrefix(name, tmpPrefix) {
		return false
	}
	lower := strings.ToLower(name)
	for _, s := range skip {
		if s != "" && strings.HasSuffix(lower, strings.ToLower(s)) {
			return false
		}
	}
	return true
}

// List walks the vault and returns metadata for every note matching opts.
func (f *FS) List(opts ListOptions) ([]models.NoteMetadata, error) {
	var out []models.NoteMetadata
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return f.skipUnreadable(p, d, walkErr)
		}
		if d.IsDir() {
			if p != f.root && !opts.Recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !isNote(d.Name(), opts.SkipSuffixes) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.NoteMetadata{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// skipUnreadable lets a walk continue past a path it cannot read. Only a
// failure on the vault root itself ends the walk.
func (f *FS) skipUnreadable(p string, d fs.DirEntry, err error) error {
	if p == f.root {
		return err
	}
	slog.Warn("storage: skipping unreadable path", slog.String("path", p), slog.String("error", err.Error()))
	if d != nil && d.IsDir() {
		return fs.SkipDir
	}
	return nil
}

// Latest returns the note with the newest modification time. Ties keep the
// first note in walk order.
func (f *FS) Latest(opts ListOptions) (models.NoteMetadata, error) {
	metas, err := f.List(opts)
	if err != nil {
		return models.NoteMetadata{}, err
	}
	if len(metas) == 0 {
		return models.NoteMetadata{}, fmt.Errorf("storage: %s: %w", f.root, apperr.ErrNoCandidate)
	}
	latest := metas[0]
	for _, m := range metas[1:] {
		if m.ModTime.After(latest.ModTime) {
			latest = m
		}
	}
	return latest, nil
}

// Stat returns metadata for a vault file.
func (f *FS) Stat(path string) (models.NoteMetadata, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.NoteMetadata{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NoteMetadata{}, fmt.Errorf("storage: stat %s: %w", path, apperr.ErrNotFound)
		}
		return models.NoteMetadata{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return models.NoteMetadata{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces content: tmp file → fsync → rename. Readers see
// either the old or the new note, never a partial one.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	perm := os.FileMode(0o644)
	if info, statErr := os.Stat(abs); statErr == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
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
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
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
