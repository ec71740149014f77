// Package adapter contains infrastructure adapters for the shcov CLI.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	m "shcov.dev/pkg/shcov/internal/model"
)

// SourceFSAdapter abstracts the filesystem operations the domain layer
// relies on when discovering and classifying scripts, so the workflow can be
// tested without touching the disk.
type SourceFSAdapter interface {
	// FindScripts walks root recursively and returns every regular file (or
	// symlink to one) whose name matches one of the include globs. Entries
	// that cannot be read are skipped.
	FindScripts(ctx context.Context, root m.Path, include []string) ([]m.Path, error)

	// ReadFile loads a file and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// FileInfo returns metadata for a path, following symlinks.
	FileInfo(path m.Path) (os.FileInfo, error)

	// RelPath returns target relative to base, or target itself when no
	// relative form exists.
	RelPath(base, target m.Path) m.Path
}

// LocalSourceFSAdapter implements SourceFSAdapter on top of an afero.Fs.
type LocalSourceFSAdapter struct {
	fs afero.Fs
}

// NewLocalSourceFSAdapter constructs an adapter backed by the OS filesystem.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return NewSourceFSAdapter(afero.NewOsFs())
}

// NewSourceFSAdapter constructs an adapter backed by fs.
func NewSourceFSAdapter(fs afero.Fs) *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{fs: fs}
}

// FindScripts implements SourceFSAdapter.
func (a *LocalSourceFSAdapter) FindScripts(ctx context.Context, root m.Path, include []string) ([]m.Path, error) {
	for _, pattern := range include {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
	}

	rootStr := filepath.Clean(string(root))
	scripts := make([]m.Path, 0)

	err := afero.Walk(a.fs, rootStr, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			slog.Warn("Skipping unreadable entry", "path", path, "error", err)
			return nil
		}

		if info.IsDir() || !matchesAny(include, rootStr, path) {
			return nil
		}

		if !a.isRegular(path, info) {
			slog.Debug("Skipping non-regular file", "path", path, "mode", info.Mode().String())
			return nil
		}

		scripts = append(scripts, m.Path(path))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", rootStr, err)
	}

	sort.Slice(scripts, func(i, j int) bool { return scripts[i] < scripts[j] })

	return scripts, nil
}

func (a *LocalSourceFSAdapter) isRegular(path string, info os.FileInfo) bool {
	if info.Mode().IsRegular() {
		return true
	}

	if info.Mode()&os.ModeSymlink == 0 {
		return false
	}

	target, err := a.fs.Stat(path)
	if err != nil {
		return false
	}

	return target.Mode().IsRegular()
}

// matchesAny matches patterns containing a separator against the path
// relative to root and all others against the base name.
func matchesAny(patterns []string, root, path string) bool {
	base := filepath.Base(path)

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	for _, pattern := range patterns {
		name := base
		if strings.ContainsRune(pattern, filepath.Separator) {
			name = rel
		}

		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

// ReadFile implements SourceFSAdapter.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return afero.ReadFile(a.fs, string(path))
}

// FileInfo implements SourceFSAdapter.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return a.fs.Stat(string(path))
}

// RelPath implements SourceFSAdapter.
func (a *LocalSourceFSAdapter) RelPath(base, target m.Path) m.Path {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil || strings.HasPrefix(rel, "..") {
		return target
	}

	return m.Path(rel)
}
