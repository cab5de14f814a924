// Package workspace manages the scratch directories external tools run
// against.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/joescharf/mtool/internal/backend"
	"github.com/joescharf/mtool/internal/exttool"
	"github.com/joescharf/mtool/internal/workingcopy"
)

// Workspace is a uniquely named temporary directory. Close removes it and
// everything written under it.
type Workspace struct {
	root   string
	closed bool
}

// mkdirTemp is replaced in tests to simulate setup failures.
var mkdirTemp = os.MkdirTemp

// New creates a workspace under the system temp dir whose name starts with
// prefix.
func New(prefix string) (*Workspace, error) {
	root, err := mkdirTemp("", prefix)
	if err != nil {
		return nil, &exttool.SetUpDirError{Err: err}
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// WriteRoleFile writes content to {root}/{role}{suffix} and returns the path.
func (w *Workspace) WriteRoleFile(role exttool.Role, suffix string, content []byte) (string, error) {
	p := w.Path(role.String() + suffix)
	if err := os.WriteFile(p, content, 0o644); err != nil {
		return "", &exttool.SetUpDirError{Err: err}
	}
	return p, nil
}

// ProtectReadonly clears the write bits of every regular file under path.
// Directories are left alone so the tree can still be removed. Every file is
// attempted; failures are collected.
func ProtectReadonly(path string) error {
	var result *multierror.Error
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		if err := os.Chmod(p, info.Mode().Perm()&^0o222); err != nil {
			result = multierror.Append(result, err)
		}
		return nil
	})
	if walkErr != nil {
		result = multierror.Append(result, walkErr)
	}
	if err := result.ErrorOrNil(); err != nil {
		return &exttool.SetUpDirError{Err: err}
	}
	return nil
}

// Checkout materializes treeID into targetDir, restricted to includedPaths,
// and returns the working-copy state for a later snapshot. Both directories
// are created.
func Checkout(store workingcopy.Store, targetDir, stateDir, treeID string, includedPaths []backend.RepoPath) (*workingcopy.TreeState, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, &exttool.SetUpDirError{Err: err}
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, &exttool.SetUpDirError{Err: err}
	}
	ts, err := workingcopy.Init(store, targetDir, stateDir)
	if err != nil {
		return nil, fmt.Errorf("init working copy: %w", err)
	}
	if err := ts.SetSparsePatterns(includedPaths); err != nil {
		return nil, fmt.Errorf("set sparse patterns: %w", err)
	}
	if err := ts.CheckOut(treeID); err != nil {
		return nil, fmt.Errorf("check out %s: %w", treeID, err)
	}
	return ts, nil
}

// Close removes the workspace. It is safe to call more than once.
func (w *Workspace) Close() error {
	if w == nil || w.closed {
		return nil
	}
	w.closed = true
	if err := os.RemoveAll(w.root); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove workspace %s: %w", w.root, err)
	}
	return nil
}
