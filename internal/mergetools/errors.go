package mergetools

import (
	"errors"
	"fmt"

	"github.com/joescharf/mtool/internal/backend"
)

// ErrEmptyOrUnchanged is returned when the merge tool leaves its output file
// empty or exactly as it was seeded.
var ErrEmptyOrUnchanged = errors.New("The output file is either unchanged or empty after the editor quit (run with --verbose to see the exact invocation).")

// PathNotFoundError is returned when the tree has nothing at Path.
type PathNotFoundError struct {
	Path backend.RepoPath
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("Couldn't find the path %q in this revision", e.Path)
}

// NotAConflictError is returned when the value at Path is not conflicted.
type NotAConflictError struct {
	Path backend.RepoPath
}

func (e *NotAConflictError) Error() string {
	return fmt.Sprintf("Couldn't find any conflicts at %q in this revision", e.Path)
}

// NotNormalFilesError is returned when a side of the conflict is a symlink,
// an executable, a tree or another conflict.
type NotNormalFilesError struct {
	Path    backend.RepoPath
	Summary string
}

func (e *NotNormalFilesError) Error() string {
	return fmt.Sprintf("Only conflicts that involve normal files (not symlinks, not executable, etc.) are supported. Conflict summary for %q:\n%s",
		e.Path, e.Summary)
}

// ConflictTooComplicatedError is returned for conflicts with more than one
// remove or more than two adds.
type ConflictTooComplicatedError struct {
	Path    backend.RepoPath
	Removes int
	Adds    int
}

func (e *ConflictTooComplicatedError) Error() string {
	return fmt.Sprintf("The conflict at %q has %d removes and %d adds.\nAt most 1 remove and 2 adds are supported.",
		e.Path, e.Removes, e.Adds)
}

// BackendError wraps a failure reading or writing the object store.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("Backend error: %v", e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

// IOError wraps a failure reading the tool's output.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("I/O error: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// CheckoutError wraps a failure materializing a tree for the diff editor.
type CheckoutError struct {
	Err error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("Failed to write directories to diff: %v", e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// SnapshotError wraps a failure recording the edited directory.
type SnapshotError struct {
	Err error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("Failed to snapshot changes: %v", e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }
