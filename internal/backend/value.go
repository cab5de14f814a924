package backend

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when an id does not resolve to a stored object.
var ErrObjectNotFound = errors.New("object not found")

// ValueKind identifies what a tree entry points at.
type ValueKind int

const (
	KindFile ValueKind = iota + 1
	KindSymlink
	KindTree
	KindConflict
)

func (k ValueKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	case KindTree:
		return "tree"
	case KindConflict:
		return "conflict"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TreeValue is the value stored at a path in a tree.
type TreeValue struct {
	Kind       ValueKind
	ID         string
	Executable bool
}

// FileValue returns a file value for the given blob id.
func FileValue(id string, executable bool) TreeValue {
	return TreeValue{Kind: KindFile, ID: id, Executable: executable}
}

// SymlinkValue returns a symlink value for the given blob id.
func SymlinkValue(id string) TreeValue {
	return TreeValue{Kind: KindSymlink, ID: id}
}

// ConflictValue returns a conflict value for the given conflict id.
func ConflictValue(id string) TreeValue {
	return TreeValue{Kind: KindConflict, ID: id}
}

// TreeValueOf returns a subtree value for the given tree id.
func TreeValueOf(id string) TreeValue {
	return TreeValue{Kind: KindTree, ID: id}
}

// ConflictPart is one side of a conflict.
type ConflictPart struct {
	Value TreeValue
}

// Conflict records unmerged changes at a path: the base-side values that were
// removed and the values each side added.
type Conflict struct {
	Removes []ConflictPart
	Adds    []ConflictPart
}

// Entry is a non-tree value together with its full path.
type Entry struct {
	Path  RepoPath
	Value TreeValue
}
