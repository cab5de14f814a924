package backend

import (
	"path"
	"strings"
)

// RepoPath is a slash-separated path relative to the root of a tree.
// The root itself is the empty string.
type RepoPath string

// RootPath is the path of the tree root.
const RootPath RepoPath = ""

// NewRepoPath cleans a user-supplied path into a RepoPath.
func NewRepoPath(p string) RepoPath {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	return RepoPath(p)
}

// IsRoot reports whether p is the tree root.
func (p RepoPath) IsRoot() bool { return p == RootPath }

// Components returns the path split into its components. The root has none.
func (p RepoPath) Components() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(string(p), "/")
}

// Base returns the final component, or "" for the root.
func (p RepoPath) Base() string {
	if p.IsRoot() {
		return ""
	}
	return path.Base(string(p))
}

// Parent returns the containing directory. The parent of the root is the root.
func (p RepoPath) Parent() RepoPath {
	i := strings.LastIndex(string(p), "/")
	if i < 0 {
		return RootPath
	}
	return p[:i]
}

// Join appends a single component.
func (p RepoPath) Join(name string) RepoPath {
	if p.IsRoot() {
		return RepoPath(name)
	}
	return p + "/" + RepoPath(name)
}

// Contains reports whether other is p itself or lies underneath it.
func (p RepoPath) Contains(other RepoPath) bool {
	if p.IsRoot() || p == other {
		return true
	}
	return strings.HasPrefix(string(other), string(p)+"/")
}

func (p RepoPath) String() string { return string(p) }
