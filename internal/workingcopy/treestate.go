// Package workingcopy materializes trees into plain directories and turns
// edited directories back into trees.
package workingcopy

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/mtool/internal/backend"
	"github.com/joescharf/mtool/internal/conflicts"
)

const stateFile = "tree_state.yaml"

// Store is the object store a working copy reads and writes.
type Store interface {
	conflicts.Store
	ReadSymlink(path backend.RepoPath, id string) (string, error)
	WriteSymlink(path backend.RepoPath, target string) (string, error)
	EmptyTreeID() (string, error)
	Tree(id string) (*backend.Tree, error)
	TreeBuilder(base string) *backend.TreeBuilder
}

// fileState is what was written to disk for one path.
type fileState struct {
	Value backend.TreeValue
	MTime int64
	Size  int64
}

// TreeState tracks a directory checked out from a tree. Only paths covered
// by the sparse patterns are materialized and snapshotted.
type TreeState struct {
	store    Store
	wcDir    string
	stateDir string

	treeID string
	sparse []backend.RepoPath
	files  map[backend.RepoPath]fileState
}

// Init creates a fresh state for wcDir that tracks the empty tree and covers
// every path.
func Init(store Store, wcDir, stateDir string) (*TreeState, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	empty, err := store.EmptyTreeID()
	if err != nil {
		return nil, err
	}
	ts := &TreeState{
		store:    store,
		wcDir:    wcDir,
		stateDir: stateDir,
		treeID:   empty,
		sparse:   []backend.RepoPath{backend.RootPath},
		files:    make(map[backend.RepoPath]fileState),
	}
	if err := ts.save(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Load reads the state previously saved in stateDir.
func Load(store Store, wcDir, stateDir string) (*TreeState, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, stateFile))
	if err != nil {
		return nil, fmt.Errorf("read tree state: %w", err)
	}
	var doc stateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode tree state: %w", err)
	}
	ts := &TreeState{
		store:    store,
		wcDir:    wcDir,
		stateDir: stateDir,
		treeID:   doc.TreeID,
		files:    make(map[backend.RepoPath]fileState, len(doc.Files)),
	}
	for _, p := range doc.Sparse {
		ts.sparse = append(ts.sparse, backend.NewRepoPath(p))
	}
	for _, f := range doc.Files {
		v, err := f.value()
		if err != nil {
			return nil, fmt.Errorf("decode tree state: %w", err)
		}
		ts.files[backend.NewRepoPath(f.Path)] = fileState{Value: v, MTime: f.MTime, Size: f.Size}
	}
	return ts, nil
}

// CurrentTreeID returns the tree last checked out or snapshotted.
func (ts *TreeState) CurrentTreeID() string {
	return ts.treeID
}

// SparsePatterns returns the paths currently covered.
func (ts *TreeState) SparsePatterns() []backend.RepoPath {
	return slices.Clone(ts.sparse)
}

// SetSparsePatterns restricts the working copy to paths under patterns.
// Files leaving the covered set are removed from disk and files entering it
// are written from the current tree.
func (ts *TreeState) SetSparsePatterns(patterns []backend.RepoPath) error {
	ts.sparse = slices.Clone(patterns)
	if err := ts.sync(ts.treeID); err != nil {
		return err
	}
	return ts.save()
}

// CheckOut makes the covered part of the directory match treeID.
func (ts *TreeState) CheckOut(treeID string) error {
	if err := ts.sync(treeID); err != nil {
		return err
	}
	ts.treeID = treeID
	return ts.save()
}

func (ts *TreeState) covers(p backend.RepoPath) bool {
	for _, s := range ts.sparse {
		if s.Contains(p) {
			return true
		}
	}
	return false
}

// mayContainCovered reports whether walking into dir can reach a covered path.
func (ts *TreeState) mayContainCovered(dir backend.RepoPath) bool {
	for _, s := range ts.sparse {
		if s.Contains(dir) || dir.Contains(s) {
			return true
		}
	}
	return false
}

func (ts *TreeState) diskPath(p backend.RepoPath) string {
	return filepath.Join(ts.wcDir, filepath.FromSlash(string(p)))
}

func (ts *TreeState) sync(treeID string) error {
	tree, err := ts.store.Tree(treeID)
	if err != nil {
		return err
	}
	entries, err := tree.Entries()
	if err != nil {
		return err
	}

	want := make(map[backend.RepoPath]backend.TreeValue)
	for _, e := range entries {
		if ts.covers(e.Path) {
			want[e.Path] = e.Value
		}
	}

	for p, st := range ts.files {
		if v, ok := want[p]; ok && v == st.Value {
			continue
		}
		if err := ts.removeFile(p); err != nil {
			return err
		}
	}

	paths := make([]backend.RepoPath, 0, len(want))
	for p := range want {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		if _, ok := ts.files[p]; ok {
			continue
		}
		if err := ts.writeFile(p, want[p]); err != nil {
			return err
		}
	}
	return nil
}

func (ts *TreeState) removeFile(p backend.RepoPath) error {
	delete(ts.files, p)
	if err := os.Remove(ts.diskPath(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	// Prune directories left empty; a non-empty one stops the walk.
	for dir := p.Parent(); !dir.IsRoot(); dir = dir.Parent() {
		if os.Remove(ts.diskPath(dir)) != nil {
			break
		}
	}
	return nil
}

func (ts *TreeState) writeFile(p backend.RepoPath, v backend.TreeValue) error {
	dest := ts.diskPath(p)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", p, err)
	}

	switch v.Kind {
	case backend.KindFile:
		data, err := ts.store.ReadFile(p, v.ID)
		if err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if v.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(dest, data, mode); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		// WriteFile keeps the mode of an existing file.
		if err := os.Chmod(dest, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", p, err)
		}
	case backend.KindSymlink:
		target, err := ts.store.ReadSymlink(p, v.ID)
		if err != nil {
			return err
		}
		if err := os.Symlink(target, dest); err != nil {
			return fmt.Errorf("symlink %s: %w", p, err)
		}
	case backend.KindConflict:
		text, err := ts.conflictText(p, v.ID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, text, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	default:
		return fmt.Errorf("cannot check out %s at %s", v.Kind, p)
	}

	info, err := os.Lstat(dest)
	if err != nil {
		return fmt.Errorf("stat %s: %w", p, err)
	}
	ts.files[p] = fileState{Value: v, MTime: info.ModTime().UnixNano(), Size: info.Size()}
	return nil
}

// conflictText renders a conflict as marker text when it is a plain file
// conflict, and as a summary of its sides otherwise.
func (ts *TreeState) conflictText(p backend.RepoPath, id string) ([]byte, error) {
	c, err := ts.store.ReadConflict(p, id)
	if err != nil {
		return nil, err
	}
	hunk, err := conflicts.ExtractSingleHunk(ts.store, p, c)
	if err != nil {
		return nil, err
	}
	if hunk == nil || len(hunk.Removes) > 1 || len(hunk.Adds) > 2 {
		return []byte(conflicts.Describe(c)), nil
	}
	return conflicts.Materialize(hunk), nil
}

// Snapshot records the covered part of the directory as a new tree and
// returns its id. Tracked files whose size and mtime are unchanged keep
// their recorded value. New files matching ignores or a .gitignore are
// skipped; files outside the sparse patterns are never looked at.
func (ts *TreeState) Snapshot(ignores []gitignore.Pattern) (string, error) {
	patterns, err := gitignore.ReadPatterns(osfs.New(ts.wcDir), nil)
	if err != nil {
		return "", fmt.Errorf("read ignore files: %w", err)
	}
	matcher := gitignore.NewMatcher(append(slices.Clone(ignores), patterns...))

	builder := ts.store.TreeBuilder(ts.treeID)
	seen := make(map[backend.RepoPath]bool)
	next := make(map[backend.RepoPath]fileState)

	err = filepath.WalkDir(ts.wcDir, func(disk string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(ts.wcDir, disk)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		p := backend.NewRepoPath(filepath.ToSlash(rel))
		_, tracked := ts.files[p]

		// Ignored directories are still walked: tracked files inside them
		// stay tracked.
		if d.IsDir() {
			if !ts.mayContainCovered(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ts.covers(p) {
			return nil
		}
		if !tracked && matcher.Match(p.Components(), false) {
			return nil
		}

		st, err := ts.snapshotFile(p, disk)
		if err != nil {
			return err
		}
		if st == nil {
			return nil
		}
		seen[p] = true
		next[p] = *st
		builder.Set(p, st.Value)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", ts.wcDir, err)
	}

	for p := range ts.files {
		if !seen[p] {
			builder.Remove(p)
		}
	}

	treeID, err := builder.WriteTree()
	if err != nil {
		return "", err
	}
	ts.treeID = treeID
	ts.files = next
	if err := ts.save(); err != nil {
		return "", err
	}
	return treeID, nil
}

// snapshotFile returns the state of one file on disk, or nil for entries
// that are neither regular files nor symlinks.
func (ts *TreeState) snapshotFile(p backend.RepoPath, disk string) (*fileState, error) {
	info, err := os.Lstat(disk)
	if err != nil {
		return nil, err
	}
	st := fileState{MTime: info.ModTime().UnixNano(), Size: info.Size()}

	old, tracked := ts.files[p]
	if tracked && old.MTime == st.MTime && old.Size == st.Size && kindMatches(old.Value, info.Mode()) {
		st.Value = old.Value
		return &st, nil
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(disk)
		if err != nil {
			return nil, err
		}
		id, err := ts.store.WriteSymlink(p, target)
		if err != nil {
			return nil, err
		}
		st.Value = backend.SymlinkValue(id)
	case info.Mode().IsRegular():
		data, err := os.ReadFile(disk)
		if err != nil {
			return nil, err
		}
		if tracked && old.Value.Kind == backend.KindConflict {
			id, err := conflicts.UpdateFromContent(ts.store, p, old.Value.ID, data)
			if err != nil {
				return nil, err
			}
			if id != "" {
				st.Value = backend.ConflictValue(id)
				return &st, nil
			}
		}
		id, err := ts.store.WriteFile(p, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		st.Value = backend.FileValue(id, info.Mode()&0o111 != 0)
	default:
		return nil, nil
	}
	return &st, nil
}

func kindMatches(v backend.TreeValue, mode fs.FileMode) bool {
	if mode&fs.ModeSymlink != 0 {
		return v.Kind == backend.KindSymlink
	}
	if v.Kind == backend.KindFile {
		return v.Executable == (mode&0o111 != 0)
	}
	return v.Kind == backend.KindConflict
}

type stateDoc struct {
	TreeID string    `yaml:"tree_id"`
	Sparse []string  `yaml:"sparse_patterns"`
	Files  []fileDoc `yaml:"files"`
}

type fileDoc struct {
	Path       string `yaml:"path"`
	Kind       string `yaml:"kind"`
	ID         string `yaml:"id"`
	Executable bool   `yaml:"executable,omitempty"`
	MTime      int64  `yaml:"mtime"`
	Size       int64  `yaml:"size"`
}

func (f fileDoc) value() (backend.TreeValue, error) {
	switch f.Kind {
	case backend.KindFile.String():
		return backend.FileValue(f.ID, f.Executable), nil
	case backend.KindSymlink.String():
		return backend.SymlinkValue(f.ID), nil
	case backend.KindConflict.String():
		return backend.ConflictValue(f.ID), nil
	}
	return backend.TreeValue{}, fmt.Errorf("unexpected kind %q for %s", f.Kind, f.Path)
}

func (ts *TreeState) save() error {
	doc := stateDoc{TreeID: ts.treeID, Files: make([]fileDoc, 0, len(ts.files))}
	for _, s := range ts.sparse {
		doc.Sparse = append(doc.Sparse, string(s))
	}
	for p, st := range ts.files {
		doc.Files = append(doc.Files, fileDoc{
			Path:       string(p),
			Kind:       st.Value.Kind.String(),
			ID:         st.Value.ID,
			Executable: st.Value.Executable,
			MTime:      st.MTime,
			Size:       st.Size,
		})
	}
	slices.SortFunc(doc.Files, func(a, b fileDoc) int { return strings.Compare(a.Path, b.Path) })

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode tree state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(ts.stateDir, stateFile), data, 0o644); err != nil {
		return fmt.Errorf("write tree state: %w", err)
	}
	return nil
}
