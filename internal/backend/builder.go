package backend

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TreeBuilder derives a new tree from a base tree by overriding single paths.
// Only subtrees along the overridden paths are rewritten.
type TreeBuilder struct {
	store     *GitStore
	base      string
	overrides map[RepoPath]*TreeValue
}

// Set replaces the value at p.
func (b *TreeBuilder) Set(p RepoPath, v TreeValue) {
	b.overrides[p] = &v
}

// Remove deletes whatever is at p.
func (b *TreeBuilder) Remove(p RepoPath) {
	b.overrides[p] = nil
}

// builderNode holds one directory. entries is keyed by the name callers see,
// not the stored entry name.
type builderNode struct {
	entries  map[string]object.TreeEntry
	children map[string]*builderNode
}

func (b *TreeBuilder) loadNode(h plumbing.Hash) (*builderNode, error) {
	n := &builderNode{
		entries:  make(map[string]object.TreeEntry),
		children: make(map[string]*builderNode),
	}
	if h.IsZero() {
		return n, nil
	}
	t, err := object.GetTree(b.store.storer, h)
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", notFound(h.String(), err))
	}
	for _, e := range t.Entries {
		name, _, ok := entryValue(e)
		if !ok {
			name = e.Name
		}
		n.entries[name] = e
	}
	return n, nil
}

func (b *TreeBuilder) child(n *builderNode, name string) (*builderNode, error) {
	if c, ok := n.children[name]; ok {
		return c, nil
	}
	var h plumbing.Hash
	if e, ok := n.entries[name]; ok && e.Mode == filemode.Dir {
		h = e.Hash
	} else {
		// A file or conflict in the way of a directory is replaced.
		delete(n.entries, name)
	}
	c, err := b.loadNode(h)
	if err != nil {
		return nil, err
	}
	n.children[name] = c
	return c, nil
}

func treeEntry(logical string, v TreeValue) (object.TreeEntry, error) {
	h := plumbing.NewHash(v.ID)
	name := entryName(logical, v.Kind)
	switch v.Kind {
	case KindFile:
		mode := filemode.Regular
		if v.Executable {
			mode = filemode.Executable
		}
		return object.TreeEntry{Name: name, Mode: mode, Hash: h}, nil
	case KindSymlink:
		return object.TreeEntry{Name: name, Mode: filemode.Symlink, Hash: h}, nil
	case KindTree:
		return object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h}, nil
	case KindConflict:
		return object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: h}, nil
	default:
		return object.TreeEntry{}, fmt.Errorf("cannot store value of %s", v.Kind)
	}
}

// WriteTree stores the resulting tree and returns its id.
func (b *TreeBuilder) WriteTree() (string, error) {
	var baseHash plumbing.Hash
	if b.base != "" {
		h, err := parseID(b.base)
		if err != nil {
			return "", err
		}
		baseHash = h
	}
	root, err := b.loadNode(baseHash)
	if err != nil {
		return "", err
	}

	paths := make([]RepoPath, 0, len(b.overrides))
	for p := range b.overrides {
		if p.IsRoot() {
			return "", errors.New("cannot replace the root of a tree")
		}
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		comps := p.Components()
		n := root
		for _, name := range comps[:len(comps)-1] {
			if n, err = b.child(n, name); err != nil {
				return "", err
			}
		}

		leaf := comps[len(comps)-1]
		delete(n.entries, leaf)
		delete(n.children, leaf)

		if v := b.overrides[p]; v != nil {
			e, err := treeEntry(leaf, *v)
			if err != nil {
				return "", fmt.Errorf("set %s: %w", p, err)
			}
			n.entries[leaf] = e
		}
	}

	h, _, err := b.writeNode(root)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

func (b *TreeBuilder) writeNode(n *builderNode) (plumbing.Hash, bool, error) {
	for name, c := range n.children {
		h, empty, err := b.writeNode(c)
		if err != nil {
			return plumbing.ZeroHash, false, err
		}
		if empty {
			delete(n.entries, name)
			continue
		}
		n.entries[name] = object.TreeEntry{Name: entryName(name, KindTree), Mode: filemode.Dir, Hash: h}
	}

	entries := make([]object.TreeEntry, 0, len(n.entries))
	for _, e := range n.entries {
		entries = append(entries, e)
	}
	h, err := b.store.writeTreeObject(entries)
	return h, len(entries) == 0, err
}

// writeTreeObject sorts entries in git order (directories compare as if
// suffixed with "/") and stores the encoded tree.
func (s *GitStore) writeTreeObject(entries []object.TreeEntry) (plumbing.Hash, error) {
	sortKey := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool { return sortKey(entries[i]) < sortKey(entries[j]) })

	t := &object.Tree{Entries: entries}
	obj := s.storer.NewEncodedObject()
	if err := t.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store tree: %w", err)
	}
	return h, nil
}
