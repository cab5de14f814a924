package backend

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/samber/lo"
)

// Tree is an immutable snapshot of paths to values.
type Tree struct {
	store *GitStore
	obj   *object.Tree
}

// ID returns the tree's object id.
func (t *Tree) ID() string {
	return t.obj.Hash.String()
}

// entryValue maps a raw git tree entry onto a TreeValue. Submodules are not
// represented and report ok=false.
func entryValue(e object.TreeEntry) (name string, v TreeValue, ok bool) {
	h := e.Hash.String()
	name, conflict := parseEntryName(e.Name)
	if conflict && e.Mode != filemode.Regular && e.Mode != filemode.Deprecated {
		// Only regular blobs hold conflicts; anything else keeps its raw name.
		name = e.Name
	}
	switch e.Mode {
	case filemode.Dir:
		return name, TreeValueOf(h), true
	case filemode.Symlink:
		return name, SymlinkValue(h), true
	case filemode.Executable:
		return name, FileValue(h, true), true
	case filemode.Regular, filemode.Deprecated:
		if conflict {
			return name, ConflictValue(h), true
		}
		return name, FileValue(h, false), true
	default:
		return "", TreeValue{}, false
	}
}

// PathValue returns the value at p. The root path yields the tree itself.
func (t *Tree) PathValue(p RepoPath) (TreeValue, bool, error) {
	if p.IsRoot() {
		return TreeValueOf(t.ID()), true, nil
	}

	comps := p.Components()
	cur := t.obj
	for i, name := range comps {
		last := i == len(comps)-1

		var found *TreeValue
		for _, e := range cur.Entries {
			n, v, ok := entryValue(e)
			if !ok || n != name {
				continue
			}
			if !last && v.Kind != KindTree {
				continue
			}
			found = &v
			break
		}
		if found == nil {
			return TreeValue{}, false, nil
		}
		if last {
			return *found, true, nil
		}

		sub, err := object.GetTree(t.store.storer, plumbing.NewHash(found.ID))
		if err != nil {
			return TreeValue{}, false, fmt.Errorf("read subtree %s: %w", RepoPath(strings.Join(comps[:i+1], "/")), notFound(found.ID, err))
		}
		cur = sub
	}
	return TreeValue{}, false, nil
}

// Entries returns every non-tree value in the tree, sorted by path.
func (t *Tree) Entries() ([]Entry, error) {
	var out []Entry
	if err := t.collect(t.obj, RootPath, &out); err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(string(a.Path), string(b.Path)) })
	return out, nil
}

func (t *Tree) collect(obj *object.Tree, dir RepoPath, out *[]Entry) error {
	for _, e := range obj.Entries {
		name, v, ok := entryValue(e)
		if !ok {
			continue
		}
		p := dir.Join(name)
		if v.Kind != KindTree {
			*out = append(*out, Entry{Path: p, Value: v})
			continue
		}
		sub, err := object.GetTree(t.store.storer, e.Hash)
		if err != nil {
			return fmt.Errorf("read subtree %s: %w", p, notFound(v.ID, err))
		}
		if err := t.collect(sub, p, out); err != nil {
			return err
		}
	}
	return nil
}

// Diff returns every path whose value differs between t and other. The
// comparison is structural: any change in id, mode or kind counts.
func (t *Tree) Diff(other *Tree) ([]RepoPath, error) {
	changes, err := object.DiffTree(t.obj, other.obj)
	if err != nil {
		return nil, fmt.Errorf("diff trees %s..%s: %w", t.ID(), other.ID(), err)
	}

	paths := make([]RepoPath, 0, len(changes))
	for _, c := range changes {
		name := c.From.Name
		if name == "" {
			name = c.To.Name
		}
		paths = append(paths, logicalPath(name))
	}
	paths = lo.Uniq(paths)
	slices.Sort(paths)
	return paths, nil
}
