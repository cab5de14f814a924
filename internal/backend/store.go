package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/memory"
	"gopkg.in/yaml.v3"
)

// ConflictSuffix marks tree entries that hold an encoded conflict object.
// Trees strip it, so callers only ever see the conflicted path itself.
const ConflictSuffix = ".mtconflict"

// GitStore keeps files, symlinks, conflicts and trees in a git object database.
type GitStore struct {
	storer storer.EncodedObjectStorer
	repo   *git.Repository
}

// NewStore wraps an existing go-git object storer.
func NewStore(s storer.EncodedObjectStorer) *GitStore {
	return &GitStore{storer: s}
}

// NewMemoryStore returns a store backed by an in-memory object database.
func NewMemoryStore() *GitStore {
	return NewStore(memory.NewStorage())
}

// OpenRepository opens the git repository containing dir.
func OpenRepository(dir string) (*GitStore, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return &GitStore{storer: repo.Storer, repo: repo}, nil
}

// InitRepository creates a new git repository in dir.
func InitRepository(dir string) (*GitStore, error) {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", dir, err)
	}
	return &GitStore{storer: repo.Storer, repo: repo}, nil
}

func (s *GitStore) writeObject(t plumbing.ObjectType, content []byte) (plumbing.Hash, error) {
	obj := s.storer.NewEncodedObject()
	obj.SetType(t)
	obj.SetSize(int64(len(content)))

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create object writer: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, fmt.Errorf("write %s content: %w", t, err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("close object writer: %w", err)
	}

	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store %s: %w", t, err)
	}
	return h, nil
}

func (s *GitStore) readBlob(id string) ([]byte, error) {
	h, err := parseID(id)
	if err != nil {
		return nil, err
	}
	blob, err := object.GetBlob(s.storer, h)
	if err != nil {
		return nil, notFound(id, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", id, err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return buf.Bytes(), nil
}

// ReadFile returns the content of the file blob id.
func (s *GitStore) ReadFile(path RepoPath, id string) ([]byte, error) {
	data, err := s.readBlob(id)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return data, nil
}

// WriteFile stores r as a file blob and returns its id.
func (s *GitStore) WriteFile(path RepoPath, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read content for %s: %w", path, err)
	}
	h, err := s.writeObject(plumbing.BlobObject, data)
	if err != nil {
		return "", fmt.Errorf("write file %s: %w", path, err)
	}
	return h.String(), nil
}

// ReadSymlink returns the target of the symlink blob id.
func (s *GitStore) ReadSymlink(path RepoPath, id string) (string, error) {
	data, err := s.readBlob(id)
	if err != nil {
		return "", fmt.Errorf("read symlink %s: %w", path, err)
	}
	return string(data), nil
}

// WriteSymlink stores a symlink target and returns its id.
func (s *GitStore) WriteSymlink(path RepoPath, target string) (string, error) {
	h, err := s.writeObject(plumbing.BlobObject, []byte(target))
	if err != nil {
		return "", fmt.Errorf("write symlink %s: %w", path, err)
	}
	return h.String(), nil
}

type conflictDoc struct {
	Removes []partDoc `yaml:"removes"`
	Adds    []partDoc `yaml:"adds"`
}

type partDoc struct {
	Kind       string `yaml:"kind"`
	ID         string `yaml:"id"`
	Executable bool   `yaml:"executable,omitempty"`
}

func toPartDocs(parts []ConflictPart) []partDoc {
	docs := make([]partDoc, 0, len(parts))
	for _, p := range parts {
		docs = append(docs, partDoc{Kind: p.Value.Kind.String(), ID: p.Value.ID, Executable: p.Value.Executable})
	}
	return docs
}

func fromPartDocs(docs []partDoc) ([]ConflictPart, error) {
	parts := make([]ConflictPart, 0, len(docs))
	for _, d := range docs {
		kind, err := parseKind(d.Kind)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ConflictPart{Value: TreeValue{Kind: kind, ID: d.ID, Executable: d.Executable}})
	}
	return parts, nil
}

func parseKind(s string) (ValueKind, error) {
	for _, k := range []ValueKind{KindFile, KindSymlink, KindTree, KindConflict} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown value kind %q", s)
}

// ReadConflict decodes the conflict object id.
func (s *GitStore) ReadConflict(path RepoPath, id string) (*Conflict, error) {
	data, err := s.readBlob(id)
	if err != nil {
		return nil, fmt.Errorf("read conflict %s: %w", path, err)
	}
	var doc conflictDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode conflict %s: %w", path, err)
	}
	removes, err := fromPartDocs(doc.Removes)
	if err != nil {
		return nil, fmt.Errorf("decode conflict %s: %w", path, err)
	}
	adds, err := fromPartDocs(doc.Adds)
	if err != nil {
		return nil, fmt.Errorf("decode conflict %s: %w", path, err)
	}
	return &Conflict{Removes: removes, Adds: adds}, nil
}

// WriteConflict encodes and stores c, returning its id.
func (s *GitStore) WriteConflict(path RepoPath, c *Conflict) (string, error) {
	data, err := yaml.Marshal(conflictDoc{Removes: toPartDocs(c.Removes), Adds: toPartDocs(c.Adds)})
	if err != nil {
		return "", fmt.Errorf("encode conflict %s: %w", path, err)
	}
	h, err := s.writeObject(plumbing.BlobObject, data)
	if err != nil {
		return "", fmt.Errorf("write conflict %s: %w", path, err)
	}
	return h.String(), nil
}

// EmptyTreeID stores the empty tree and returns its id.
func (s *GitStore) EmptyTreeID() (string, error) {
	h, err := s.writeTreeObject(nil)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// Tree loads the tree object id.
func (s *GitStore) Tree(id string) (*Tree, error) {
	h, err := parseID(id)
	if err != nil {
		return nil, err
	}
	t, err := object.GetTree(s.storer, h)
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", notFound(id, err))
	}
	return &Tree{store: s, obj: t}, nil
}

// TreeBuilder starts a new tree derived from base.
func (s *GitStore) TreeBuilder(base string) *TreeBuilder {
	return &TreeBuilder{store: s, base: base, overrides: make(map[RepoPath]*TreeValue)}
}

// ResolveTree turns a revision (tree id, commit id, ref name or "empty")
// into a tree id.
func (s *GitStore) ResolveTree(rev string) (string, error) {
	if rev == "" || rev == "empty" {
		return s.EmptyTreeID()
	}
	if plumbing.IsHash(rev) {
		h := plumbing.NewHash(rev)
		obj, err := s.storer.EncodedObject(plumbing.AnyObject, h)
		if err != nil {
			return "", notFound(rev, err)
		}
		switch obj.Type() {
		case plumbing.TreeObject:
			return h.String(), nil
		case plumbing.CommitObject:
			c, err := object.DecodeCommit(s.storer, obj)
			if err != nil {
				return "", fmt.Errorf("decode commit %s: %w", rev, err)
			}
			return c.TreeHash.String(), nil
		default:
			return "", fmt.Errorf("%s is a %s, not a tree", rev, obj.Type())
		}
	}
	if s.repo == nil {
		return "", fmt.Errorf("cannot resolve %q without a repository", rev)
	}
	h, err := s.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rev, err)
	}
	c, err := object.GetCommit(s.storer, *h)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", rev, err)
	}
	return c.TreeHash.String(), nil
}

func parseID(id string) (plumbing.Hash, error) {
	if !plumbing.IsHash(id) {
		return plumbing.ZeroHash, fmt.Errorf("invalid object id %q", id)
	}
	return plumbing.NewHash(id), nil
}

func notFound(id string, err error) error {
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("%s: %w", id, ErrObjectNotFound)
	}
	return fmt.Errorf("%s: %w", id, err)
}
