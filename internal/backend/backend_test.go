package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, s *GitStore, p RepoPath, content string) TreeValue {
	t.Helper()
	id, err := s.WriteFile(p, strings.NewReader(content))
	require.NoError(t, err)
	return FileValue(id, false)
}

func buildTree(t *testing.T, s *GitStore, base string, values map[RepoPath]TreeValue) string {
	t.Helper()
	b := s.TreeBuilder(base)
	for p, v := range values {
		b.Set(p, v)
	}
	id, err := b.WriteTree()
	require.NoError(t, err)
	return id
}

func TestRepoPath(t *testing.T) {
	p := NewRepoPath("/dir//sub/file.txt")
	assert.Equal(t, RepoPath("dir/sub/file.txt"), p)
	assert.Equal(t, []string{"dir", "sub", "file.txt"}, p.Components())
	assert.Equal(t, "file.txt", p.Base())
	assert.Equal(t, RepoPath("dir/sub"), p.Parent())
	assert.Equal(t, RepoPath("dir"), RepoPath("dir/sub").Parent().Parent().Join("dir"))

	assert.True(t, RootPath.IsRoot())
	assert.Equal(t, "", RootPath.Base())
	assert.Nil(t, RootPath.Components())
	assert.Equal(t, RootPath, NewRepoPath("."))

	assert.True(t, RepoPath("dir").Contains("dir/file"))
	assert.True(t, RepoPath("dir").Contains("dir"))
	assert.False(t, RepoPath("dir").Contains("dirt"))
	assert.True(t, RootPath.Contains("anything"))
}

func TestFileRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	v := writeFile(t, s, "a.txt", "hello\n")

	data, err := s.ReadFile("a.txt", v.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestReadFile_Missing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.ReadFile("a.txt", strings.Repeat("ab", 20))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestReadFile_InvalidID(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.ReadFile("a.txt", "not-a-hash")
	assert.Error(t, err)
}

func TestConflictRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	base := writeFile(t, s, "f", "base\n")
	left := writeFile(t, s, "f", "left\n")
	link, err := s.WriteSymlink("f", "target")
	require.NoError(t, err)

	c := &Conflict{
		Removes: []ConflictPart{{Value: base}},
		Adds: []ConflictPart{
			{Value: FileValue(left.ID, true)},
			{Value: SymlinkValue(link)},
		},
	}
	id, err := s.WriteConflict("f", c)
	require.NoError(t, err)

	got, err := s.ReadConflict("f", id)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	target, err := s.ReadSymlink("f", link)
	require.NoError(t, err)
	assert.Equal(t, "target", target)
}

func TestTreeBuilder_NestedPaths(t *testing.T) {
	s := NewMemoryStore()
	empty, err := s.EmptyTreeID()
	require.NoError(t, err)

	id := buildTree(t, s, empty, map[RepoPath]TreeValue{
		"top.txt":          writeFile(t, s, "top.txt", "top"),
		"dir/a.txt":        writeFile(t, s, "dir/a.txt", "a"),
		"dir/sub/b.txt":    writeFile(t, s, "dir/sub/b.txt", "b"),
		"dir/sub/conflict": ConflictValue(writeFile(t, s, "x", "removes: []\nadds: []\n").ID),
	})

	tree, err := s.Tree(id)
	require.NoError(t, err)

	entries, err := tree.Entries()
	require.NoError(t, err)
	var paths []RepoPath
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []RepoPath{"dir/a.txt", "dir/sub/b.txt", "dir/sub/conflict", "top.txt"}, paths)

	v, ok, err := tree.PathValue("dir/sub/conflict")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindConflict, v.Kind)

	v, ok, err = tree.PathValue("dir")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindTree, v.Kind)

	_, ok, err = tree.PathValue("dir/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tree.PathValue("top.txt/below")
	require.NoError(t, err)
	assert.False(t, ok)

	root, ok, err := tree.PathValue(RootPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TreeValueOf(id), root)
}

func TestTreeBuilder_ReplaceKeepsSiblings(t *testing.T) {
	s := NewMemoryStore()
	base := buildTree(t, s, "", map[RepoPath]TreeValue{
		"dir/a": writeFile(t, s, "dir/a", "a"),
		"dir/b": ConflictValue(writeFile(t, s, "dir/b", "removes: []\nadds: []\n").ID),
		"c":     writeFile(t, s, "c", "c"),
	})

	resolved := writeFile(t, s, "dir/b", "resolved")
	id := buildTree(t, s, base, map[RepoPath]TreeValue{"dir/b": resolved})
	assert.NotEqual(t, base, id)

	tree, err := s.Tree(id)
	require.NoError(t, err)
	v, ok, err := tree.PathValue("dir/b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resolved, v)

	entries, err := tree.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// The base tree is untouched.
	orig, err := s.Tree(base)
	require.NoError(t, err)
	v, _, err = orig.PathValue("dir/b")
	require.NoError(t, err)
	assert.Equal(t, KindConflict, v.Kind)
}

func TestTreeBuilder_RemoveDropsEmptyDirs(t *testing.T) {
	s := NewMemoryStore()
	base := buildTree(t, s, "", map[RepoPath]TreeValue{
		"dir/only": writeFile(t, s, "dir/only", "x"),
		"keep":     writeFile(t, s, "keep", "y"),
	})

	b := s.TreeBuilder(base)
	b.Remove("dir/only")
	id, err := b.WriteTree()
	require.NoError(t, err)

	tree, err := s.Tree(id)
	require.NoError(t, err)
	_, ok, err := tree.PathValue("dir")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTreeBuilder_RejectsRoot(t *testing.T) {
	s := NewMemoryStore()
	b := s.TreeBuilder("")
	b.Set(RootPath, FileValue(strings.Repeat("0", 40), false))
	_, err := b.WriteTree()
	assert.Error(t, err)
}

func TestTreeBuilder_DeterministicIDs(t *testing.T) {
	s := NewMemoryStore()
	values := map[RepoPath]TreeValue{
		"b":     writeFile(t, s, "b", "b"),
		"a/x":   writeFile(t, s, "a/x", "x"),
		"a.txt": writeFile(t, s, "a.txt", "t"),
	}
	assert.Equal(t, buildTree(t, s, "", values), buildTree(t, s, "", values))
}

func TestTreeDiff(t *testing.T) {
	s := NewMemoryStore()
	left := buildTree(t, s, "", map[RepoPath]TreeValue{
		"same":     writeFile(t, s, "same", "same"),
		"changed":  writeFile(t, s, "changed", "one"),
		"removed":  writeFile(t, s, "removed", "gone"),
		"dir/mode": writeFile(t, s, "dir/mode", "m"),
	})
	modeValue := writeFile(t, s, "dir/mode", "m")
	modeValue.Executable = true
	right := buildTree(t, s, "", map[RepoPath]TreeValue{
		"same":     writeFile(t, s, "same", "same"),
		"changed":  writeFile(t, s, "changed", "two"),
		"added":    writeFile(t, s, "added", "new"),
		"dir/mode": modeValue,
	})

	lt, err := s.Tree(left)
	require.NoError(t, err)
	rt, err := s.Tree(right)
	require.NoError(t, err)

	paths, err := lt.Diff(rt)
	require.NoError(t, err)
	assert.Equal(t, []RepoPath{"added", "changed", "dir/mode", "removed"}, paths)
}

func TestTreeDiff_FileBecomesConflict(t *testing.T) {
	s := NewMemoryStore()
	left := buildTree(t, s, "", map[RepoPath]TreeValue{"f": writeFile(t, s, "f", "one")})
	right := buildTree(t, s, "", map[RepoPath]TreeValue{"f": ConflictValue(writeFile(t, s, "f", "removes: []\nadds: []\n").ID)})

	lt, err := s.Tree(left)
	require.NoError(t, err)
	rt, err := s.Tree(right)
	require.NoError(t, err)

	paths, err := lt.Diff(rt)
	require.NoError(t, err)
	assert.Equal(t, []RepoPath{"f"}, paths)
}

func TestTree_FilesNamedLikeConflicts(t *testing.T) {
	s := NewMemoryStore()
	conflictID := writeFile(t, s, "x", "removes: []\nadds: []\n").ID
	id := buildTree(t, s, "", map[RepoPath]TreeValue{
		"notes":             ConflictValue(conflictID),
		"notes.mtconflict":  writeFile(t, s, "notes.mtconflict", "hello\n"),
		"notes.mtconflict~": writeFile(t, s, "notes.mtconflict~", "tilde\n"),
		"dir.mtconflict/a":  writeFile(t, s, "dir.mtconflict/a", "a"),
		"plain~":            writeFile(t, s, "plain~", "p"),
	})

	tree, err := s.Tree(id)
	require.NoError(t, err)
	entries, err := tree.Entries()
	require.NoError(t, err)
	got := make(map[RepoPath]ValueKind)
	for _, e := range entries {
		got[e.Path] = e.Value.Kind
	}
	assert.Equal(t, map[RepoPath]ValueKind{
		"notes":             KindConflict,
		"notes.mtconflict":  KindFile,
		"notes.mtconflict~": KindFile,
		"dir.mtconflict/a":  KindFile,
		"plain~":            KindFile,
	}, got)

	v, ok, err := tree.PathValue("notes.mtconflict")
	require.NoError(t, err)
	require.True(t, ok)
	data, err := s.ReadFile("notes.mtconflict", v.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	// Replacing the conflict leaves the look-alike file alone.
	resolved := buildTree(t, s, id, map[RepoPath]TreeValue{"notes": writeFile(t, s, "notes", "done\n")})
	rt, err := s.Tree(resolved)
	require.NoError(t, err)
	_, ok, err = rt.PathValue("notes.mtconflict")
	require.NoError(t, err)
	assert.True(t, ok)

	paths, err := tree.Diff(rt)
	require.NoError(t, err)
	assert.Equal(t, []RepoPath{"notes"}, paths)
}

func TestResolveTree(t *testing.T) {
	s := NewMemoryStore()
	empty, err := s.EmptyTreeID()
	require.NoError(t, err)

	got, err := s.ResolveTree("empty")
	require.NoError(t, err)
	assert.Equal(t, empty, got)

	id := buildTree(t, s, "", map[RepoPath]TreeValue{"a": writeFile(t, s, "a", "a")})
	got, err = s.ResolveTree(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	blob := writeFile(t, s, "a", "a")
	_, err = s.ResolveTree(blob.ID)
	assert.Error(t, err)

	_, err = s.ResolveTree("HEAD")
	assert.Error(t, err, "memory stores have no refs")
}

func TestInitAndOpenRepository(t *testing.T) {
	dir := t.TempDir()
	s, err := InitRepository(dir)
	require.NoError(t, err)

	v := writeFile(t, s, "a", "persisted")

	reopened, err := OpenRepository(dir)
	require.NoError(t, err)
	data, err := reopened.ReadFile("a", v.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(data))
}
