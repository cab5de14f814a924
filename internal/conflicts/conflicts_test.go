package conflicts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/mtool/internal/backend"
)

func filePart(t *testing.T, s *backend.GitStore, content string) backend.ConflictPart {
	t.Helper()
	id, err := s.WriteFile("f", strings.NewReader(content))
	require.NoError(t, err)
	return backend.ConflictPart{Value: backend.FileValue(id, false)}
}

func writeConflict(t *testing.T, s *backend.GitStore, removes, adds []string) string {
	t.Helper()
	c := &backend.Conflict{}
	for _, r := range removes {
		c.Removes = append(c.Removes, filePart(t, s, r))
	}
	for _, a := range adds {
		c.Adds = append(c.Adds, filePart(t, s, a))
	}
	id, err := s.WriteConflict("f", c)
	require.NoError(t, err)
	return id
}

func readSides(t *testing.T, s *backend.GitStore, id string) *Hunk {
	t.Helper()
	c, err := s.ReadConflict("f", id)
	require.NoError(t, err)
	h, err := ExtractSingleHunk(s, "f", c)
	require.NoError(t, err)
	require.NotNil(t, h)
	return h
}

func TestHunkSides(t *testing.T) {
	h := &Hunk{Removes: [][]byte{[]byte("base")}, Adds: [][]byte{[]byte("A"), []byte("B")}}
	base, left, right := h.Sides()
	assert.Equal(t, "base", string(base))
	assert.Equal(t, "A", string(left))
	assert.Equal(t, "B", string(right))

	// A single add is the right side.
	h = &Hunk{Adds: [][]byte{[]byte("A")}}
	base, left, right = h.Sides()
	assert.Empty(t, base)
	assert.Empty(t, left)
	assert.Equal(t, "A", string(right))
}

func TestExtractSingleHunk(t *testing.T) {
	s := backend.NewMemoryStore()
	id := writeConflict(t, s, []string{"base\n"}, []string{"left\n", "right\n"})

	h := readSides(t, s, id)
	require.Len(t, h.Removes, 1)
	require.Len(t, h.Adds, 2)
	assert.Equal(t, "base\n", string(h.Removes[0]))
	assert.Equal(t, "left\n", string(h.Adds[0]))
	assert.Equal(t, "right\n", string(h.Adds[1]))
}

func TestExtractSingleHunk_RejectsNonFiles(t *testing.T) {
	s := backend.NewMemoryStore()
	file := filePart(t, s, "x")
	link, err := s.WriteSymlink("f", "target")
	require.NoError(t, err)

	cases := map[string]backend.ConflictPart{
		"symlink":    {Value: backend.SymlinkValue(link)},
		"executable": {Value: backend.FileValue(file.Value.ID, true)},
		"tree":       {Value: backend.TreeValueOf(file.Value.ID)},
	}
	for name, part := range cases {
		t.Run(name, func(t *testing.T) {
			c := &backend.Conflict{Removes: []backend.ConflictPart{file}, Adds: []backend.ConflictPart{file, part}}
			h, err := ExtractSingleHunk(s, "f", c)
			require.NoError(t, err)
			assert.Nil(t, h)
		})
	}
}

func TestDescribe(t *testing.T) {
	c := &backend.Conflict{
		Removes: []backend.ConflictPart{{Value: backend.FileValue("aaa", false)}},
		Adds: []backend.ConflictPart{
			{Value: backend.FileValue("bbb", true)},
			{Value: backend.SymlinkValue("ccc")},
		},
	}
	assert.Equal(t,
		"Removing file with id aaa\nAdding executable file with id bbb\nAdding symlink with id ccc\n",
		Describe(c))
}

func TestMaterialize_Trivial(t *testing.T) {
	h := &Hunk{
		Removes: [][]byte{[]byte("base\n")},
		Adds:    [][]byte{[]byte("base\n"), []byte("changed\n")},
	}
	assert.Equal(t, "changed\n", string(Materialize(h)))
}

func TestMaterialize_CleanMerge(t *testing.T) {
	h := &Hunk{
		Removes: [][]byte{[]byte("a\nb\nc\nd\ne\n")},
		Adds:    [][]byte{[]byte("a\nB\nc\nd\ne\n"), []byte("a\nb\nc\nD\ne\n")},
	}
	assert.Equal(t, "a\nB\nc\nD\ne\n", string(Materialize(h)))
}

func TestMaterialize_Conflict(t *testing.T) {
	h := &Hunk{
		Removes: [][]byte{[]byte("a\nx\nz\n")},
		Adds:    [][]byte{[]byte("a\ny1\nz\n"), []byte("a\ny2\nz\n")},
	}
	want := "a\n" +
		"<<<<<<< left\ny1\n" +
		"||||||| base\nx\n" +
		"=======\ny2\n" +
		">>>>>>> right\n" +
		"z\n"
	assert.Equal(t, want, string(Materialize(h)))
}

func TestMaterialize_MissingTrailingNewline(t *testing.T) {
	h := &Hunk{
		Removes: [][]byte{[]byte("x")},
		Adds:    [][]byte{[]byte("y1"), []byte("y2")},
	}
	out := string(Materialize(h))
	assert.Contains(t, out, "y1\n"+markerNoEOL+"\n||||||| base\n")
	assert.True(t, strings.HasSuffix(out, ">>>>>>> right\n"))

	regions, ok := parse([]byte(out))
	require.True(t, ok)
	require.Len(t, regions, 1)
	assert.Equal(t, []string{"y1"}, regions[0].left)
	assert.Equal(t, []string{"x"}, regions[0].base)
	assert.Equal(t, []string{"y2"}, regions[0].right)
}

func TestParse(t *testing.T) {
	regions, ok := parse([]byte("top\n<<<<<<< left\nL\n||||||| base\nB\n=======\nR\n>>>>>>> right\nbottom\n"))
	require.True(t, ok)
	require.Len(t, regions, 3)
	assert.Equal(t, []string{"top\n"}, regions[0].resolved)
	assert.True(t, regions[1].conflict)
	assert.Equal(t, []string{"L\n"}, regions[1].left)
	assert.Equal(t, []string{"B\n"}, regions[1].base)
	assert.Equal(t, []string{"R\n"}, regions[1].right)
	assert.Equal(t, []string{"bottom\n"}, regions[2].resolved)
}

func TestParse_Malformed(t *testing.T) {
	for name, text := range map[string]string{
		"unterminated":   "<<<<<<< left\nL\n||||||| base\nB\n=======\nR\n",
		"missing base":   "<<<<<<< left\nL\n=======\nR\n>>>>>>> right\n",
		"nested":         "<<<<<<< left\n<<<<<<< left\n",
		"early end":      "<<<<<<< left\nL\n>>>>>>> right\n",
		"double divider": "<<<<<<< left\n||||||| base\n=======\n=======\n>>>>>>> right\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := parse([]byte(text))
			assert.False(t, ok)
		})
	}
}

func TestUpdateFromContent_Resolved(t *testing.T) {
	s := backend.NewMemoryStore()
	id := writeConflict(t, s, []string{"a\nx\nz\n"}, []string{"a\ny1\nz\n", "a\ny2\nz\n"})

	newID, err := UpdateFromContent(s, "f", id, []byte("a\ny3\nz\n"))
	require.NoError(t, err)
	assert.Empty(t, newID)
}

func TestUpdateFromContent_Unchanged(t *testing.T) {
	s := backend.NewMemoryStore()
	id := writeConflict(t, s, []string{"a\nx\nz\n"}, []string{"a\ny1\nz\n", "a\ny2\nz\n"})
	materialized := Materialize(readSides(t, s, id))

	newID, err := UpdateFromContent(s, "f", id, materialized)
	require.NoError(t, err)
	assert.Equal(t, id, newID)
}

func TestUpdateFromContent_PartialResolution(t *testing.T) {
	s := backend.NewMemoryStore()
	base := "1\nx\n2\n3\n4\nq\n5\n"
	left := "1\nxl\n2\n3\n4\nql\n5\n"
	right := "1\nxr\n2\n3\n4\nqr\n5\n"
	id := writeConflict(t, s, []string{base}, []string{left, right})

	materialized := string(Materialize(readSides(t, s, id)))
	require.Equal(t, 2, strings.Count(materialized, "<<<<<<<"))

	// Resolve the first conflict by hand and leave the second one.
	start := strings.Index(materialized, "<<<<<<<")
	end := strings.Index(materialized, ">>>>>>> right\n") + len(">>>>>>> right\n")
	edited := materialized[:start] + "resolved\n" + materialized[end:]

	newID, err := UpdateFromContent(s, "f", id, []byte(edited))
	require.NoError(t, err)
	require.NotEmpty(t, newID)
	require.NotEqual(t, id, newID)

	h := readSides(t, s, newID)
	require.Len(t, h.Removes, 1)
	require.Len(t, h.Adds, 2)
	assert.Equal(t, "1\nresolved\n2\n3\n4\nq\n5\n", string(h.Removes[0]))
	assert.Equal(t, "1\nresolved\n2\n3\n4\nql\n5\n", string(h.Adds[0]))
	assert.Equal(t, "1\nresolved\n2\n3\n4\nqr\n5\n", string(h.Adds[1]))
}

func TestUpdateFromContent_KeepsMissingTrailingNewline(t *testing.T) {
	s := backend.NewMemoryStore()
	id := writeConflict(t, s, []string{"head\nbase"}, []string{"head\nleft", "head\nright"})

	materialized := string(Materialize(readSides(t, s, id)))
	edited := strings.Replace(materialized, "head\n", "HEAD\n", 1)

	newID, err := UpdateFromContent(s, "f", id, []byte(edited))
	require.NoError(t, err)
	require.NotEmpty(t, newID)

	h := readSides(t, s, newID)
	require.Len(t, h.Removes, 1)
	require.Len(t, h.Adds, 2)
	assert.Equal(t, "HEAD\nbase", string(h.Removes[0]))
	assert.Equal(t, "HEAD\nleft", string(h.Adds[0]))
	assert.Equal(t, "HEAD\nright", string(h.Adds[1]))
}

func TestUpdateFromContent_KeepsShape(t *testing.T) {
	s := backend.NewMemoryStore()
	// Edit/delete conflict: one remove, one add.
	id := writeConflict(t, s, []string{"a\nx\nz\n"}, []string{"a\ny\nz\n"})

	edited := "a\n<<<<<<< left\n||||||| base\nx\n=======\nY\n>>>>>>> right\nz\n"
	newID, err := UpdateFromContent(s, "f", id, []byte(edited))
	require.NoError(t, err)
	require.NotEmpty(t, newID)

	h := readSides(t, s, newID)
	require.Len(t, h.Removes, 1)
	require.Len(t, h.Adds, 1)
	assert.Equal(t, "a\nY\nz\n", string(h.Adds[0]))
}

func TestUpdateFromContent_ContentInAbsentSide(t *testing.T) {
	s := backend.NewMemoryStore()
	id := writeConflict(t, s, []string{"a\nx\nz\n"}, []string{"a\ny\nz\n"})

	edited := "a\n<<<<<<< left\nsomething\n||||||| base\nx\n=======\nY\n>>>>>>> right\nz\n"
	newID, err := UpdateFromContent(s, "f", id, []byte(edited))
	require.NoError(t, err)
	assert.Empty(t, newID)
}

func TestMerge3_Insertions(t *testing.T) {
	base := splitLines([]byte("a\nb\n"))
	left := splitLines([]byte("a\nnew\nb\n"))
	right := splitLines([]byte("a\nb\nend\n"))

	regions := merge3(base, left, right)
	require.Len(t, regions, 1)
	assert.False(t, regions[0].conflict)
	assert.Equal(t, []string{"a\n", "new\n", "b\n", "end\n"}, regions[0].resolved)
}
