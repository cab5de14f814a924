// Package conflicts turns stored conflict objects into content that external
// tools can work with, and folds edited content back into conflict objects.
package conflicts

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/joescharf/mtool/internal/backend"
)

// Store is the subset of the object store needed to read and write conflicts.
type Store interface {
	ReadFile(path backend.RepoPath, id string) ([]byte, error)
	WriteFile(path backend.RepoPath, r io.Reader) (string, error)
	ReadConflict(path backend.RepoPath, id string) (*backend.Conflict, error)
	WriteConflict(path backend.RepoPath, c *backend.Conflict) (string, error)
}

// Hunk is a conflict reduced to the raw bytes of each side.
type Hunk struct {
	Removes [][]byte
	Adds    [][]byte
}

// Sides returns base, left and right content. Adds are consumed from the
// end: the last add is right and the one before it is left. Missing sides
// are empty.
func (h *Hunk) Sides() (base, left, right []byte) {
	if len(h.Removes) > 0 {
		base = h.Removes[0]
	}
	adds := h.Adds
	if n := len(adds); n > 0 {
		right = adds[n-1]
		adds = adds[:n-1]
	}
	if n := len(adds); n > 0 {
		left = adds[n-1]
	}
	return base, left, right
}

// ExtractSingleHunk reads every side of c. It returns nil when any side is not
// a plain, non-executable file.
func ExtractSingleHunk(s Store, path backend.RepoPath, c *backend.Conflict) (*Hunk, error) {
	read := func(parts []backend.ConflictPart) ([][]byte, bool, error) {
		out := make([][]byte, 0, len(parts))
		for _, p := range parts {
			if p.Value.Kind != backend.KindFile || p.Value.Executable {
				return nil, false, nil
			}
			data, err := s.ReadFile(path, p.Value.ID)
			if err != nil {
				return nil, false, err
			}
			out = append(out, data)
		}
		return out, true, nil
	}

	removes, ok, err := read(c.Removes)
	if err != nil || !ok {
		return nil, err
	}
	adds, ok, err := read(c.Adds)
	if err != nil || !ok {
		return nil, err
	}
	return &Hunk{Removes: removes, Adds: adds}, nil
}

// Describe renders a human-readable summary of every side of c.
func Describe(c *backend.Conflict) string {
	var b strings.Builder
	for _, p := range c.Removes {
		fmt.Fprintf(&b, "Removing %s\n", describeValue(p.Value))
	}
	for _, p := range c.Adds {
		fmt.Fprintf(&b, "Adding %s\n", describeValue(p.Value))
	}
	return b.String()
}

func describeValue(v backend.TreeValue) string {
	switch {
	case v.Kind == backend.KindFile && v.Executable:
		return "executable file with id " + v.ID
	default:
		return fmt.Sprintf("%s with id %s", v.Kind, v.ID)
	}
}

// Materialize renders h for a tool that edits conflict markers. Sides that
// agree resolve trivially; otherwise the sides are merged line by line and
// each overlapping change is wrapped in markers. Hunks with more than one
// remove or two adds only use the sides Sides reports.
func Materialize(h *Hunk) []byte {
	base, left, right := h.Sides()
	if resolved, ok := trivialMerge(base, left, right); ok {
		return bytes.Clone(resolved)
	}

	var out bytes.Buffer
	for _, r := range merge3(splitLines(base), splitLines(left), splitLines(right)) {
		if !r.conflict {
			writeLines(&out, r.resolved)
			continue
		}
		out.WriteString(markerStart + "\n")
		writeSection(&out, r.left)
		out.WriteString(markerBase + "\n")
		writeSection(&out, r.base)
		out.WriteString(markerSeparator + "\n")
		writeSection(&out, r.right)
		out.WriteString(markerEnd + "\n")
	}
	return out.Bytes()
}

func trivialMerge(base, left, right []byte) ([]byte, bool) {
	switch {
	case bytes.Equal(left, right):
		return left, true
	case bytes.Equal(left, base):
		return right, true
	case bytes.Equal(right, base):
		return left, true
	}
	return nil, false
}

func writeLines(w *bytes.Buffer, lines []string) {
	for _, l := range lines {
		w.WriteString(l)
	}
}

// writeSection writes lines inside a marker block, making sure the next
// marker starts on its own line. A missing final newline is recorded with
// markerNoEOL so parse can restore the side exactly.
func writeSection(w *bytes.Buffer, lines []string) {
	writeLines(w, lines)
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		w.WriteString("\n" + markerNoEOL + "\n")
	}
}

// UpdateFromContent folds edited marker text back into the conflict id.
// It returns the id of the conflict that remains, or "" when content no
// longer contains a conflict and should be stored as a plain file.
// Content identical to the materialized conflict yields the original id.
func UpdateFromContent(s Store, path backend.RepoPath, conflictID string, content []byte) (string, error) {
	c, err := s.ReadConflict(path, conflictID)
	if err != nil {
		return "", err
	}
	hunk, err := ExtractSingleHunk(s, path, c)
	if err != nil {
		return "", err
	}
	if hunk == nil || len(hunk.Removes) > 1 || len(hunk.Adds) > 2 {
		return "", nil
	}
	if bytes.Equal(content, Materialize(hunk)) {
		return conflictID, nil
	}

	regions, ok := parse(content)
	if !ok || !hasConflict(regions) {
		return "", nil
	}

	var (
		base, left, right          bytes.Buffer
		hasBase, hasLeft, hasRight bool
	)
	for _, r := range regions {
		if !r.conflict {
			writeLines(&base, r.resolved)
			writeLines(&left, r.resolved)
			writeLines(&right, r.resolved)
			continue
		}
		writeLines(&base, r.base)
		writeLines(&left, r.left)
		writeLines(&right, r.right)
		hasBase = hasBase || len(r.base) > 0
		hasLeft = hasLeft || len(r.left) > 0
		hasRight = hasRight || len(r.right) > 0
	}

	// A side the original conflict never had cannot gain content.
	if (len(hunk.Removes) == 0 && hasBase) ||
		(len(hunk.Adds) < 2 && hasLeft) ||
		(len(hunk.Adds) == 0 && hasRight) {
		return "", nil
	}

	writePart := func(content []byte) (backend.ConflictPart, error) {
		id, err := s.WriteFile(path, bytes.NewReader(content))
		if err != nil {
			return backend.ConflictPart{}, err
		}
		return backend.ConflictPart{Value: backend.FileValue(id, false)}, nil
	}

	updated := &backend.Conflict{}
	if len(hunk.Removes) == 1 {
		p, err := writePart(base.Bytes())
		if err != nil {
			return "", err
		}
		updated.Removes = append(updated.Removes, p)
	}
	if len(hunk.Adds) == 2 {
		p, err := writePart(left.Bytes())
		if err != nil {
			return "", err
		}
		updated.Adds = append(updated.Adds, p)
	}
	if len(hunk.Adds) >= 1 {
		p, err := writePart(right.Bytes())
		if err != nil {
			return "", err
		}
		updated.Adds = append(updated.Adds, p)
	}
	return s.WriteConflict(path, updated)
}
