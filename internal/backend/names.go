package backend

import "strings"

// escapeMark is appended to the stored name of any non-conflict entry whose
// name already looks like a conflict entry, so a user file such as
// "notes.mtconflict" never reads back as a conflict at "notes".
const escapeMark = "~"

func hasReservedSuffix(name string) bool {
	return strings.HasSuffix(strings.TrimRight(name, escapeMark), ConflictSuffix)
}

// entryName returns the git tree entry name under which a value of kind k is
// stored at name.
func entryName(name string, k ValueKind) string {
	if k == KindConflict {
		return name + ConflictSuffix
	}
	if hasReservedSuffix(name) {
		return name + escapeMark
	}
	return name
}

// parseEntryName reverses entryName.
func parseEntryName(stored string) (name string, conflict bool) {
	if strings.HasSuffix(stored, ConflictSuffix) && len(stored) > len(ConflictSuffix) {
		return strings.TrimSuffix(stored, ConflictSuffix), true
	}
	if strings.HasSuffix(stored, escapeMark) && hasReservedSuffix(stored) {
		return strings.TrimSuffix(stored, escapeMark), false
	}
	return stored, false
}

// logicalPath maps a slash-separated path of stored entry names back to the
// repo path callers see.
func logicalPath(stored string) RepoPath {
	comps := strings.Split(stored, "/")
	for i, c := range comps {
		comps[i], _ = parseEntryName(c)
	}
	return RepoPath(strings.Join(comps, "/"))
}
