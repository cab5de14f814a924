package conflicts

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	markerStart     = "<<<<<<< left"
	markerBase      = "||||||| base"
	markerSeparator = "======="
	markerEnd       = ">>>>>>> right"

	// markerNoEOL follows a section whose last line has no newline in the
	// side it came from.
	markerNoEOL = `\ No newline at end of file`
)

// region is either a run of lines all sides agree on, or a conflicting
// change with each side's lines.
type region struct {
	conflict bool
	resolved []string
	base     []string
	left     []string
	right    []string
}

func hasConflict(regions []region) bool {
	return slices.ContainsFunc(regions, func(r region) bool { return r.conflict })
}

// splitLines splits b after every newline. The last line keeps whatever
// ending it had.
func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	var lines []string
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// matchMap maps each base line index that survives unchanged in other to its
// index in other.
func matchMap(base, other []string) map[int]int {
	m := difflib.NewMatcherWithJunk(base, other, false, nil)
	out := make(map[int]int)
	for _, blk := range m.GetMatchingBlocks() {
		for i := 0; i < blk.Size; i++ {
			out[blk.A+i] = blk.B + i
		}
	}
	return out
}

// merge3 performs a line-based three-way merge. Base lines kept by both
// sides act as sync points; the chunks between them are taken from whichever
// side changed, or reported as conflicts when both changed differently.
func merge3(base, left, right []string) []region {
	ml := matchMap(base, left)
	mr := matchMap(base, right)

	var regions []region
	emit := func(r region) {
		if !r.conflict && len(r.resolved) == 0 {
			return
		}
		if n := len(regions); n > 0 && !r.conflict && !regions[n-1].conflict {
			regions[n-1].resolved = append(regions[n-1].resolved, r.resolved...)
			return
		}
		regions = append(regions, r)
	}

	i, j, k := 0, 0, 0
	for {
		// Next base line matched on both sides at or after the cursors.
		sync := -1
		for b := i; b < len(base); b++ {
			lj, okl := ml[b]
			rk, okr := mr[b]
			if okl && okr && lj >= j && rk >= k {
				sync = b
				break
			}
		}

		endB, endL, endR := len(base), len(left), len(right)
		if sync >= 0 {
			endB, endL, endR = sync, ml[sync], mr[sync]
		}

		if endB > i || endL > j || endR > k {
			emit(resolveChunk(base[i:endB], left[j:endL], right[k:endR]))
		}
		if sync < 0 {
			break
		}

		emit(region{resolved: []string{base[sync]}})
		i, j, k = sync+1, endL+1, endR+1
	}
	return regions
}

func resolveChunk(base, left, right []string) region {
	switch {
	case slices.Equal(left, base):
		return region{resolved: right}
	case slices.Equal(right, base):
		return region{resolved: left}
	case slices.Equal(left, right):
		return region{resolved: left}
	}
	return region{
		conflict: true,
		base:     slices.Clone(base),
		left:     slices.Clone(left),
		right:    slices.Clone(right),
	}
}

// trimEOL drops the newline that was added after the last line of a section.
func trimEOL(lines []string) {
	if n := len(lines); n > 0 {
		lines[n-1] = strings.TrimSuffix(strings.TrimSuffix(lines[n-1], "\n"), "\r")
	}
}

// parse splits marker text into regions. It reports false when a marker
// block is malformed or unterminated.
func parse(content []byte) ([]region, bool) {
	const (
		outside = iota
		inLeft
		inBase
		inRight
	)

	var (
		regions []region
		cur     region
		plain   []string
		state   = outside
	)

	for _, line := range splitLines(content) {
		marker := strings.TrimRight(line, "\r\n")
		switch state {
		case outside:
			if strings.HasPrefix(marker, "<<<<<<<") {
				if len(plain) > 0 {
					regions = append(regions, region{resolved: plain})
					plain = nil
				}
				cur = region{conflict: true}
				state = inLeft
				continue
			}
			plain = append(plain, line)
		case inLeft:
			switch {
			case strings.HasPrefix(marker, "|||||||"):
				state = inBase
			case marker == markerSeparator, strings.HasPrefix(marker, "<<<<<<<"), strings.HasPrefix(marker, ">>>>>>>"):
				return nil, false
			case marker == markerNoEOL:
				trimEOL(cur.left)
			default:
				cur.left = append(cur.left, line)
			}
		case inBase:
			switch {
			case marker == markerSeparator:
				state = inRight
			case strings.HasPrefix(marker, "<<<<<<<"), strings.HasPrefix(marker, "|||||||"), strings.HasPrefix(marker, ">>>>>>>"):
				return nil, false
			case marker == markerNoEOL:
				trimEOL(cur.base)
			default:
				cur.base = append(cur.base, line)
			}
		case inRight:
			switch {
			case strings.HasPrefix(marker, ">>>>>>>"):
				regions = append(regions, cur)
				cur = region{}
				state = outside
			case strings.HasPrefix(marker, "<<<<<<<"), strings.HasPrefix(marker, "|||||||"), marker == markerSeparator:
				return nil, false
			case marker == markerNoEOL:
				trimEOL(cur.right)
			default:
				cur.right = append(cur.right, line)
			}
		}
	}

	if state != outside {
		return nil, false
	}
	if len(plain) > 0 {
		regions = append(regions, region{resolved: plain})
	}
	return regions, true
}
