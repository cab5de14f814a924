// Package exttool runs external merge tools and diff editors.
package exttool

import (
	"github.com/samber/lo"
)

// Role names one of the files handed to a merge tool.
type Role int

const (
	RoleBase Role = iota
	RoleLeft
	RoleRight
	RoleOutput
)

// Roles lists every role in the order files are prepared.
var Roles = []Role{RoleBase, RoleLeft, RoleRight, RoleOutput}

var roleNames = map[Role]string{
	RoleBase:   "base",
	RoleLeft:   "left",
	RoleRight:  "right",
	RoleOutput: "output",
}

var roleBySigil = lo.Associate(Roles, func(r Role) (string, Role) {
	return "$" + roleNames[r], r
})

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Sigil is the placeholder that stands for r in an argument template.
func (r Role) Sigil() string {
	return "$" + r.String()
}

// RoleFileSet maps each role to the absolute path of its file.
type RoleFileSet map[Role]string

// Interpolate substitutes role paths into templates. Only arguments that are
// exactly a sigil are replaced; "--out=$output" passes through unchanged.
// A sigil whose role has no file is also left as is.
func Interpolate(templates []string, files RoleFileSet) []string {
	return lo.Map(templates, func(arg string, _ int) string {
		role, ok := roleBySigil[arg]
		if !ok {
			return arg
		}
		if p, ok := files[role]; ok {
			return p
		}
		return arg
	})
}
