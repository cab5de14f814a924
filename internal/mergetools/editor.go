// Package mergetools resolves conflicts and edits diffs by handing
// materialized files to an external program and reading back what it left.
package mergetools

import (
	"context"

	"github.com/joescharf/mtool/internal/exttool"
	"github.com/joescharf/mtool/internal/toolconfig"
	"github.com/joescharf/mtool/internal/workingcopy"
)

// Store is the object store both workflows read and write.
type Store interface {
	workingcopy.Store
}

// ToolRunner starts an external tool and waits for it.
type ToolRunner interface {
	Run(ctx context.Context, inv exttool.Invocation) error
}

// Editor runs merge tools and diff editors against a store.
type Editor struct {
	Store    Store
	Settings toolconfig.Settings
	Runner   ToolRunner

	// Notify receives informational notices produced while resolving the
	// tool, such as falling back to the default editor.
	Notify func(toolconfig.Notice)
}

// NewEditor returns an editor that runs tools through runner.
func NewEditor(store Store, settings toolconfig.Settings, runner ToolRunner) *Editor {
	return &Editor{Store: store, Settings: settings, Runner: runner}
}

func (e *Editor) notify(n *toolconfig.Notice) {
	if n != nil && e.Notify != nil {
		e.Notify(*n)
	}
}
