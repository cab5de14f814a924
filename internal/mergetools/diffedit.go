package mergetools

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/joescharf/mtool/internal/exttool"
	"github.com/joescharf/mtool/internal/toolconfig"
	"github.com/joescharf/mtool/internal/workspace"
)

const (
	// DiffEditPrefix names the scratch directories created by EditDiff.
	DiffEditPrefix = "mtool-diff-edit-"

	// InstructionsFileName is written into the right directory when the
	// caller supplies instructions.
	InstructionsFileName = "MTOOL-INSTRUCTIONS"
)

// EditDiff lets the user edit the changes between leftTreeID and rightTreeID
// with the configured diff editor. Only paths that differ between the trees
// are checked out. The left side is read-only; the right side is
// snapshotted after the tool exits and the resulting tree id is returned.
func (e *Editor) EditDiff(ctx context.Context, leftTreeID, rightTreeID, instructions string, baseIgnores []gitignore.Pattern) (string, error) {
	leftTree, err := e.Store.Tree(leftTreeID)
	if err != nil {
		return "", &BackendError{Err: err}
	}
	rightTree, err := e.Store.Tree(rightTreeID)
	if err != nil {
		return "", &BackendError{Err: err}
	}
	changed, err := leftTree.Diff(rightTree)
	if err != nil {
		return "", &BackendError{Err: err}
	}

	ws, err := workspace.New(DiffEditPrefix)
	if err != nil {
		return "", err
	}
	defer ws.Close()

	leftDir := ws.Path("left")
	if _, err := workspace.Checkout(e.Store, leftDir, ws.Path("left_state"), leftTreeID, changed); err != nil {
		return "", checkoutError(err)
	}
	if err := workspace.ProtectReadonly(leftDir); err != nil {
		return "", err
	}

	rightDir := ws.Path("right")
	rightState, err := workspace.Checkout(e.Store, rightDir, ws.Path("right_state"), rightTreeID, changed)
	if err != nil {
		return "", checkoutError(err)
	}

	instructionsPath := filepath.Join(rightDir, InstructionsFileName)
	wroteInstructions := false
	if instructions != "" {
		if _, err := os.Lstat(instructionsPath); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(instructionsPath, []byte(instructions), 0o644); err != nil {
				return "", &exttool.SetUpDirError{Err: err}
			}
			wroteInstructions = true
		}
	}

	tool, notice, err := toolconfig.DiffEditor(e.Settings)
	e.notify(notice)
	if err != nil {
		return "", err
	}

	args := append(slices.Clone(tool.EditArgs), leftDir, rightDir)
	if err := e.Runner.Run(ctx, exttool.Invocation{Program: tool.Program, Args: args}); err != nil {
		return "", err
	}

	if wroteInstructions {
		_ = os.Remove(instructionsPath)
	}

	treeID, err := rightState.Snapshot(baseIgnores)
	if err != nil {
		return "", &SnapshotError{Err: err}
	}
	return treeID, nil
}

func checkoutError(err error) error {
	var setup *exttool.SetUpDirError
	if errors.As(err, &setup) {
		return err
	}
	return &CheckoutError{Err: err}
}
