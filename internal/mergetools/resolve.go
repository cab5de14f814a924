package mergetools

import (
	"bytes"
	"context"
	"os"

	"github.com/joescharf/mtool/internal/backend"
	"github.com/joescharf/mtool/internal/conflicts"
	"github.com/joescharf/mtool/internal/exttool"
	"github.com/joescharf/mtool/internal/toolconfig"
	"github.com/joescharf/mtool/internal/workspace"
)

// ResolvePrefix names the scratch directories created by RunMergeTool.
const ResolvePrefix = "mtool-resolve-"

// RunMergeTool resolves the conflict at path in treeID with the configured
// merge tool. It returns the id of a new tree in which path holds the tool's
// output: a plain file, or an updated conflict when the tool edits conflict
// markers and left some in place. The original tree is never modified.
func (e *Editor) RunMergeTool(ctx context.Context, treeID string, path backend.RepoPath) (string, error) {
	tree, err := e.Store.Tree(treeID)
	if err != nil {
		return "", &BackendError{Err: err}
	}
	value, ok, err := tree.PathValue(path)
	if err != nil {
		return "", &BackendError{Err: err}
	}
	if !ok {
		return "", &PathNotFoundError{Path: path}
	}
	if value.Kind != backend.KindConflict {
		return "", &NotAConflictError{Path: path}
	}

	conflict, err := e.Store.ReadConflict(path, value.ID)
	if err != nil {
		return "", &BackendError{Err: err}
	}
	hunk, err := conflicts.ExtractSingleHunk(e.Store, path, conflict)
	if err != nil {
		return "", &BackendError{Err: err}
	}
	if hunk == nil {
		return "", &NotNormalFilesError{Path: path, Summary: conflicts.Describe(conflict)}
	}
	if len(hunk.Removes) > 1 || len(hunk.Adds) > 2 {
		return "", &ConflictTooComplicatedError{Path: path, Removes: len(hunk.Removes), Adds: len(hunk.Adds)}
	}

	tool, notice, err := toolconfig.MergeEditor(e.Settings)
	e.notify(notice)
	if err != nil {
		return "", err
	}

	ws, err := workspace.New(ResolvePrefix)
	if err != nil {
		return "", err
	}
	defer ws.Close()

	suffix := ""
	if !path.IsRoot() {
		suffix = "_" + path.Base()
	}

	files := exttool.RoleFileSet{}
	base, left, right := hunk.Sides()
	inputs := map[exttool.Role][]byte{
		exttool.RoleBase:  base,
		exttool.RoleLeft:  left,
		exttool.RoleRight: right,
	}
	for _, role := range []exttool.Role{exttool.RoleBase, exttool.RoleLeft, exttool.RoleRight} {
		p, err := ws.WriteRoleFile(role, suffix, inputs[role])
		if err != nil {
			return "", err
		}
		if err := workspace.ProtectReadonly(p); err != nil {
			return "", err
		}
		files[role] = p
	}

	var seed []byte
	if tool.EditsConflictMarkers {
		seed = conflicts.Materialize(hunk)
	}
	outputPath, err := ws.WriteRoleFile(exttool.RoleOutput, suffix, seed)
	if err != nil {
		return "", err
	}
	files[exttool.RoleOutput] = outputPath

	inv := exttool.Invocation{
		Program: tool.Program,
		Args:    exttool.Interpolate(tool.MergeArgs, files),
	}
	if err := e.Runner.Run(ctx, inv); err != nil {
		return "", err
	}

	output, err := os.ReadFile(outputPath)
	if err != nil {
		return "", &IOError{Err: err}
	}
	if len(output) == 0 || bytes.Equal(output, seed) {
		return "", ErrEmptyOrUnchanged
	}

	newValue, err := e.outputValue(path, value.ID, output, tool.EditsConflictMarkers)
	if err != nil {
		return "", err
	}

	builder := e.Store.TreeBuilder(treeID)
	builder.Set(path, newValue)
	newTreeID, err := builder.WriteTree()
	if err != nil {
		return "", &BackendError{Err: err}
	}
	return newTreeID, nil
}

// outputValue stores the tool's output. Marker text that still contains
// conflicts becomes an updated conflict; anything else is a regular file.
func (e *Editor) outputValue(path backend.RepoPath, conflictID string, output []byte, parseMarkers bool) (backend.TreeValue, error) {
	if parseMarkers {
		id, err := conflicts.UpdateFromContent(e.Store, path, conflictID, output)
		if err != nil {
			return backend.TreeValue{}, &BackendError{Err: err}
		}
		if id != "" {
			return backend.ConflictValue(id), nil
		}
	}
	id, err := e.Store.WriteFile(path, bytes.NewReader(output))
	if err != nil {
		return backend.TreeValue{}, &BackendError{Err: err}
	}
	return backend.FileValue(id, false), nil
}
