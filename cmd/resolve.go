package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/mtool/internal/backend"
	"github.com/joescharf/mtool/internal/models"
	"github.com/joescharf/mtool/internal/output"
	"github.com/joescharf/mtool/internal/toolconfig"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <tree> <path>",
	Short: "Resolve a conflicted file with the configured merge tool",
	Long: `Resolve the conflict at <path> in <tree> with the merge tool configured
in ui.merge-editor. The tool is given the base, left and right versions as
read-only files and writes its result to $output.

On success the id of a new tree, with <path> replaced by the result, is
printed. <tree> may be a tree id, a commit id or any revision git understands.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveRun(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func resolveRun(ctx context.Context, rev, pathArg string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := getRepo()
	if err != nil {
		return err
	}
	treeID, err := r.ResolveTree(rev)
	if err != nil {
		return err
	}
	path := backend.NewRepoPath(pathArg)

	if dryRun {
		ui.DryRunMsg("Would run %s on %s in tree %s", editorName(toolconfig.MergeEditorKey), path, treeID)
		return nil
	}

	newTreeID, runErr := newEditor(r).RunMergeTool(ctx, treeID, path)
	recordOperation(&models.Operation{
		Kind:       models.OperationResolve,
		Path:       string(path),
		InputTree:  treeID,
		OutputTree: newTreeID,
		Tool:       editorName(toolconfig.MergeEditorKey),
	}, runErr)
	if runErr != nil {
		return runErr
	}

	ui.Success("Resolved %s", output.Cyan(string(path)))
	fmt.Fprintln(ui.Out, newTreeID)
	return nil
}
