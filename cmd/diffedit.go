package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/mtool/internal/mergetools"
	"github.com/joescharf/mtool/internal/models"
	"github.com/joescharf/mtool/internal/toolconfig"
)

var diffeditInstructionsFile string

var diffeditCmd = &cobra.Command{
	Use:   "diffedit <left-tree> <right-tree>",
	Short: "Edit the changes between two trees with the configured diff editor",
	Long: `Check out the paths that differ between <left-tree> and <right-tree> into
two sibling directories and open them with the diff editor configured in
ui.diff-editor. The left directory is read-only. Whatever the right
directory contains when the editor exits becomes a new tree, whose id is
printed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return diffeditRun(cmd.Context(), args[0], args[1])
	},
}

func init() {
	diffeditCmd.Flags().StringVar(&diffeditInstructionsFile, "instructions-file", "",
		"File whose content is shown to the user as "+mergetools.InstructionsFileName)
	rootCmd.AddCommand(diffeditCmd)
}

func diffeditRun(ctx context.Context, leftRev, rightRev string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := getRepo()
	if err != nil {
		return err
	}
	leftID, err := r.ResolveTree(leftRev)
	if err != nil {
		return err
	}
	rightID, err := r.ResolveTree(rightRev)
	if err != nil {
		return err
	}

	var instructions string
	if diffeditInstructionsFile != "" {
		data, err := os.ReadFile(diffeditInstructionsFile)
		if err != nil {
			return fmt.Errorf("read instructions: %w", err)
		}
		instructions = string(data)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s on %s..%s", editorName(toolconfig.DiffEditorKey), leftID, rightID)
		return nil
	}

	newTreeID, runErr := newEditor(r).EditDiff(ctx, leftID, rightID, instructions, snapshotIgnores())
	recordOperation(&models.Operation{
		Kind:       models.OperationDiffEdit,
		InputTree:  rightID,
		OutputTree: newTreeID,
		Tool:       editorName(toolconfig.DiffEditorKey),
	}, runErr)
	if runErr != nil {
		return runErr
	}

	if newTreeID == rightID {
		ui.Info("No changes")
	} else {
		ui.Success("Recorded edited diff")
	}
	fmt.Fprintln(ui.Out, newTreeID)
	return nil
}
