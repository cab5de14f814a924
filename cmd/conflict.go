package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/mtool/internal/backend"
	"github.com/joescharf/mtool/internal/conflicts"
	"github.com/joescharf/mtool/internal/output"
)

var (
	conflictRemoves []string
	conflictAdds    []string
)

var conflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Create and inspect conflicts",
}

var conflictCreateCmd = &cobra.Command{
	Use:   "create <tree> <path>",
	Short: "Store a conflict at a path and print the new tree id",
	Long: `Store a conflict at <path> built from the given files and print the id of
the resulting tree. Each --remove is a base the sides diverged from; each
--add is one side. A typical two-way conflict has one --remove and two
--add files: left first, right second.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return conflictCreateRun(args[0], args[1])
	},
}

var conflictShowCmd = &cobra.Command{
	Use:   "show <tree> <path>",
	Short: "Show the sides of a conflict and its marker text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return conflictShowRun(args[0], args[1])
	},
}

func init() {
	conflictCreateCmd.Flags().StringArrayVar(&conflictRemoves, "remove", nil, "File holding a removed (base) side")
	conflictCreateCmd.Flags().StringArrayVar(&conflictAdds, "add", nil, "File holding an added side")
	conflictCmd.AddCommand(conflictCreateCmd)
	conflictCmd.AddCommand(conflictShowCmd)
	rootCmd.AddCommand(conflictCmd)
}

func conflictCreateRun(rev, pathArg string) error {
	if len(conflictAdds) == 0 {
		return fmt.Errorf("a conflict needs at least one --add")
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
	if path.IsRoot() {
		return fmt.Errorf("cannot store a conflict at the root")
	}

	if dryRun {
		ui.DryRunMsg("Would store a conflict with %d removes and %d adds at %s", len(conflictRemoves), len(conflictAdds), path)
		return nil
	}

	parts := func(files []string) ([]backend.ConflictPart, error) {
		out := make([]backend.ConflictPart, 0, len(files))
		for _, f := range files {
			fh, err := os.Open(f)
			if err != nil {
				return nil, err
			}
			id, err := r.WriteFile(path, fh)
			_ = fh.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, backend.ConflictPart{Value: backend.FileValue(id, false)})
		}
		return out, nil
	}

	removes, err := parts(conflictRemoves)
	if err != nil {
		return err
	}
	adds, err := parts(conflictAdds)
	if err != nil {
		return err
	}
	conflictID, err := r.WriteConflict(path, &backend.Conflict{Removes: removes, Adds: adds})
	if err != nil {
		return err
	}

	builder := r.TreeBuilder(treeID)
	builder.Set(path, backend.ConflictValue(conflictID))
	newTreeID, err := builder.WriteTree()
	if err != nil {
		return err
	}

	ui.Success("Stored conflict at %s", output.Cyan(string(path)))
	fmt.Fprintln(ui.Out, newTreeID)
	return nil
}

func conflictShowRun(rev, pathArg string) error {
	r, err := getRepo()
	if err != nil {
		return err
	}
	treeID, err := r.ResolveTree(rev)
	if err != nil {
		return err
	}
	tree, err := r.Tree(treeID)
	if err != nil {
		return err
	}
	path := backend.NewRepoPath(pathArg)
	v, ok, err := tree.PathValue(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no value at %s", path)
	}
	if v.Kind != backend.KindConflict {
		ui.Info("%s is a %s, not a conflict", path, v.Kind)
		return nil
	}

	c, err := r.ReadConflict(path, v.ID)
	if err != nil {
		return err
	}
	fmt.Fprint(ui.Out, conflicts.Describe(c))

	hunk, err := conflicts.ExtractSingleHunk(r, path, c)
	if err != nil {
		return err
	}
	if hunk == nil || len(hunk.Removes) > 1 || len(hunk.Adds) > 2 {
		ui.VerboseLog("Conflict cannot be shown as marker text")
		return nil
	}
	fmt.Fprintln(ui.Out)
	_, err = ui.Out.Write(conflicts.Materialize(hunk))
	return err
}
