package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/mtool/internal/output"
	"github.com/joescharf/mtool/internal/workingcopy"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Inspect and create trees",
}

var treeLsCmd = &cobra.Command{
	Use:     "ls <tree>",
	Aliases: []string{"list"},
	Short:   "List every path in a tree",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return treeLsRun(args[0])
	},
}

var treeWriteCmd = &cobra.Command{
	Use:   "write <dir>",
	Short: "Snapshot a directory into a new tree and print its id",
	Long: `Snapshot every file under <dir> into a new tree and print its id.
.gitignore files and snapshot.ignores are honored; .git is always skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return treeWriteRun(args[0])
	},
}

func init() {
	treeCmd.AddCommand(treeLsCmd)
	treeCmd.AddCommand(treeWriteCmd)
	rootCmd.AddCommand(treeCmd)
}

func treeLsRun(rev string) error {
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
	entries, err := tree.Entries()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		ui.Info("Tree %s is empty", treeID)
		return nil
	}

	table := ui.Table([]string{"Path", "Kind", "ID"})
	for _, e := range entries {
		kind := e.Value.Kind.String()
		if e.Value.Executable {
			kind = "executable"
		}
		_ = table.Append([]string{
			output.Cyan(string(e.Path)),
			output.KindColor(kind),
			shortID(e.Value.ID),
		})
	}
	_ = table.Render()
	return nil
}

func treeWriteRun(dir string) error {
	r, err := getRepo()
	if err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if dryRun {
		ui.DryRunMsg("Would snapshot %s", dir)
		return nil
	}

	stateDir, err := os.MkdirTemp("", "mtool-snapshot-")
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	defer os.RemoveAll(stateDir)

	ts, err := workingcopy.Init(r, dir, stateDir)
	if err != nil {
		return err
	}
	treeID, err := ts.Snapshot(snapshotIgnores())
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", dir, err)
	}

	ui.VerboseLog("Snapshotted %s", dir)
	fmt.Fprintln(ui.Out, treeID)
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
