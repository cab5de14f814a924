package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/mtool/internal/output"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent resolve and diffedit runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logRun()
	},
}

func init() {
	logCmd.Flags().IntVar(&logLimit, "limit", 20, "Maximum number of operations to show (0 for all)")
	rootCmd.AddCommand(logCmd)
}

func logRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ops, err := s.ListOperations(context.Background(), logLimit)
	if err != nil {
		return err
	}

	if len(ops) == 0 {
		ui.Info("No operations recorded yet.")
		return nil
	}

	table := ui.Table([]string{"When", "Kind", "Path", "Tool", "Status", "Result"})
	for _, op := range ops {
		result := shortID(op.OutputTree)
		if op.Error != "" {
			result = op.Error
		}
		_ = table.Append([]string{
			op.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(op.Kind),
			output.Cyan(op.Path),
			op.Tool,
			output.StatusColor(string(op.Status)),
			result,
		})
	}
	_ = table.Render()
	return nil
}
