package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/assoc/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history [manifest-name]",
	Short: "List journaled runs, or the action outcomes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().String("run", "", "show the action outcomes of this run")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	if e.journal == nil {
		return errors.New("no journal configured (journal_path is empty)")
	}

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		results, err := e.journal.Actions(cmd.Context(), runID)
		if err != nil {
			return err
		}
		ui.ActionTable(cmd.OutOrStdout(), results)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	var name string
	if len(args) == 1 {
		name = args[0]
	}
	runs, err := e.journal.Runs(cmd.Context(), name, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		e.printer.Info("no runs recorded")
		return nil
	}
	ui.RunTable(cmd.OutOrStdout(), runs)
	return nil
}

