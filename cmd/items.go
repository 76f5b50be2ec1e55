package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/assoc/internal/config"
	"github.com/papapumpkin/assoc/internal/manifest"
	"github.com/papapumpkin/assoc/internal/ui"
)

var itemsCmd = &cobra.Command{
	Use:   "items <manifest.toml>",
	Short: "List the items of the last update from the item-state file",
	Args:  cobra.ExactArgs(1),
	RunE:  runItems,
}

func init() {
	itemsCmd.Flags().String("array", "", "only list the items of this array")
	itemsCmd.Flags().Bool("summary", false, "list arrays only")
	rootCmd.AddCommand(itemsCmd)
}

func runItems(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	only, _ := cmd.Flags().GetString("array")
	summary, _ := cmd.Flags().GetBool("summary")

	path := manifest.StatePath(args[0], cfg.StateDir)
	st, err := manifest.LoadState(path)
	if err != nil {
		return err
	}
	if len(st.Arrays) == 0 {
		ui.New().Info(fmt.Sprintf("no items recorded in %s; run `assoc update %s` first", path, args[0]))
		return nil
	}
	if only != "" {
		st = filterArray(st, only)
		if len(st.Arrays) == 0 {
			return fmt.Errorf("array %q not in %s", only, path)
		}
	}

	if summary {
		ui.ArrayTable(cmd.OutOrStdout(), st)
		return nil
	}
	ui.ItemTable(cmd.OutOrStdout(), st)
	return nil
}

func filterArray(st *manifest.State, name string) *manifest.State {
	out := *st
	out.Arrays = nil
	for _, a := range st.Arrays {
		if a.Name == name {
			out.Arrays = append(out.Arrays, a)
		}
	}
	return &out
}
