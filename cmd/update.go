package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/assoc/internal/ui"
)

var updateCmd = &cobra.Command{
	Use:   "update <manifest.toml>...",
	Short: "Build and evaluate manifests, then write their item-state files",
	Long: `Builds the drawing described by each manifest, evaluates every array and
override, records the run in the journal and writes <manifest>.state.toml.

Manifests are independent and are evaluated concurrently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().Bool("actions", false, "print the outcome of every evaluated action")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	showActions, _ := cmd.Flags().GetBool("actions")

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	results := make([]evaluation, len(args))
	var mu sync.Mutex
	failed := 0

	g, ctx := errgroup.WithContext(cmd.Context())
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			s, rec, err := e.build(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			ev, err := e.update(ctx, path, s, rec)
			results[i] = ev
			if ev.Err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, ev := range results {
		e.printer.UpdateDone(ev.Session.Manifest().Name, ev.Result, ev.Elapsed)
		if ev.Err != nil {
			e.printer.Error(ev.Err.Error())
		}
		if showActions {
			ui.ActionTable(cmd.OutOrStdout(), ev.Actions)
		}
	}
	if err := e.writeMetrics(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d manifest(s) had failing actions", failed, len(args))
	}
	return nil
}
