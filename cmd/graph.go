package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/config"
	"github.com/papapumpkin/assoc/internal/manifest"
	"github.com/papapumpkin/assoc/internal/ui"
)

var graphCmd = &cobra.Command{
	Use:   "graph <manifest.toml>",
	Short: "Show the evaluation order of a manifest's actions and their independent tracks",
	Long: `Builds the manifest and prints each network's actions in the order they are
evaluated. Actions that share no objects land on different tracks.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	e := &env{cfg: cfg, logger: newLogger(cfg), printer: ui.New()}

	s, _, err := e.build(args[0])
	if err != nil {
		return err
	}
	rows, err := orderRows(s)
	if err != nil {
		return err
	}
	ui.OrderTable(cmd.OutOrStdout(), rows)
	return nil
}

// orderRows lists the live actions of every network of s in evaluation
// order, numbering positions across networks.
func orderRows(s *manifest.Session) ([]ui.OrderRow, error) {
	name := func(a *assoc.Action) string {
		if n := s.ActionName(a.ID()); n != "" {
			return n
		}
		return a.String()
	}

	var rows []ui.OrderRow
	for _, n := range s.Graph().Networks() {
		order, err := n.Order()
		if err != nil {
			return nil, err
		}
		d, err := n.Graph()
		if err != nil {
			return nil, err
		}
		if _, err := d.ComputeTracks(); err != nil {
			return nil, err
		}
		byID := make(map[uint64]*assoc.Action, len(order))
		for _, a := range order {
			byID[uint64(a.ID())] = a
		}
		for _, a := range order {
			row := ui.OrderRow{
				Position: len(rows) + 1,
				Name:     name(a),
				Kind:     a.Kind(),
				Status:   manifest.StatusOf(a),
				Track:    d.Node(uint64(a.ID())).TrackID,
			}
			for _, dep := range d.DependsOn(uint64(a.ID())) {
				row.DependsOn = append(row.DependsOn, name(byID[dep]))
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
