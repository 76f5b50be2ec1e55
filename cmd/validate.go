package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/assoc/internal/manifest"
	"github.com/papapumpkin/assoc/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest.toml>...",
	Short: "Check manifests for missing fields, unknown references and shared sources",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	printer := ui.New()
	bad := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			printer.Error(err.Error())
			bad++
			continue
		}
		m, err := manifest.Decode(data)
		if err != nil {
			printer.Error(fmt.Sprintf("%s: %v", path, err))
			bad++
			continue
		}
		errs := manifest.Validate(m)
		printer.ValidateResult(path, m, errs)
		if len(errs) > 0 {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("validation failed for %d of %d manifest(s)", bad, len(args))
	}
	return nil
}
