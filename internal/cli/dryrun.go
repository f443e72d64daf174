package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxdollinger/fireside/pkg/specfile"
)

var dryRunCmd = &cobra.Command{
	Use:   "dry-run <spec.yaml>",
	Short: "Show what running a spec would do",
	Long: `Loads the spec and prints the binary, argv and pending API
configuration as JSON without spawning anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		machine, err := specfile.Load(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(machine.DryRun(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
