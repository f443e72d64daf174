// Package cli provides the fireside command-line interface.
package cli

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "fireside",
	Short: "fireside - run Firecracker microVMs from declarative spec files",
	Long: `fireside wraps the fireside SDK in a small CLI: it loads a YAML
microVM spec, launches the firecracker process, applies the configuration
over the API socket and boots the guest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dryRunCmd)
	rootCmd.AddCommand(versionCmd)
}
