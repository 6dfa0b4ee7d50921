// Package cli implements the resonance command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resonance",
	Short: "Emotional memory engine for AI companions",
	Long: "Resonance stores feelings with strength, charge and lineage, derives a " +
		"four-letter trait from calibrated emotions, and samples past feelings for reflection.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(feelCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(traitCmd)
	rootCmd.AddCommand(sparkCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(entityCmd)
}
