package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "abi",
	Short: "AI Bubble Index - market froth analytics and newsletter",
	Long: `AI Bubble Index CLI

Aggregates ten market metrics into a 0-100 bubble score, persists a
daily snapshot, and sends the briefing to newsletter subscribers.

Usage:
  go run ./cmd/abi [command]

Examples:
  go run ./cmd/abi api
  go run ./cmd/abi index
  go run ./cmd/abi newsletter run`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
