package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibubble/analytics/backend/internal/index"
)

// indexCmd calculates and prints the index without touching the database
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Calculate and print the current bubble index",
	Long: `Fetches all ten metrics, calculates the index, and prints the
score with its full breakdown. Nothing is persisted and no email is
sent.

Example:
  go run ./cmd/abi index`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snap, err := app.aggregator.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch metrics: %w", err)
	}

	result := index.Calculate(snap)

	fmt.Printf("\nAI Bubble Index: %.2f/100\n", result.Score)
	fmt.Printf("Risk: %s (%s)\n", result.RiskLevel, result.RiskColor)
	fmt.Printf("%s\n\n", result.RiskDescription)

	fmt.Println("Breakdown:")
	for _, key := range index.Keys {
		c, ok := result.Breakdown[key]
		if !ok {
			fmt.Printf("  %-28s excluded\n", index.DisplayName(key))
			continue
		}
		fmt.Printf("  %-28s %6.1f  (weight %2.0f%%, contributes %5.2f)\n",
			index.DisplayName(key), c.Value, c.Weight, c.Contribution)
	}

	if failed := snap.FailedKeys(); len(failed) > 0 {
		fmt.Printf("\nFetch failures: %v\n", failed)
	}
	return nil
}
