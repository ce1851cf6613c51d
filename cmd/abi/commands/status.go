package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibubble/analytics/backend/internal/snapshot"
)

// statusCmd prints the latest persisted snapshot
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest persisted index snapshot",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	daily, err := app.snapshots.GetLatest(ctx)
	if err == snapshot.ErrNotFound {
		fmt.Println("No snapshots persisted yet. Run: go run ./cmd/abi newsletter run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	fmt.Printf("Snapshot date: %s\n", daily.Date.Format("2006-01-02"))
	fmt.Printf("Score:         %.2f/100\n", daily.Score)
	fmt.Printf("Risk:          %s (%s)\n", daily.RiskLevel, daily.RiskColor)
	fmt.Printf("Trend:         %s %.2f\n", daily.TrendDirection, daily.TrendChange)
	fmt.Printf("Metrics:       %d recorded\n", len(daily.Metrics))
	return nil
}
