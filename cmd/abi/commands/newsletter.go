package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibubble/analytics/backend/internal/newsletter"
)

// newsletterCmd groups newsletter operations
var newsletterCmd = &cobra.Command{
	Use:   "newsletter",
	Short: "Newsletter operations",
}

// newsletterRunCmd runs the full daily pipeline once
var newsletterRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily pipeline once",
	Long: `Fetches metrics, calculates the index, persists the snapshot,
and sends the briefing to every active daily subscriber.

Example:
  go run ./cmd/abi newsletter run`,
	RunE: runNewsletterPipeline,
}

// newsletterSubscribersCmd lists active subscribers
var newsletterSubscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "List active daily subscribers",
	RunE:  runNewsletterSubscribers,
}

func init() {
	rootCmd.AddCommand(newsletterCmd)
	newsletterCmd.AddCommand(newsletterRunCmd)
	newsletterCmd.AddCommand(newsletterSubscribersCmd)
}

func runNewsletterPipeline(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	start := time.Now()
	if err := app.dailyJob.Run(context.Background()); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	stats := app.dailyJob.LastStats()
	fmt.Printf("Pipeline completed in %s\n", time.Since(start).Round(time.Millisecond))
	if stats != nil {
		fmt.Printf("Score: %.2f (%s)\n", stats.Score, stats.RiskLevel)
		fmt.Printf("Subscribers: %d, sent: %d, failed: %d, batches: %d\n",
			stats.Subscribers, stats.Sent, stats.Failed, stats.Batches)
	}
	return nil
}

func runNewsletterSubscribers(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subs, err := app.subscribers.ListActive(ctx, newsletter.FrequencyDaily)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	fmt.Printf("%d active daily subscribers\n", len(subs))
	for _, sub := range subs {
		confirmed := ""
		if sub.ConfirmedAt != nil {
			confirmed = sub.ConfirmedAt.Format("2006-01-02")
		}
		fmt.Printf("  %-40s confirmed %s\n", sub.Email, confirmed)
	}
	return nil
}
