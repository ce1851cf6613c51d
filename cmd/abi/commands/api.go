package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibubble/analytics/backend/internal/api"
	"github.com/aibubble/analytics/backend/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server with the daily scheduler running
in-process.

Endpoints:
  GET  /health                        - Health check
  GET  /api/metrics/bubble-index      - Current index score
  GET  /api/metrics/all               - All ten metric readings
  GET  /api/metrics/magnificent7      - Per-company concentration stats
  GET  /api/metrics/history           - Persisted daily scores
  GET  /api/metrics/sentiment         - News sentiment and headlines
  POST /api/newsletter/subscribe      - Start a subscription
  GET  /api/newsletter/confirm        - Confirm via emailed token
  POST /api/newsletter/unsubscribe    - End a subscription
  POST /api/cron/daily-newsletter     - Run the daily pipeline (cron secret)
  POST /api/cron/test-newsletter      - Run the pipeline manually
  GET  /api/cron/status               - Job schedules and run history

Example:
  go run ./cmd/abi api
  go run ./cmd/abi api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	// A nil *newsapi.Client must stay a nil interface for the handler's
	// configured check.
	var news handlers.NewsSource
	if app.news != nil {
		news = app.news
	}

	metricsHandler := handlers.NewMetricsHandler(app.aggregator, app.snapshots, news, app.cache, app.cfg, app.log)
	newsletterHandler := handlers.NewNewsletterHandler(app.service, app.cfg, app.log)
	cronHandler := handlers.NewCronHandler(app.scheduler, app.dailyJob, app.cfg, app.log)
	healthHandler := handlers.NewHealthHandler(app.db, app.log)

	router := api.NewRouter(metricsHandler, newsletterHandler, cronHandler, healthHandler, app.log)
	server := api.New(app.cfg, app.log, router)

	app.scheduler.Start()
	defer app.scheduler.Stop()

	go func() {
		if err := server.Start(); err != nil {
			app.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	app.log.Info("API server started successfully")
	fmt.Printf("Server running on http://localhost:%s\n", app.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.log.Info("Server stopped")
	return nil
}
