package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	infraBQ "github.com/ecaldas/ans-expense-tracker/internal/infra/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/logger"
	"github.com/ecaldas/ans-expense-tracker/internal/notionsync"
)

func main() {
	_ = godotenv.Load()

	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (required)")
	notionDBID := flag.String("notion-db-id", os.Getenv("NOTION_DB_ID"), "Notion database ID (required)")
	project := flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID (required)")
	dataset := flag.String("dataset", os.Getenv("BIGQUERY_DATASET"), "BigQuery dataset ID")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	if *project == "" {
		log.Fatal().Msg("Error: --project is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("project", *project).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	// Initialize BigQuery store
	store, err := infraBQ.NewStore(ctx, infraBQ.Config{ProjectID: *project, DatasetID: *dataset})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery store")
	}
	defer store.Close()

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	// Sync per-operator expense summaries
	if err := notionsync.SyncAggregates(ctx, store, notionClient, *notionDBID, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Println("Sync completed successfully.")
}
