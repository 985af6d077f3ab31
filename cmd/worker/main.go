package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
	"github.com/ecaldas/ans-expense-tracker/internal/etl"
	"github.com/ecaldas/ans-expense-tracker/internal/gcsuploader"
	infraBQ "github.com/ecaldas/ans-expense-tracker/internal/infra/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/jobs"
	"github.com/ecaldas/ans-expense-tracker/internal/jobs/inmemory"
	"github.com/ecaldas/ans-expense-tracker/internal/logger"
)

func main() {
	_ = godotenv.Load()

	var (
		project = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID (or set GOOGLE_CLOUD_PROJECT env)")
		dataset = flag.String("dataset", os.Getenv("BIGQUERY_DATASET"), "BigQuery dataset ID (or set BIGQUERY_DATASET env)")
		prefix  = flag.String("prefix", etl.DefaultTargetPrefix, "account code prefix loaded from statement files")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *project == "" {
		log.Fatal().Msg("No GCP project configured - set -project or GOOGLE_CLOUD_PROJECT")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	store, err := infraBQ.NewStore(ctx, infraBQ.Config{ProjectID: *project, DatasetID: *dataset})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	pipeline := etl.NewPipeline(etl.Stores{
		Operators: store,
		Expenses:  store,
		LoadRuns:  store,
	}, etl.Options{TargetPrefix: *prefix}, log)

	storageSvc := gcsuploader.NewGCSStorageService()

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	// Create job handler that processes statement load jobs
	handler := func(ctx context.Context, job jobs.Job) error {
		loadJob, ok := job.(*jobs.LoadStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", loadJob.JobID).
			Str("gcs_uri", loadJob.GCSURI).
			Msg("Processing statement load job")

		data, err := storageSvc.FetchFromGCS(ctx, loadJob.GCSURI)
		if err != nil {
			log.Error().Err(err).Str("job_id", loadJob.JobID).Msg("Failed to fetch statement file")
			return err
		}

		rows, err := store.ListAllOperators(ctx)
		if err != nil {
			log.Error().Err(err).Str("job_id", loadJob.JobID).Msg("Failed to load registry snapshot")
			return err
		}

		registry := make([]domain.Operator, 0, len(rows))
		for _, row := range rows {
			registry = append(registry, domain.Operator{
				RegistryANS: row.RegistroANS,
				CNPJ:        row.CNPJ,
				RazaoSocial: row.RazaoSocial,
				Modalidade:  row.Modalidade,
				UF:          row.UF,
			})
		}

		if _, err := pipeline.ProcessStatementFile(ctx, data, loadJob.Filename, registry); err != nil {
			log.Error().
				Err(err).
				Str("job_id", loadJob.JobID).
				Str("filename", loadJob.Filename).
				Msg("Statement load failed")
			return err
		}

		log.Info().
			Str("job_id", loadJob.JobID).
			Str("filename", loadJob.Filename).
			Msg("Statement load completed")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
