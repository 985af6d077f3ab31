package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ecaldas/ans-expense-tracker/internal/api/handlers"
	"github.com/ecaldas/ans-expense-tracker/internal/api/middleware"
	"github.com/ecaldas/ans-expense-tracker/internal/domain"
	"github.com/ecaldas/ans-expense-tracker/internal/etl"
	"github.com/ecaldas/ans-expense-tracker/internal/gcs"
	"github.com/ecaldas/ans-expense-tracker/internal/gcsuploader"
	infraBQ "github.com/ecaldas/ans-expense-tracker/internal/infra/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/jobs"
	"github.com/ecaldas/ans-expense-tracker/internal/jobs/inmemory"
	"github.com/ecaldas/ans-expense-tracker/internal/logger"
)

func main() {
	_ = godotenv.Load()

	// Parse command-line flags
	var (
		port    = flag.String("port", "8080", "HTTP server port")
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

	// Initialize repositories
	ctx := context.Background()

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

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	// Create job handler for statement load jobs
	jobHandler := func(ctx context.Context, job jobs.Job) error {
		loadJob, ok := job.(*jobs.LoadStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", loadJob.JobID).
			Str("gcs_uri", loadJob.GCSURI).
			Msg("Processing statement load job")

		if err := runLoadJob(ctx, store, pipeline, storageSvc, loadJob); err != nil {
			log.Error().
				Err(err).
				Str("job_id", loadJob.JobID).
				Str("gcs_uri", loadJob.GCSURI).
				Msg("Statement load failed")
			return err
		}

		log.Info().
			Str("job_id", loadJob.JobID).
			Str("filename", loadJob.Filename).
			Msg("Statement load completed")

		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting load worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Load worker stopped with error")
		}
	}()

	// Initialize handlers
	operatorsHandler := handlers.NewOperatorsHandler(store, store, log)
	statsHandler := handlers.NewStatsHandler(store, log)
	statementsHandler := handlers.NewStatementsHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Operators endpoints
	mux.HandleFunc("/api/operators", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			operatorsHandler.ListOperators(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/operators/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/operators/")
		switch {
		case rest == "":
			middleware.WriteError(w, http.StatusBadRequest, "CNPJ is required")
		case strings.HasSuffix(rest, "/expenses"):
			cnpj := strings.TrimSuffix(rest, "/expenses")
			operatorsHandler.GetExpenseHistory(w, r, cnpj)
		case strings.Contains(rest, "/"):
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		default:
			operatorsHandler.GetOperator(w, r, rest)
		}
	})

	// Stats endpoint
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.GetStats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Statement load endpoint
	mux.HandleFunc("/api/statements/load", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.EnqueueLoad(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// runLoadJob fetches the statement file, reconciles it against the persisted
// registry snapshot and appends the result to the expense table.
func runLoadJob(ctx context.Context, store *infraBQ.Store, pipeline *etl.Pipeline, storage gcs.StorageService, job *jobs.LoadStatementJob) error {
	data, err := storage.FetchFromGCS(ctx, job.GCSURI)
	if err != nil {
		return fmt.Errorf("runLoadJob: %w", err)
	}

	rows, err := store.ListAllOperators(ctx)
	if err != nil {
		return fmt.Errorf("runLoadJob: loading registry snapshot: %w", err)
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

	if _, err := pipeline.ProcessStatementFile(ctx, data, job.Filename, registry); err != nil {
		return fmt.Errorf("runLoadJob: %w", err)
	}

	return nil
}
