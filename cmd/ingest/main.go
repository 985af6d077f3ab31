package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
	"github.com/ecaldas/ans-expense-tracker/internal/etl"
	"github.com/ecaldas/ans-expense-tracker/internal/gcsuploader"
	infraBQ "github.com/ecaldas/ans-expense-tracker/internal/infra/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/logger"
)

func main() {
	_ = godotenv.Load()

	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	registryPath := flag.String("registry", "", "registry CSV, local path or gs:// URI (required)")
	dataDir := flag.String("data-dir", "", "directory of quarterly statement CSVs, local path or gs:// prefix (required)")
	project := flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID; empty skips BigQuery persistence")
	dataset := flag.String("dataset", os.Getenv("BIGQUERY_DATASET"), "BigQuery dataset ID")
	bucket := flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for the export bundle; empty skips upload")
	outDir := flag.String("out", ".", "directory for the export files")
	quarters := flag.Int("quarters", 3, "number of reconciled quarterly files to consolidate")
	prefix := flag.String("prefix", etl.DefaultTargetPrefix, "account code prefix to load")
	flag.Parse()

	if *registryPath == "" || *dataDir == "" {
		log.Fatal().Msg("Error: -registry and -data-dir are required")
	}

	// Create context with timeout so the batch doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	var stores etl.Stores
	if *project != "" {
		store, err := infraBQ.NewStore(ctx, infraBQ.Config{ProjectID: *project, DatasetID: *dataset})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery store")
		}
		defer store.Close()
		stores = etl.Stores{Operators: store, Expenses: store, LoadRuns: store}
	} else {
		log.Warn().Msg("No GCP project configured - running without persistence")
		stores = etl.Stores{
			Operators: noopOperators{},
			Expenses:  noopExpenses{},
			LoadRuns:  noopLoadRuns{},
		}
	}

	pipeline := etl.NewPipeline(stores, etl.Options{TargetPrefix: *prefix}, log)

	// Load the registry snapshot first; statements reconcile against it.
	registryData, err := readSource(ctx, *registryPath)
	if err != nil {
		log.Fatal().Err(err).Str("registry", *registryPath).Msg("Failed to read registry file")
	}

	registry, err := pipeline.LoadRegistrySnapshot(ctx, registryData, filepath.Base(*registryPath))
	if err != nil {
		log.Fatal().Err(err).Msg("Registry load failed")
	}

	// Walk the data directory in name order and keep loading until enough
	// quarters reconciled. Files that fail to parse or reconcile are logged
	// and the batch moves on.
	files, err := listStatementFiles(ctx, *dataDir)
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", *dataDir).Msg("Failed to read data directory")
	}

	var loaded [][]domain.ExpenseLine
	for _, file := range files {
		if len(loaded) >= *quarters {
			break
		}

		data, err := readSource(ctx, file)
		if err != nil {
			log.Error().Err(err).Str("path", file).Msg("Failed to read statement file")
			continue
		}

		name := filepath.Base(file)
		res, err := pipeline.ProcessStatementFile(ctx, data, name, registry)
		if err != nil {
			log.Error().Err(err).Str("filename", name).Msg("Statement file failed")
			continue
		}
		if res.Skipped {
			continue
		}

		loaded = append(loaded, res.Lines)
	}

	if len(loaded) < *quarters {
		log.Fatal().
			Int("loaded", len(loaded)).
			Int("required", *quarters).
			Msg("Not enough quarterly files reconciled")
	}

	// Consolidate across quarters and write the export bundle.
	result := etl.Consolidate(loaded, etl.KeepLargestValue)

	log.Info().
		Int("lines", len(result.Export)).
		Int("operators", len(result.Aggregates)).
		Msg("Consolidation completed")

	var consolidated bytes.Buffer
	if err := etl.WriteConsolidatedCSV(&consolidated, result.Export); err != nil {
		log.Fatal().Err(err).Msg("Failed to write consolidated CSV")
	}

	bundle, err := etl.ZipBundle(etl.ConsolidatedCSVName, consolidated.Bytes())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build zip bundle")
	}

	zipName := strings.TrimSuffix(etl.ConsolidatedCSVName, ".csv") + ".zip"
	zipPath := filepath.Join(*outDir, zipName)
	if err := os.WriteFile(zipPath, bundle, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", zipPath).Msg("Failed to write zip bundle")
	}

	var aggregates bytes.Buffer
	if err := etl.WriteAggregateCSV(&aggregates, result.Aggregates); err != nil {
		log.Fatal().Err(err).Msg("Failed to write aggregate CSV")
	}

	aggPath := filepath.Join(*outDir, etl.AggregateCSVName)
	if err := os.WriteFile(aggPath, aggregates.Bytes(), 0o644); err != nil {
		log.Fatal().Err(err).Str("path", aggPath).Msg("Failed to write aggregate CSV")
	}

	if *bucket != "" {
		if err := gcsuploader.UploadBytes(ctx, *bucket, "exports/"+zipName, bundle, "application/zip"); err != nil {
			log.Fatal().Err(err).Msg("Failed to upload zip bundle")
		}
		if err := gcsuploader.UploadBytes(ctx, *bucket, "exports/"+etl.AggregateCSVName, aggregates.Bytes(), "text/csv"); err != nil {
			log.Fatal().Err(err).Msg("Failed to upload aggregate CSV")
		}
		log.Info().Str("bucket", *bucket).Msg("Export bundle uploaded")
	}

	fmt.Printf("Ingestion completed: %s, %s\n", zipPath, aggPath)
}

// readSource reads a local file or a gs:// object.
func readSource(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "gs://") {
		return gcsuploader.FetchFromGCS(ctx, path)
	}
	return os.ReadFile(path)
}

// listStatementFiles returns the CSV files under a local directory or a
// gs:// prefix, sorted by name. Returned entries are readable by readSource.
func listStatementFiles(ctx context.Context, dir string) ([]string, error) {
	if strings.HasPrefix(dir, "gs://") {
		trimmed := strings.TrimPrefix(dir, "gs://")
		parts := strings.SplitN(trimmed, "/", 2)
		bucket := parts[0]
		prefix := ""
		if len(parts) == 2 {
			prefix = parts[1]
		}

		objects, err := gcsuploader.ListObjects(ctx, bucket, prefix)
		if err != nil {
			return nil, err
		}

		var files []string
		for _, obj := range objects {
			if !strings.HasSuffix(strings.ToLower(obj), ".csv") {
				continue
			}
			files = append(files, "gs://"+bucket+"/"+obj)
		}
		return files, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	return files, nil
}
