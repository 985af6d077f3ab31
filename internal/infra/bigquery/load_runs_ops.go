package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/ecaldas/ans-expense-tracker/internal/logger"
)

// StartLoadRunWithClient inserts a new load run with status=RUNNING and
// returns the generated load_run_id.
func StartLoadRunWithClient(ctx context.Context, client *bigquery.Client, cfg Config, filename string) (string, error) {
	loadRunID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			load_run_id,
			filename,
			started_ts,
			status
		)
		VALUES (
			@load_run_id,
			@filename,
			@started_ts,
			@status
		)
	`, cfg.tableRef(loadRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "load_run_id", Value: loadRunID},
		{Name: "filename", Value: filename},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: "RUNNING"},
	}

	if err := runStatement(ctx, q); err != nil {
		return "", fmt.Errorf("StartLoadRun: %w", err)
	}
	return loadRunID, nil
}

// MarkLoadRunSucceededWithClient sets status=SUCCESS, finished_ts and the
// loaded row count, clearing error_message.
func MarkLoadRunSucceededWithClient(ctx context.Context, client *bigquery.Client, cfg Config, loadRunID string, rowsLoaded int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    rows_loaded = @rows_loaded,
		    error_message = ""
		WHERE load_run_id = @load_run_id
	`, cfg.tableRef(loadRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "rows_loaded", Value: int64(rowsLoaded)},
		{Name: "load_run_id", Value: loadRunID},
	}

	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("MarkLoadRunSucceeded: %w", err)
	}
	return nil
}

// MarkLoadRunSkippedWithClient sets status=SKIPPED, finished_ts and the
// reason the file produced no lines.
func MarkLoadRunSkippedWithClient(ctx context.Context, client *bigquery.Client, cfg Config, loadRunID string, reason string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    skip_reason = @skip_reason
		WHERE load_run_id = @load_run_id
	`, cfg.tableRef(loadRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SKIPPED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "skip_reason", Value: reason},
		{Name: "load_run_id", Value: loadRunID},
	}

	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("MarkLoadRunSkipped: %w", err)
	}
	return nil
}

// MarkLoadRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Errors are logged, not returned, so the original ETL error
// is never masked by the bookkeeping update.
func MarkLoadRunFailedWithClient(ctx context.Context, client *bigquery.Client, cfg Config, loadRunID string, loadErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if loadErr != nil {
		errMsg = loadErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE load_run_id = @load_run_id
	`, cfg.tableRef(loadRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "load_run_id", Value: loadRunID},
	}

	if err := runStatement(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("load_run_id", loadRunID).
			Msg("MarkLoadRunFailed: update failed")
	}
}
