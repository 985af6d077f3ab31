package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
)

const (
	operatorsTable = "operadoras_ativas"
	expensesTable  = "despesas_consolidadas"
	loadRunsTable  = "load_runs"

	defaultDatasetID = "ans"
)

// Config identifies the BigQuery project and dataset everything in this
// package operates on. It is constructed once per process and passed down;
// there is no package-level project or dataset state.
type Config struct {
	ProjectID string
	DatasetID string
}

func (c Config) withDefaults() Config {
	if c.DatasetID == "" {
		c.DatasetID = defaultDatasetID
	}
	return c
}

// tableRef returns the fully qualified, backtick-quoted table name for use
// in query text. Identifiers cannot be query parameters.
func (c Config) tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", c.ProjectID, c.DatasetID, table)
}

// Store is the BigQuery-backed implementation of the repository interfaces.
// It holds one shared client so units of work do not each open a connection;
// construct one per process and Close it on shutdown.
type Store struct {
	client *bigquery.Client
	cfg    Config
}

var (
	_ bq.OperatorRepository  = (*Store)(nil)
	_ bq.ExpenseRepository   = (*Store)(nil)
	_ bq.LoadRunRepository   = (*Store)(nil)
	_ bq.AnalyticsRepository = (*Store)(nil)
)

// NewStore opens a BigQuery client for the configured project.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("NewStore: project ID is required")
	}
	cfg = cfg.withDefaults()

	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return &Store{client: client, cfg: cfg}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ReplaceOperators(ctx context.Context, rows []*bq.OperatorRow) error {
	return ReplaceOperatorsWithClient(ctx, s.client, s.cfg, rows)
}

func (s *Store) ListOperators(ctx context.Context, page, limit int, search string) ([]*bq.OperatorRow, int64, error) {
	return ListOperatorsWithClient(ctx, s.client, s.cfg, page, limit, search)
}

func (s *Store) ListAllOperators(ctx context.Context) ([]*bq.OperatorRow, error) {
	return ListAllOperatorsWithClient(ctx, s.client, s.cfg)
}

func (s *Store) FindOperatorByCNPJ(ctx context.Context, cnpj string) (*bq.OperatorRow, error) {
	return FindOperatorByCNPJWithClient(ctx, s.client, s.cfg, cnpj)
}

func (s *Store) AppendExpenses(ctx context.Context, rows []*bq.ExpenseRow) error {
	return AppendExpensesWithClient(ctx, s.client, s.cfg, rows)
}

func (s *Store) ExpenseHistoryByCNPJ(ctx context.Context, cnpj string) ([]*bq.ExpenseHistoryRow, error) {
	return ExpenseHistoryByCNPJWithClient(ctx, s.client, s.cfg, cnpj)
}

func (s *Store) StartLoadRun(ctx context.Context, filename string) (string, error) {
	return StartLoadRunWithClient(ctx, s.client, s.cfg, filename)
}

func (s *Store) MarkLoadRunSucceeded(ctx context.Context, loadRunID string, rowsLoaded int) error {
	return MarkLoadRunSucceededWithClient(ctx, s.client, s.cfg, loadRunID, rowsLoaded)
}

func (s *Store) MarkLoadRunSkipped(ctx context.Context, loadRunID string, reason string) error {
	return MarkLoadRunSkippedWithClient(ctx, s.client, s.cfg, loadRunID, reason)
}

func (s *Store) MarkLoadRunFailed(ctx context.Context, loadRunID string, loadErr error) {
	MarkLoadRunFailedWithClient(ctx, s.client, s.cfg, loadRunID, loadErr)
}

func (s *Store) TopGrowth(ctx context.Context) ([]*bq.GrowthRow, error) {
	return TopGrowthWithClient(ctx, s.client, s.cfg)
}

func (s *Store) TopRegions(ctx context.Context) ([]*bq.RegionRow, error) {
	return TopRegionsWithClient(ctx, s.client, s.cfg)
}

func (s *Store) CountConsistentlyAboveAverage(ctx context.Context) (int64, error) {
	return CountConsistentlyAboveAverageWithClient(ctx, s.client, s.cfg)
}

func (s *Store) AggregatesByOperator(ctx context.Context) ([]*bq.AggregateQueryRow, error) {
	return AggregatesByOperatorWithClient(ctx, s.client, s.cfg)
}

// runStatement executes one DML statement and waits for the job to finish.
func runStatement(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
