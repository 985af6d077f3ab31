package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/domain"
)

// Stores groups the repositories the pipeline writes to. Everything is
// injected; the pipeline holds no connection or dataset state of its own.
type Stores struct {
	Operators bq.OperatorRepository
	Expenses  bq.ExpenseRepository
	LoadRuns  bq.LoadRunRepository
}

// Pipeline runs raw dataset files through normalization, reconciliation and
// persistence, recording a load run per statement file.
type Pipeline struct {
	stores Stores
	opts   Options
	log    zerolog.Logger
}

func NewPipeline(stores Stores, opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{stores: stores, opts: opts, log: log}
}

// LoadRegistrySnapshot parses the registry file and replaces the persisted
// snapshot wholesale. Returns the parsed operators so callers can reconcile
// statements against them without a round trip.
func (p *Pipeline) LoadRegistrySnapshot(ctx context.Context, data []byte, filename string) ([]domain.Operator, error) {
	operators, err := LoadRegistry(data, filename)
	if err != nil {
		return nil, fmt.Errorf("LoadRegistrySnapshot: %w", err)
	}

	loaded := time.Now()
	rows := make([]*bq.OperatorRow, 0, len(operators))
	for _, op := range operators {
		rows = append(rows, &bq.OperatorRow{
			RegistroANS: op.RegistryANS,
			CNPJ:        op.CNPJ,
			RazaoSocial: op.RazaoSocial,
			Modalidade:  op.Modalidade,
			UF:          op.UF,
			LoadedTS:    loaded,
		})
	}

	if err := p.stores.Operators.ReplaceOperators(ctx, rows); err != nil {
		return nil, fmt.Errorf("LoadRegistrySnapshot: replacing snapshot: %w", err)
	}

	p.log.Info().
		Str("filename", filename).
		Int("operators", len(operators)).
		Msg("registry snapshot replaced")
	return operators, nil
}

// ProcessStatementFile runs one statement file through normalization and
// reconciliation, records a load run, and appends the surviving lines to the
// expense store. Skips are recorded as SKIPPED runs and return a skipped
// result with a nil error. On a persistence failure nothing of the file is
// kept in memory as loaded; the run is marked FAILED and the error returned.
func (p *Pipeline) ProcessStatementFile(ctx context.Context, data []byte, filename string, registry []domain.Operator) (*StatementResult, error) {
	runID, err := p.stores.LoadRuns.StartLoadRun(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("ProcessStatementFile: starting load run: %w", err)
	}

	res, err := NormalizeStatement(data, filename, registry, p.opts)
	if err != nil {
		p.stores.LoadRuns.MarkLoadRunFailed(ctx, runID, err)
		return nil, fmt.Errorf("ProcessStatementFile: %w", err)
	}

	if res.Skipped {
		if err := p.stores.LoadRuns.MarkLoadRunSkipped(ctx, runID, string(res.SkipReason)); err != nil {
			p.log.Warn().Err(err).Str("load_run_id", runID).Msg("marking load run skipped failed")
		}
		p.log.Info().
			Str("filename", filename).
			Str("reason", string(res.SkipReason)).
			Msg("statement file skipped")
		return res, nil
	}

	created := time.Now()
	rows := make([]*bq.ExpenseRow, 0, len(res.Lines))
	for _, l := range res.Lines {
		rows = append(rows, &bq.ExpenseRow{
			ExpenseID:       uuid.NewString(),
			RegANS:          l.RegistryANS,
			CDContaContabil: l.AccountCode,
			VLSaldoFinal:    l.Amount.Rat(),
			Ano:             int64(l.Year),
			Trimestre:       int64(l.Quarter),
			LoadRunID:       runID,
			CreatedTS:       created,
		})
	}

	if err := p.stores.Expenses.AppendExpenses(ctx, rows); err != nil {
		p.stores.LoadRuns.MarkLoadRunFailed(ctx, runID, err)
		return nil, fmt.Errorf("ProcessStatementFile: appending expenses: %w", err)
	}
	if err := p.stores.LoadRuns.MarkLoadRunSucceeded(ctx, runID, len(rows)); err != nil {
		p.log.Warn().Err(err).Str("load_run_id", runID).Msg("marking load run succeeded failed")
	}

	p.log.Info().
		Str("filename", filename).
		Str("load_run_id", runID).
		Int("prefix_matched", res.PrefixMatched).
		Int("cleaned", res.Cleaned).
		Int("joined", res.Joined).
		Int("deduped", res.Deduped).
		Int("validated", res.Validated).
		Msg("statement file loaded")
	return res, nil
}
