package main

import (
	"context"

	"github.com/google/uuid"

	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
)

// No-op repositories back the persistence-free mode: the batch still runs
// the full normalization and consolidation but writes nothing to BigQuery.

type noopOperators struct{}

func (noopOperators) ReplaceOperators(ctx context.Context, rows []*bq.OperatorRow) error {
	return nil
}

func (noopOperators) ListOperators(ctx context.Context, page, limit int, search string) ([]*bq.OperatorRow, int64, error) {
	return nil, 0, nil
}

func (noopOperators) ListAllOperators(ctx context.Context) ([]*bq.OperatorRow, error) {
	return nil, nil
}

func (noopOperators) FindOperatorByCNPJ(ctx context.Context, cnpj string) (*bq.OperatorRow, error) {
	return nil, nil
}

type noopExpenses struct{}

func (noopExpenses) AppendExpenses(ctx context.Context, rows []*bq.ExpenseRow) error {
	return nil
}

func (noopExpenses) ExpenseHistoryByCNPJ(ctx context.Context, cnpj string) ([]*bq.ExpenseHistoryRow, error) {
	return nil, nil
}

type noopLoadRuns struct{}

func (noopLoadRuns) StartLoadRun(ctx context.Context, filename string) (string, error) {
	return uuid.NewString(), nil
}

func (noopLoadRuns) MarkLoadRunSucceeded(ctx context.Context, loadRunID string, rowsLoaded int) error {
	return nil
}

func (noopLoadRuns) MarkLoadRunSkipped(ctx context.Context, loadRunID string, reason string) error {
	return nil
}

func (noopLoadRuns) MarkLoadRunFailed(ctx context.Context, loadRunID string, loadErr error) {}

var (
	_ bq.OperatorRepository = noopOperators{}
	_ bq.ExpenseRepository  = noopExpenses{}
	_ bq.LoadRunRepository  = noopLoadRuns{}
)
