package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
)

// AppendExpensesWithClient appends a batch of expense lines. The table is
// append-only; re-runs of the same file add rows with a new load_run_id and
// the keep-largest consolidation absorbs the overlap.
func AppendExpensesWithClient(ctx context.Context, client *bigquery.Client, cfg Config, rows []*bq.ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(cfg.ProjectID, cfg.DatasetID).Table(expensesTable)
	inserter := table.Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("AppendExpenses: inserting rows %d-%d: %w", start, end, err)
		}
	}

	return nil
}

// ExpenseHistoryByCNPJWithClient retrieves an operator's expense lines,
// most recent period first.
func ExpenseHistoryByCNPJWithClient(ctx context.Context, client *bigquery.Client, cfg Config, cnpj string) ([]*bq.ExpenseHistoryRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			d.ano,
			d.trimestre,
			d.vl_saldo_final,
			d.cd_conta_contabil
		FROM %s d
		INNER JOIN %s o
		  ON d.reg_ans = o.registro_ans
		WHERE o.cnpj = @cnpj
		ORDER BY d.ano DESC, d.trimestre DESC
	`, cfg.tableRef(expensesTable), cfg.tableRef(operatorsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "cnpj", Value: cnpj},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExpenseHistoryByCNPJ: query read: %w", err)
	}

	var rows []*bq.ExpenseHistoryRow
	for {
		var r bq.ExpenseHistoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ExpenseHistoryByCNPJ: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
