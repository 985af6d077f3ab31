package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
)

// insertBatchSize keeps streaming-insert requests under the API payload limit.
const insertBatchSize = 500

// ReplaceOperatorsWithClient replaces the operator snapshot wholesale:
// truncate, then stream the new rows in batches. The registry release is a
// full snapshot, so partial updates would leave defunct operators behind.
func ReplaceOperatorsWithClient(ctx context.Context, client *bigquery.Client, cfg Config, rows []*bq.OperatorRow) error {
	q := client.Query(fmt.Sprintf(`TRUNCATE TABLE %s`, cfg.tableRef(operatorsTable)))
	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("ReplaceOperators: truncating snapshot: %w", err)
	}

	table := client.DatasetInProject(cfg.ProjectID, cfg.DatasetID).Table(operatorsTable)
	inserter := table.Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("ReplaceOperators: inserting rows %d-%d: %w", start, end, err)
		}
	}

	return nil
}

// ListOperatorsWithClient retrieves one page of the snapshot ordered by
// legal name. A non-empty search filters by case-insensitive substring on
// legal name or CNPJ. Returns the page and the total count for the filter.
func ListOperatorsWithClient(ctx context.Context, client *bigquery.Client, cfg Config, page, limit int, search string) ([]*bq.OperatorRow, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	filter := `(@search = ""
		OR UPPER(razao_social) LIKE CONCAT('%', UPPER(@search), '%')
		OR cnpj LIKE CONCAT('%', @search, '%'))`
	params := []bigquery.QueryParameter{
		{Name: "search", Value: search},
	}

	countQ := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS total
		FROM %s
		WHERE %s
	`, cfg.tableRef(operatorsTable), filter))
	countQ.Parameters = params

	it, err := countQ.Read(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("ListOperators: count query read: %w", err)
	}
	var count struct {
		Total int64 `bigquery:"total"`
	}
	if err := it.Next(&count); err != nil {
		return nil, 0, fmt.Errorf("ListOperators: count iter next: %w", err)
	}

	pageQ := client.Query(fmt.Sprintf(`
		SELECT registro_ans, cnpj, razao_social, modalidade, uf, loaded_ts
		FROM %s
		WHERE %s
		ORDER BY razao_social
		LIMIT @limit OFFSET @offset
	`, cfg.tableRef(operatorsTable), filter))
	pageQ.Parameters = append(params,
		bigquery.QueryParameter{Name: "limit", Value: int64(limit)},
		bigquery.QueryParameter{Name: "offset", Value: int64((page - 1) * limit)},
	)

	rows, err := readOperatorRows(ctx, pageQ)
	if err != nil {
		return nil, 0, fmt.Errorf("ListOperators: %w", err)
	}
	return rows, count.Total, nil
}

// ListAllOperatorsWithClient retrieves the full snapshot, used to build the
// in-memory reconciliation index for statement loads.
func ListAllOperatorsWithClient(ctx context.Context, client *bigquery.Client, cfg Config) ([]*bq.OperatorRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT registro_ans, cnpj, razao_social, modalidade, uf, loaded_ts
		FROM %s
		ORDER BY registro_ans
	`, cfg.tableRef(operatorsTable)))

	rows, err := readOperatorRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAllOperators: %w", err)
	}
	return rows, nil
}

// FindOperatorByCNPJWithClient retrieves one operator by exact CNPJ.
// Returns (nil, nil) when no operator matches.
func FindOperatorByCNPJWithClient(ctx context.Context, client *bigquery.Client, cfg Config, cnpj string) (*bq.OperatorRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT registro_ans, cnpj, razao_social, modalidade, uf, loaded_ts
		FROM %s
		WHERE cnpj = @cnpj
		LIMIT 1
	`, cfg.tableRef(operatorsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "cnpj", Value: cnpj},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindOperatorByCNPJ: query read: %w", err)
	}

	var row bq.OperatorRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindOperatorByCNPJ: iter next: %w", err)
	}
	return &row, nil
}

func readOperatorRows(ctx context.Context, q *bigquery.Query) ([]*bq.OperatorRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []*bq.OperatorRow
	for {
		var r bq.OperatorRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
