package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
)

// Periods are compared as ano*10+trimestre so "earliest" and "latest" order
// correctly across year boundaries.

// TopGrowthWithClient retrieves the five operators with the largest
// percentage expense growth between the earliest and the latest persisted
// period. Operators missing either endpoint, or with a non-positive starting
// total, are excluded rather than reported with an undefined growth.
func TopGrowthWithClient(ctx context.Context, client *bigquery.Client, cfg Config) ([]*bq.GrowthRow, error) {
	q := client.Query(fmt.Sprintf(`
		WITH periodos AS (
			SELECT
				MIN(ano * 10 + trimestre) AS primeiro,
				MAX(ano * 10 + trimestre) AS ultimo
			FROM %[1]s
		),
		inicio AS (
			SELECT d.reg_ans, SUM(d.vl_saldo_final) AS total_inicial
			FROM %[1]s d, periodos p
			WHERE d.ano * 10 + d.trimestre = p.primeiro
			GROUP BY d.reg_ans
			HAVING SUM(d.vl_saldo_final) > 0
		),
		fim AS (
			SELECT d.reg_ans, SUM(d.vl_saldo_final) AS total_final
			FROM %[1]s d, periodos p
			WHERE d.ano * 10 + d.trimestre = p.ultimo
			GROUP BY d.reg_ans
		)
		SELECT
			o.registro_ans,
			o.razao_social,
			CAST(i.total_inicial AS FLOAT64) AS total_inicial,
			CAST(f.total_final AS FLOAT64) AS total_final,
			ROUND(CAST((f.total_final - i.total_inicial) / i.total_inicial AS FLOAT64) * 100, 2) AS crescimento_percentual
		FROM inicio i
		INNER JOIN fim f ON i.reg_ans = f.reg_ans
		INNER JOIN %[2]s o ON i.reg_ans = o.registro_ans
		ORDER BY crescimento_percentual DESC
		LIMIT 5
	`, cfg.tableRef(expensesTable), cfg.tableRef(operatorsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("TopGrowth: query read: %w", err)
	}

	var rows []*bq.GrowthRow
	for {
		var r bq.GrowthRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("TopGrowth: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// TopRegionsWithClient retrieves the five UFs with the largest total
// expenses, with the operator count and per-operator average per UF.
func TopRegionsWithClient(ctx context.Context, client *bigquery.Client, cfg Config) ([]*bq.RegionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			o.uf,
			CAST(SUM(d.vl_saldo_final) AS FLOAT64) AS despesa_total,
			COUNT(DISTINCT d.reg_ans) AS qtd_operadoras,
			ROUND(CAST(SUM(d.vl_saldo_final) AS FLOAT64) / COUNT(DISTINCT d.reg_ans), 2) AS media_por_operadora
		FROM %s d
		INNER JOIN %s o ON d.reg_ans = o.registro_ans
		GROUP BY o.uf
		ORDER BY despesa_total DESC
		LIMIT 5
	`, cfg.tableRef(expensesTable), cfg.tableRef(operatorsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("TopRegions: query read: %w", err)
	}

	var rows []*bq.RegionRow
	for {
		var r bq.RegionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("TopRegions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// CountConsistentlyAboveAverageWithClient counts operators whose per-period
// total exceeds the cross-operator average of that period in at least two
// periods.
func CountConsistentlyAboveAverageWithClient(ctx context.Context, client *bigquery.Client, cfg Config) (int64, error) {
	q := client.Query(fmt.Sprintf(`
		WITH totais AS (
			SELECT reg_ans, ano, trimestre, SUM(vl_saldo_final) AS total
			FROM %[1]s
			GROUP BY reg_ans, ano, trimestre
		),
		medias AS (
			SELECT ano, trimestre, AVG(total) AS media
			FROM totais
			GROUP BY ano, trimestre
		),
		acima AS (
			SELECT t.reg_ans
			FROM totais t
			INNER JOIN medias m
			  ON t.ano = m.ano AND t.trimestre = m.trimestre
			WHERE t.total > m.media
			GROUP BY t.reg_ans
			HAVING COUNT(*) >= 2
		)
		SELECT COUNT(*) AS qtd_operadoras
		FROM acima
	`, cfg.tableRef(expensesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountConsistentlyAboveAverage: query read: %w", err)
	}

	var row struct {
		Qtd int64 `bigquery:"qtd_operadoras"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("CountConsistentlyAboveAverage: iter next: %w", err)
	}
	return row.Qtd, nil
}

// AggregatesByOperatorWithClient recomputes the per-operator summaries from
// the persisted lines, applying the keep-largest per-period dedup in SQL so
// overlapping load runs do not double count.
func AggregatesByOperatorWithClient(ctx context.Context, client *bigquery.Client, cfg Config) ([]*bq.AggregateQueryRow, error) {
	q := client.Query(fmt.Sprintf(`
		WITH deduplicado AS (
			SELECT
				o.cnpj,
				o.razao_social,
				o.uf,
				d.ano,
				d.trimestre,
				MAX(d.vl_saldo_final) AS valor
			FROM %s d
			INNER JOIN %s o ON d.reg_ans = o.registro_ans
			GROUP BY o.cnpj, o.razao_social, o.uf, d.ano, d.trimestre
		)
		SELECT
			razao_social,
			uf,
			CAST(SUM(valor) AS FLOAT64) AS total_despesas,
			CAST(AVG(valor) AS FLOAT64) AS media_trimestral,
			STDDEV_SAMP(CAST(valor AS FLOAT64)) AS desvio_padrao
		FROM deduplicado
		GROUP BY razao_social, uf
		ORDER BY total_despesas DESC
	`, cfg.tableRef(expensesTable), cfg.tableRef(operatorsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("AggregatesByOperator: query read: %w", err)
	}

	var rows []*bq.AggregateQueryRow
	for {
		var r bq.AggregateQueryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("AggregatesByOperator: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
