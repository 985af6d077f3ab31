package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// OperatorRepository provides an interface for registry-snapshot database operations.
type OperatorRepository interface {
	// ReplaceOperators replaces the whole operator snapshot with the given rows.
	ReplaceOperators(ctx context.Context, rows []*OperatorRow) error

	// ListOperators retrieves one page of operators, optionally filtered by a
	// case-insensitive substring match on legal name or CNPJ. Returns the page
	// and the total count for the filter.
	ListOperators(ctx context.Context, page, limit int, search string) ([]*OperatorRow, int64, error)

	// ListAllOperators retrieves the full snapshot.
	ListAllOperators(ctx context.Context) ([]*OperatorRow, error)

	// FindOperatorByCNPJ retrieves one operator by exact CNPJ, nil when absent.
	FindOperatorByCNPJ(ctx context.Context, cnpj string) (*OperatorRow, error)
}

// ExpenseRepository provides an interface for expense-line database operations.
type ExpenseRepository interface {
	// AppendExpenses appends a batch of ExpenseRow; the table is append-only.
	AppendExpenses(ctx context.Context, rows []*ExpenseRow) error

	// ExpenseHistoryByCNPJ retrieves an operator's expense lines ordered by
	// year and quarter descending.
	ExpenseHistoryByCNPJ(ctx context.Context, cnpj string) ([]*ExpenseHistoryRow, error)
}

// LoadRunRepository provides an interface for the per-file ETL audit trail.
type LoadRunRepository interface {
	// StartLoadRun inserts a new load run with status=RUNNING and returns its id.
	StartLoadRun(ctx context.Context, filename string) (string, error)

	// MarkLoadRunSucceeded sets status=SUCCESS, finished_ts and the row count.
	MarkLoadRunSucceeded(ctx context.Context, loadRunID string, rowsLoaded int) error

	// MarkLoadRunSkipped sets status=SKIPPED, finished_ts and the skip reason.
	MarkLoadRunSkipped(ctx context.Context, loadRunID string, reason string) error

	// MarkLoadRunFailed sets status=FAILED, finished_ts and error_message.
	// Best effort: failures are logged, not returned, so they never mask the
	// original error.
	MarkLoadRunFailed(ctx context.Context, loadRunID string, loadErr error)
}

// AnalyticsRepository provides the fixed analytics over the persisted lines.
type AnalyticsRepository interface {
	// TopGrowth retrieves the five operators with the largest percentage
	// expense growth between the earliest and latest persisted period.
	TopGrowth(ctx context.Context) ([]*GrowthRow, error)

	// TopRegions retrieves the five UFs with the largest total expenses.
	TopRegions(ctx context.Context) ([]*RegionRow, error)

	// CountConsistentlyAboveAverage counts operators above the per-period
	// cross-operator average in at least two periods.
	CountConsistentlyAboveAverage(ctx context.Context) (int64, error)

	// AggregatesByOperator retrieves per-operator expense summaries, largest
	// total first, with the keep-largest per-period dedup applied.
	AggregatesByOperator(ctx context.Context) ([]*AggregateQueryRow, error)
}

// OperatorRow represents one registry operator in BigQuery.
type OperatorRow struct {
	RegistroANS string    `bigquery:"registro_ans" json:"registro_ans"`
	CNPJ        string    `bigquery:"cnpj" json:"cnpj"`
	RazaoSocial string    `bigquery:"razao_social" json:"razao_social"`
	Modalidade  string    `bigquery:"modalidade" json:"modalidade"`
	UF          string    `bigquery:"uf" json:"uf"`
	LoadedTS    time.Time `bigquery:"loaded_ts" json:"loaded_ts"`
}

// ExpenseRow represents one reconciled expense line in BigQuery.
type ExpenseRow struct {
	ExpenseID       string    `bigquery:"expense_id"`
	RegANS          string    `bigquery:"reg_ans"`
	CDContaContabil string    `bigquery:"cd_conta_contabil"`
	VLSaldoFinal    *big.Rat  `bigquery:"vl_saldo_final"`
	Ano             int64     `bigquery:"ano"`
	Trimestre       int64     `bigquery:"trimestre"`
	LoadRunID       string    `bigquery:"load_run_id"`
	CreatedTS       time.Time `bigquery:"created_ts"`
}

// LoadRunRow represents one per-file ETL run in BigQuery.
type LoadRunRow struct {
	LoadRunID    string                 `bigquery:"load_run_id"`
	Filename     string                 `bigquery:"filename"`
	StartedTS    time.Time              `bigquery:"started_ts"`
	FinishedTS   bigquery.NullTimestamp `bigquery:"finished_ts"`
	Status       string                 `bigquery:"status"`
	SkipReason   bigquery.NullString    `bigquery:"skip_reason"`
	ErrorMessage string                 `bigquery:"error_message"`
	RowsLoaded   bigquery.NullInt64     `bigquery:"rows_loaded"`
}

// ExpenseHistoryRow is one entry of an operator's expense history.
type ExpenseHistoryRow struct {
	Ano       int64    `bigquery:"ano" json:"ano"`
	Trimestre int64    `bigquery:"trimestre" json:"trimestre"`
	Valor     *big.Rat `bigquery:"vl_saldo_final" json:"valor"`
	Conta     string   `bigquery:"cd_conta_contabil" json:"conta"`
}

// MarshalJSON customizes JSON serialization for ExpenseHistoryRow: the
// NUMERIC amount goes out as a fixed two-decimal string.
func (r ExpenseHistoryRow) MarshalJSON() ([]byte, error) {
	type Alias ExpenseHistoryRow
	return json.Marshal(&struct {
		Valor string `json:"valor"`
		*Alias
	}{
		Valor: func() string {
			if r.Valor == nil {
				return "0"
			}
			f, _ := r.Valor.Float64()
			return fmt.Sprintf("%.2f", f)
		}(),
		Alias: (*Alias)(&r),
	})
}

// GrowthRow is one operator in the top-growth ranking.
type GrowthRow struct {
	RegistroANS    string  `bigquery:"registro_ans" json:"registro_ans"`
	RazaoSocial    string  `bigquery:"razao_social" json:"razao_social"`
	TotalInicial   float64 `bigquery:"total_inicial" json:"total_inicial"`
	TotalFinal     float64 `bigquery:"total_final" json:"total_final"`
	CrescimentoPct float64 `bigquery:"crescimento_percentual" json:"crescimento_percentual"`
}

// RegionRow is one UF in the regional expense ranking.
type RegionRow struct {
	UF                string  `bigquery:"uf" json:"uf"`
	DespesaTotal      float64 `bigquery:"despesa_total" json:"despesa_total"`
	QtdOperadoras     int64   `bigquery:"qtd_operadoras" json:"qtd_operadoras"`
	MediaPorOperadora float64 `bigquery:"media_por_operadora" json:"media_por_operadora"`
}

// AggregateQueryRow is one per-operator summary recomputed from the
// persisted lines. Deviation is NULL for operators with a single period.
type AggregateQueryRow struct {
	RazaoSocial     string               `bigquery:"razao_social" json:"razao_social"`
	UF              string               `bigquery:"uf" json:"uf"`
	TotalDespesas   float64              `bigquery:"total_despesas" json:"total_despesas"`
	MediaTrimestral float64              `bigquery:"media_trimestral" json:"media_trimestral"`
	DesvioPadrao    bigquery.NullFloat64 `bigquery:"desvio_padrao" json:"desvio_padrao"`
}
