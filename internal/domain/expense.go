package domain

import (
	"github.com/shopspring/decimal"
)

// ExpenseLine is one cleaned, reconciled claims-expense entry: a statement
// row that matched the target accounting line, joined against the registry
// and validated. Amount is an exact decimal; monetary values never pass
// through binary floating point on their way to storage or export.
type ExpenseLine struct {
	RegistryANS string
	CNPJ        string
	RazaoSocial string
	UF          string
	AccountCode string
	Amount      decimal.Decimal
	Year        int
	Quarter     int
}

// AggregateRow is a derived per-operator summary. Total is kept exact;
// mean and standard deviation are analytics computed after exact summation
// and may be floating point.
type AggregateRow struct {
	RazaoSocial string
	UF          string
	Total       decimal.Decimal
	Mean        float64
	StdDev      float64
}

// ConsolidationResult is the output of merging the reconciled quarters:
// the deduplicated export rows plus the per-operator aggregates, both in
// their final output order.
type ConsolidationResult struct {
	Export     []ExpenseLine
	Aggregates []AggregateRow
}
