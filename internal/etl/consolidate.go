package etl

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
)

// DedupPolicy resolves duplicate (CNPJ, quarter, year) groups in the
// concatenated quarters. It is injected rather than hard-coded: keeping the
// largest value is a response to cumulative restatements observed in
// overlapping ANS extracts, not a business rule.
type DedupPolicy func(lines []domain.ExpenseLine) []domain.ExpenseLine

// KeepLargestValue stably sorts by amount descending and keeps the first
// line per (CNPJ, quarter, year): the largest restatement is taken as the
// most complete one. Input order breaks amount ties, so the result is
// deterministic for a given input.
func KeepLargestValue(lines []domain.ExpenseLine) []domain.ExpenseLine {
	sorted := make([]domain.ExpenseLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.GreaterThan(sorted[j].Amount)
	})

	type periodKey struct {
		cnpj          string
		quarter, year int
	}
	seen := make(map[periodKey]bool)
	out := make([]domain.ExpenseLine, 0, len(sorted))
	for _, l := range sorted {
		k := periodKey{l.CNPJ, l.Quarter, l.Year}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out
}

// Consolidate merges the reconciled quarterly sets into the final export
// rows and the per-operator aggregates. A nil policy means KeepLargestValue.
// Callers are expected to pass at least three quarters; Consolidate itself
// works on whatever it is given.
func Consolidate(quarters [][]domain.ExpenseLine, policy DedupPolicy) domain.ConsolidationResult {
	if policy == nil {
		policy = KeepLargestValue
	}

	var all []domain.ExpenseLine
	for _, q := range quarters {
		all = append(all, q...)
	}

	export := policy(all)
	return domain.ConsolidationResult{
		Export:     export,
		Aggregates: aggregate(export),
	}
}

// aggregate groups the deduplicated export by (legal name, region) and
// computes the exact total plus mean and sample standard deviation of the
// per-period values, sorted by total descending. Groups with a single value
// have zero deviation.
func aggregate(lines []domain.ExpenseLine) []domain.AggregateRow {
	type groupKey struct {
		name, uf string
	}

	totals := make(map[groupKey]decimal.Decimal)
	values := make(map[groupKey][]float64)
	var order []groupKey
	for _, l := range lines {
		k := groupKey{l.RazaoSocial, l.UF}
		if _, ok := totals[k]; !ok {
			order = append(order, k)
		}
		totals[k] = totals[k].Add(l.Amount)
		values[k] = append(values[k], l.Amount.InexactFloat64())
	}

	rows := make([]domain.AggregateRow, 0, len(order))
	for _, k := range order {
		vs := values[k]
		mean := totals[k].InexactFloat64() / float64(len(vs))

		stddev := 0.0
		if len(vs) > 1 {
			var sq float64
			for _, v := range vs {
				d := v - mean
				sq += d * d
			}
			stddev = math.Sqrt(sq / float64(len(vs)-1))
		}

		rows = append(rows, domain.AggregateRow{
			RazaoSocial: k.name,
			UF:          k.uf,
			Total:       totals[k],
			Mean:        mean,
			StdDev:      stddev,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total.GreaterThan(rows[j].Total)
	})
	return rows
}
