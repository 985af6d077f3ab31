package etl

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
)

func line(cnpj, name, uf string, amount string, quarter, year int) domain.ExpenseLine {
	return domain.ExpenseLine{
		RegistryANS: "000042",
		CNPJ:        cnpj,
		RazaoSocial: name,
		UF:          uf,
		AccountCode: "411",
		Amount:      decimal.RequireFromString(amount),
		Quarter:     quarter,
		Year:        year,
	}
}

func TestKeepLargestValue(t *testing.T) {
	lines := []domain.ExpenseLine{
		line("11222333000181", "ALFA", "SP", "100.00", 1, 2024),
		line("11222333000181", "ALFA", "SP", "150.00", 1, 2024),
		line("11222333000181", "ALFA", "SP", "90.00", 2, 2024),
	}

	out := KeepLargestValue(lines)
	if len(out) != 2 {
		t.Fatalf("got %d lines, want 2", len(out))
	}
	if out[0].Amount.String() != "150" {
		t.Errorf("kept amount = %s, want 150", out[0].Amount.String())
	}
	if out[1].Amount.String() != "90" {
		t.Errorf("second amount = %s, want 90", out[1].Amount.String())
	}
}

func TestKeepLargestValue_DistinctPeriodsKept(t *testing.T) {
	lines := []domain.ExpenseLine{
		line("11222333000181", "ALFA", "SP", "100.00", 1, 2024),
		line("11222333000181", "ALFA", "SP", "100.00", 2, 2024),
		line("11222333000181", "ALFA", "SP", "100.00", 1, 2025),
		line("11444777000161", "BETA", "RJ", "100.00", 1, 2024),
	}

	out := KeepLargestValue(lines)
	if len(out) != 4 {
		t.Errorf("got %d lines, want 4", len(out))
	}
}

func TestConsolidate_MergesQuarters(t *testing.T) {
	q1 := []domain.ExpenseLine{line("11222333000181", "ALFA", "SP", "100.00", 1, 2024)}
	q2 := []domain.ExpenseLine{line("11222333000181", "ALFA", "SP", "200.00", 2, 2024)}
	q3 := []domain.ExpenseLine{
		line("11222333000181", "ALFA", "SP", "300.00", 3, 2024),
		// Restatement of Q1 with a larger value: keep-largest wins.
		line("11222333000181", "ALFA", "SP", "150.00", 1, 2024),
	}

	result := Consolidate([][]domain.ExpenseLine{q1, q2, q3}, nil)
	if len(result.Export) != 3 {
		t.Fatalf("got %d export lines, want 3", len(result.Export))
	}

	byPeriod := make(map[int]string)
	for _, l := range result.Export {
		byPeriod[l.Quarter] = l.Amount.String()
	}
	if byPeriod[1] != "150" {
		t.Errorf("Q1 amount = %s, want 150", byPeriod[1])
	}

	if len(result.Aggregates) != 1 {
		t.Fatalf("got %d aggregate rows, want 1", len(result.Aggregates))
	}
	agg := result.Aggregates[0]
	if agg.Total.String() != "650" {
		t.Errorf("Total = %s, want 650", agg.Total.String())
	}
	wantMean := 650.0 / 3.0
	if math.Abs(agg.Mean-wantMean) > 1e-9 {
		t.Errorf("Mean = %f, want %f", agg.Mean, wantMean)
	}
}

func TestConsolidate_AggregateStdDev(t *testing.T) {
	quarters := [][]domain.ExpenseLine{{
		line("11222333000181", "ALFA", "SP", "100.00", 1, 2024),
		line("11222333000181", "ALFA", "SP", "200.00", 2, 2024),
		line("11222333000181", "ALFA", "SP", "300.00", 3, 2024),
	}}

	result := Consolidate(quarters, nil)
	agg := result.Aggregates[0]
	// Sample deviation of {100, 200, 300}.
	if math.Abs(agg.StdDev-100.0) > 1e-9 {
		t.Errorf("StdDev = %f, want 100", agg.StdDev)
	}
}

func TestConsolidate_SingleValueHasZeroStdDev(t *testing.T) {
	quarters := [][]domain.ExpenseLine{{
		line("11222333000181", "ALFA", "SP", "100.00", 1, 2024),
	}}

	result := Consolidate(quarters, nil)
	if result.Aggregates[0].StdDev != 0 {
		t.Errorf("StdDev = %f, want 0", result.Aggregates[0].StdDev)
	}
}

func TestConsolidate_AggregatesSortedByTotalDesc(t *testing.T) {
	quarters := [][]domain.ExpenseLine{{
		line("11222333000181", "ALFA", "SP", "100.00", 1, 2024),
		line("11444777000161", "BETA", "RJ", "900.00", 1, 2024),
		line("00000000000191", "GAMA", "MG", "500.00", 1, 2024),
	}}

	result := Consolidate(quarters, nil)
	if len(result.Aggregates) != 3 {
		t.Fatalf("got %d aggregate rows, want 3", len(result.Aggregates))
	}
	order := []string{result.Aggregates[0].RazaoSocial, result.Aggregates[1].RazaoSocial, result.Aggregates[2].RazaoSocial}
	want := []string{"BETA", "GAMA", "ALFA"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("aggregate order = %v, want %v", order, want)
		}
	}
}

func TestConsolidate_PolicyIsInjected(t *testing.T) {
	keepSmallest := func(lines []domain.ExpenseLine) []domain.ExpenseLine {
		smallest := lines[0]
		for _, l := range lines[1:] {
			if l.Amount.LessThan(smallest.Amount) {
				smallest = l
			}
		}
		return []domain.ExpenseLine{smallest}
	}

	quarters := [][]domain.ExpenseLine{{
		line("11222333000181", "ALFA", "SP", "100.00", 1, 2024),
		line("11222333000181", "ALFA", "SP", "150.00", 1, 2024),
	}}

	result := Consolidate(quarters, keepSmallest)
	if len(result.Export) != 1 {
		t.Fatalf("got %d export lines, want 1", len(result.Export))
	}
	if result.Export[0].Amount.String() != "100" {
		t.Errorf("amount = %s, want 100", result.Export[0].Amount.String())
	}
}
