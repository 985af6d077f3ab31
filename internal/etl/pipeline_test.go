package etl_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/domain"
	"github.com/ecaldas/ans-expense-tracker/internal/etl"
	"github.com/ecaldas/ans-expense-tracker/internal/logger"
)

// MockOperatorRepository is a mock implementation of OperatorRepository for testing.
type MockOperatorRepository struct {
	ReplaceOperatorsFunc   func(ctx context.Context, rows []*bq.OperatorRow) error
	ListOperatorsFunc      func(ctx context.Context, page, limit int, search string) ([]*bq.OperatorRow, int64, error)
	ListAllOperatorsFunc   func(ctx context.Context) ([]*bq.OperatorRow, error)
	FindOperatorByCNPJFunc func(ctx context.Context, cnpj string) (*bq.OperatorRow, error)
}

func (m *MockOperatorRepository) ReplaceOperators(ctx context.Context, rows []*bq.OperatorRow) error {
	if m.ReplaceOperatorsFunc != nil {
		return m.ReplaceOperatorsFunc(ctx, rows)
	}
	return nil
}

func (m *MockOperatorRepository) ListOperators(ctx context.Context, page, limit int, search string) ([]*bq.OperatorRow, int64, error) {
	if m.ListOperatorsFunc != nil {
		return m.ListOperatorsFunc(ctx, page, limit, search)
	}
	return nil, 0, nil
}

func (m *MockOperatorRepository) ListAllOperators(ctx context.Context) ([]*bq.OperatorRow, error) {
	if m.ListAllOperatorsFunc != nil {
		return m.ListAllOperatorsFunc(ctx)
	}
	return nil, nil
}

func (m *MockOperatorRepository) FindOperatorByCNPJ(ctx context.Context, cnpj string) (*bq.OperatorRow, error) {
	if m.FindOperatorByCNPJFunc != nil {
		return m.FindOperatorByCNPJFunc(ctx, cnpj)
	}
	return nil, nil
}

// MockExpenseRepository is a mock implementation of ExpenseRepository for testing.
type MockExpenseRepository struct {
	AppendExpensesFunc       func(ctx context.Context, rows []*bq.ExpenseRow) error
	ExpenseHistoryByCNPJFunc func(ctx context.Context, cnpj string) ([]*bq.ExpenseHistoryRow, error)
}

func (m *MockExpenseRepository) AppendExpenses(ctx context.Context, rows []*bq.ExpenseRow) error {
	if m.AppendExpensesFunc != nil {
		return m.AppendExpensesFunc(ctx, rows)
	}
	return nil
}

func (m *MockExpenseRepository) ExpenseHistoryByCNPJ(ctx context.Context, cnpj string) ([]*bq.ExpenseHistoryRow, error) {
	if m.ExpenseHistoryByCNPJFunc != nil {
		return m.ExpenseHistoryByCNPJFunc(ctx, cnpj)
	}
	return nil, nil
}

// MockLoadRunRepository is a mock implementation of LoadRunRepository for testing.
type MockLoadRunRepository struct {
	StartLoadRunFunc         func(ctx context.Context, filename string) (string, error)
	MarkLoadRunSucceededFunc func(ctx context.Context, loadRunID string, rowsLoaded int) error
	MarkLoadRunSkippedFunc   func(ctx context.Context, loadRunID string, reason string) error
	MarkLoadRunFailedFunc    func(ctx context.Context, loadRunID string, loadErr error)
}

func (m *MockLoadRunRepository) StartLoadRun(ctx context.Context, filename string) (string, error) {
	if m.StartLoadRunFunc != nil {
		return m.StartLoadRunFunc(ctx, filename)
	}
	return "run-1", nil
}

func (m *MockLoadRunRepository) MarkLoadRunSucceeded(ctx context.Context, loadRunID string, rowsLoaded int) error {
	if m.MarkLoadRunSucceededFunc != nil {
		return m.MarkLoadRunSucceededFunc(ctx, loadRunID, rowsLoaded)
	}
	return nil
}

func (m *MockLoadRunRepository) MarkLoadRunSkipped(ctx context.Context, loadRunID string, reason string) error {
	if m.MarkLoadRunSkippedFunc != nil {
		return m.MarkLoadRunSkippedFunc(ctx, loadRunID, reason)
	}
	return nil
}

func (m *MockLoadRunRepository) MarkLoadRunFailed(ctx context.Context, loadRunID string, loadErr error) {
	if m.MarkLoadRunFailedFunc != nil {
		m.MarkLoadRunFailedFunc(ctx, loadRunID, loadErr)
	}
}

func testPipeline(ops *MockOperatorRepository, exp *MockExpenseRepository, runs *MockLoadRunRepository) *etl.Pipeline {
	log := logger.NewWithWriter(&bytes.Buffer{})
	return etl.NewPipeline(etl.Stores{Operators: ops, Expenses: exp, LoadRuns: runs}, etl.Options{}, log)
}

func testOperators() []domain.Operator {
	return []domain.Operator{
		{RegistryANS: "000042", CNPJ: "11222333000181", RazaoSocial: "OPERADORA ALFA", UF: "SP"},
	}
}

func TestPipeline_LoadRegistrySnapshot(t *testing.T) {
	var replaced []*bq.OperatorRow
	ops := &MockOperatorRepository{
		ReplaceOperatorsFunc: func(ctx context.Context, rows []*bq.OperatorRow) error {
			replaced = rows
			return nil
		},
	}
	p := testPipeline(ops, &MockExpenseRepository{}, &MockLoadRunRepository{})

	data := []byte("Registro_ANS;CNPJ;Razao_Social;UF\n42;11222333000181;ALFA;SP\n")
	operators, err := p.LoadRegistrySnapshot(context.Background(), data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistrySnapshot() error = %v", err)
	}
	if len(operators) != 1 {
		t.Fatalf("got %d operators, want 1", len(operators))
	}
	if len(replaced) != 1 {
		t.Fatalf("ReplaceOperators received %d rows, want 1", len(replaced))
	}
	if replaced[0].RegistroANS != "000042" {
		t.Errorf("RegistroANS = %q, want %q", replaced[0].RegistroANS, "000042")
	}
	if replaced[0].LoadedTS.IsZero() {
		t.Error("LoadedTS not set")
	}
}

func TestPipeline_LoadRegistrySnapshot_ReplaceFails(t *testing.T) {
	ops := &MockOperatorRepository{
		ReplaceOperatorsFunc: func(ctx context.Context, rows []*bq.OperatorRow) error {
			return errors.New("truncate denied")
		},
	}
	p := testPipeline(ops, &MockExpenseRepository{}, &MockLoadRunRepository{})

	data := []byte("Registro_ANS;CNPJ;Razao_Social;UF\n42;11222333000181;ALFA;SP\n")
	if _, err := p.LoadRegistrySnapshot(context.Background(), data, "Relatorio_cadop.csv"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPipeline_ProcessStatementFile_Success(t *testing.T) {
	var appended []*bq.ExpenseRow
	var succeededRuns []string
	var succeededRows int

	exp := &MockExpenseRepository{
		AppendExpensesFunc: func(ctx context.Context, rows []*bq.ExpenseRow) error {
			appended = rows
			return nil
		},
	}
	runs := &MockLoadRunRepository{
		MarkLoadRunSucceededFunc: func(ctx context.Context, loadRunID string, rowsLoaded int) error {
			succeededRuns = append(succeededRuns, loadRunID)
			succeededRows = rowsLoaded
			return nil
		},
	}
	p := testPipeline(&MockOperatorRepository{}, exp, runs)

	data := []byte("DATA;REG_ANS;CD_CONTA_CONTABIL;VL_SALDO_FINAL\n2024-03-31;42;411;1.500,00\n")
	res, err := p.ProcessStatementFile(context.Background(), data, "1T2024.csv", testOperators())
	if err != nil {
		t.Fatalf("ProcessStatementFile() error = %v", err)
	}
	if res.Skipped {
		t.Fatalf("unexpected skip: %s", res.SkipReason)
	}
	if len(appended) != 1 {
		t.Fatalf("appended %d rows, want 1", len(appended))
	}

	row := appended[0]
	if row.RegANS != "000042" {
		t.Errorf("RegANS = %q, want %q", row.RegANS, "000042")
	}
	if row.LoadRunID != "run-1" {
		t.Errorf("LoadRunID = %q, want %q", row.LoadRunID, "run-1")
	}
	if row.ExpenseID == "" {
		t.Error("ExpenseID not set")
	}
	if f, _ := row.VLSaldoFinal.Float64(); f != 1500.0 {
		t.Errorf("VLSaldoFinal = %f, want 1500", f)
	}
	if row.Ano != 2024 || row.Trimestre != 1 {
		t.Errorf("period = %d/%d, want 2024/1", row.Ano, row.Trimestre)
	}

	if len(succeededRuns) != 1 || succeededRuns[0] != "run-1" {
		t.Errorf("succeeded runs = %v, want [run-1]", succeededRuns)
	}
	if succeededRows != 1 {
		t.Errorf("rows loaded = %d, want 1", succeededRows)
	}
}

func TestPipeline_ProcessStatementFile_SkipRecorded(t *testing.T) {
	var skippedReason string
	var appendCalled bool

	exp := &MockExpenseRepository{
		AppendExpensesFunc: func(ctx context.Context, rows []*bq.ExpenseRow) error {
			appendCalled = true
			return nil
		},
	}
	runs := &MockLoadRunRepository{
		MarkLoadRunSkippedFunc: func(ctx context.Context, loadRunID string, reason string) error {
			skippedReason = reason
			return nil
		},
	}
	p := testPipeline(&MockOperatorRepository{}, exp, runs)

	data := []byte("DATA;REG_ANS;DESCRICAO;OUTRO\n2024-03-31;42;SEM CONTA;x\n")
	res, err := p.ProcessStatementFile(context.Background(), data, "outro_arquivo.csv", testOperators())
	if err != nil {
		t.Fatalf("ProcessStatementFile() error = %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected skipped result")
	}
	if skippedReason != string(etl.SkipMissingColumns) {
		t.Errorf("skip reason = %q, want %q", skippedReason, etl.SkipMissingColumns)
	}
	if appendCalled {
		t.Error("AppendExpenses called for a skipped file")
	}
}

func TestPipeline_ProcessStatementFile_FormatErrorMarksFailed(t *testing.T) {
	var failedRun string
	runs := &MockLoadRunRepository{
		MarkLoadRunFailedFunc: func(ctx context.Context, loadRunID string, loadErr error) {
			failedRun = loadRunID
		},
	}
	p := testPipeline(&MockOperatorRepository{}, &MockExpenseRepository{}, runs)

	data := []byte("coluna\nvalor\n")
	_, err := p.ProcessStatementFile(context.Background(), data, "quebrado.csv", testOperators())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var formatErr *etl.FormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("error = %v, want *etl.FormatError", err)
	}
	if failedRun != "run-1" {
		t.Errorf("failed run = %q, want %q", failedRun, "run-1")
	}
}

func TestPipeline_ProcessStatementFile_AppendFailureMarksFailed(t *testing.T) {
	var failed bool
	exp := &MockExpenseRepository{
		AppendExpensesFunc: func(ctx context.Context, rows []*bq.ExpenseRow) error {
			return errors.New("quota exceeded")
		},
	}
	runs := &MockLoadRunRepository{
		MarkLoadRunFailedFunc: func(ctx context.Context, loadRunID string, loadErr error) {
			failed = true
		},
	}
	p := testPipeline(&MockOperatorRepository{}, exp, runs)

	data := []byte("DATA;REG_ANS;CD_CONTA_CONTABIL;VL_SALDO_FINAL\n2024-03-31;42;411;100,00\n")
	if _, err := p.ProcessStatementFile(context.Background(), data, "1T2024.csv", testOperators()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if !failed {
		t.Error("load run not marked failed")
	}
}
