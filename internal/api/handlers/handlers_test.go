package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecaldas/ans-expense-tracker/internal/api/handlers"
	bq "github.com/ecaldas/ans-expense-tracker/internal/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/jobs"
	"github.com/ecaldas/ans-expense-tracker/internal/logger"
)

type MockOperatorRepository struct {
	ListOperatorsFunc      func(ctx context.Context, page, limit int, search string) ([]*bq.OperatorRow, int64, error)
	FindOperatorByCNPJFunc func(ctx context.Context, cnpj string) (*bq.OperatorRow, error)
}

func (m *MockOperatorRepository) ReplaceOperators(ctx context.Context, rows []*bq.OperatorRow) error {
	return nil
}

func (m *MockOperatorRepository) ListOperators(ctx context.Context, page, limit int, search string) ([]*bq.OperatorRow, int64, error) {
	if m.ListOperatorsFunc != nil {
		return m.ListOperatorsFunc(ctx, page, limit, search)
	}
	return nil, 0, nil
}

func (m *MockOperatorRepository) ListAllOperators(ctx context.Context) ([]*bq.OperatorRow, error) {
	return nil, nil
}

func (m *MockOperatorRepository) FindOperatorByCNPJ(ctx context.Context, cnpj string) (*bq.OperatorRow, error) {
	if m.FindOperatorByCNPJFunc != nil {
		return m.FindOperatorByCNPJFunc(ctx, cnpj)
	}
	return nil, nil
}

type MockExpenseRepository struct {
	ExpenseHistoryByCNPJFunc func(ctx context.Context, cnpj string) ([]*bq.ExpenseHistoryRow, error)
}

func (m *MockExpenseRepository) AppendExpenses(ctx context.Context, rows []*bq.ExpenseRow) error {
	return nil
}

func (m *MockExpenseRepository) ExpenseHistoryByCNPJ(ctx context.Context, cnpj string) ([]*bq.ExpenseHistoryRow, error) {
	if m.ExpenseHistoryByCNPJFunc != nil {
		return m.ExpenseHistoryByCNPJFunc(ctx, cnpj)
	}
	return nil, nil
}

type MockPublisher struct {
	PublishLoadStatementFunc func(ctx context.Context, job *jobs.LoadStatementJob) error
}

func (m *MockPublisher) PublishLoadStatement(ctx context.Context, job *jobs.LoadStatementJob) error {
	if m.PublishLoadStatementFunc != nil {
		return m.PublishLoadStatementFunc(ctx, job)
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func TestListOperators_InvalidPage(t *testing.T) {
	h := handlers.NewOperatorsHandler(&MockOperatorRepository{}, &MockExpenseRepository{}, logger.NewWithWriter(&bytes.Buffer{}))

	req := httptest.NewRequest(http.MethodGet, "/api/operators?page=zero", nil)
	rec := httptest.NewRecorder()

	h.ListOperators(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListOperators_PassesPagingAndSearch(t *testing.T) {
	var gotPage, gotLimit int
	var gotSearch string

	ops := &MockOperatorRepository{
		ListOperatorsFunc: func(ctx context.Context, page, limit int, search string) ([]*bq.OperatorRow, int64, error) {
			gotPage, gotLimit, gotSearch = page, limit, search
			return []*bq.OperatorRow{{CNPJ: "11222333000181", RazaoSocial: "OPERADORA ALFA"}}, 1, nil
		},
	}
	h := handlers.NewOperatorsHandler(ops, &MockExpenseRepository{}, logger.NewWithWriter(&bytes.Buffer{}))

	req := httptest.NewRequest(http.MethodGet, "/api/operators?page=2&limit=5&search=alfa", nil)
	rec := httptest.NewRecorder()

	h.ListOperators(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotPage != 2 || gotLimit != 5 || gotSearch != "alfa" {
		t.Errorf("repo called with page=%d limit=%d search=%q", gotPage, gotLimit, gotSearch)
	}

	var payload struct {
		Total int64 `json:"total"`
		Page  int   `json:"page"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Total != 1 || payload.Page != 2 {
		t.Errorf("got total=%d page=%d, want 1 and 2", payload.Total, payload.Page)
	}
}

func TestGetOperator_NotFound(t *testing.T) {
	ops := &MockOperatorRepository{
		FindOperatorByCNPJFunc: func(ctx context.Context, cnpj string) (*bq.OperatorRow, error) {
			return nil, nil
		},
	}
	h := handlers.NewOperatorsHandler(ops, &MockExpenseRepository{}, logger.NewWithWriter(&bytes.Buffer{}))

	req := httptest.NewRequest(http.MethodGet, "/api/operators/00000000000000", nil)
	rec := httptest.NewRecorder()

	h.GetOperator(rec, req, "00000000000000")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetExpenseHistory_UnknownCNPJIsEmptyList(t *testing.T) {
	h := handlers.NewOperatorsHandler(&MockOperatorRepository{}, &MockExpenseRepository{}, logger.NewWithWriter(&bytes.Buffer{}))

	req := httptest.NewRequest(http.MethodGet, "/api/operators/11222333000181/expenses", nil)
	rec := httptest.NewRecorder()

	h.GetExpenseHistory(rec, req, "11222333000181")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		CNPJ  string            `json:"cnpj"`
		Data  []json.RawMessage `json:"data"`
		Count int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Count != 0 || payload.Data == nil {
		t.Errorf("expected empty non-null list, got count=%d data=%v", payload.Count, payload.Data)
	}
}

func TestEnqueueLoad(t *testing.T) {
	t.Run("rejects non-gs URI", func(t *testing.T) {
		h := handlers.NewStatementsHandler(&MockPublisher{}, logger.NewWithWriter(&bytes.Buffer{}))

		body := strings.NewReader(`{"gcs_uri": "https://example.com/1T2024.csv"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/statements/load", body)
		rec := httptest.NewRecorder()

		h.EnqueueLoad(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("publishes job with derived filename", func(t *testing.T) {
		var published *jobs.LoadStatementJob
		pub := &MockPublisher{
			PublishLoadStatementFunc: func(ctx context.Context, job *jobs.LoadStatementJob) error {
				job.JobID = "job-1"
				job.Status = jobs.JobStatusPending
				published = job
				return nil
			},
		}
		h := handlers.NewStatementsHandler(pub, logger.NewWithWriter(&bytes.Buffer{}))

		body := strings.NewReader(`{"gcs_uri": "gs://raw-data/extracts/1T2024.csv"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/statements/load", body)
		rec := httptest.NewRecorder()

		h.EnqueueLoad(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if published == nil {
			t.Fatal("expected a job to be published")
		}
		if published.Filename != "1T2024.csv" {
			t.Errorf("got filename %q, want 1T2024.csv", published.Filename)
		}

		var payload map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if payload["job_id"] != "job-1" {
			t.Errorf("got job_id %q, want job-1", payload["job_id"])
		}
	})
}
