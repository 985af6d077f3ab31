package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ecaldas/ans-expense-tracker/internal/api/middleware"
	"github.com/ecaldas/ans-expense-tracker/internal/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/gcsuploader"
	"github.com/ecaldas/ans-expense-tracker/internal/jobs"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// OperatorsHandler handles registry-related endpoints.
type OperatorsHandler struct {
	operators bigquery.OperatorRepository
	expenses  bigquery.ExpenseRepository
	log       zerolog.Logger
}

// NewOperatorsHandler creates a new operators handler.
func NewOperatorsHandler(operators bigquery.OperatorRepository, expenses bigquery.ExpenseRepository, log zerolog.Logger) *OperatorsHandler {
	return &OperatorsHandler{
		operators: operators,
		expenses:  expenses,
		log:       log,
	}
}

// ListOperators handles GET /api/operators?page=&limit=&search=
func (h *OperatorsHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page := defaultPage
	if v := query.Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid page")
			return
		}
		page = p
	}

	limit := defaultLimit
	if v := query.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if l > maxLimit {
			l = maxLimit
		}
		limit = l
	}

	search := strings.TrimSpace(query.Get("search"))

	operators, total, err := h.operators.ListOperators(ctx, page, limit, search)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list operators")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list operators")
		return
	}

	if operators == nil {
		operators = []*bigquery.OperatorRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":  operators,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetOperator handles GET /api/operators/{cnpj}
func (h *OperatorsHandler) GetOperator(w http.ResponseWriter, r *http.Request, cnpj string) {
	ctx := r.Context()

	operator, err := h.operators.FindOperatorByCNPJ(ctx, cnpj)
	if err != nil {
		h.log.Error().Err(err).Str("cnpj", cnpj).Msg("Failed to find operator")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to find operator")
		return
	}
	if operator == nil {
		middleware.WriteError(w, http.StatusNotFound, "Operator not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, operator)
}

// GetExpenseHistory handles GET /api/operators/{cnpj}/expenses
func (h *OperatorsHandler) GetExpenseHistory(w http.ResponseWriter, r *http.Request, cnpj string) {
	ctx := r.Context()

	history, err := h.expenses.ExpenseHistoryByCNPJ(ctx, cnpj)
	if err != nil {
		h.log.Error().Err(err).Str("cnpj", cnpj).Msg("Failed to query expense history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query expense history")
		return
	}

	// Unknown CNPJ and known-but-empty both return an empty list.
	if history == nil {
		history = []*bigquery.ExpenseHistoryRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cnpj":  cnpj,
		"data":  history,
		"count": len(history),
	})
}

// StatsHandler handles the composite analytics endpoint.
type StatsHandler struct {
	analytics bigquery.AnalyticsRepository
	log       zerolog.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(analytics bigquery.AnalyticsRepository, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		analytics: analytics,
		log:       log,
	}
}

// GetStats handles GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	growth, err := h.analytics.TopGrowth(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query growth ranking")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	regions, err := h.analytics.TopRegions(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query region ranking")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	consistent, err := h.analytics.CountConsistentlyAboveAverage(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query consistency count")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	if growth == nil {
		growth = []*bigquery.GrowthRow{}
	}
	if regions == nil {
		regions = []*bigquery.RegionRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"top_growth": growth,
		"regions":    regions,
		"consistency": map[string]int64{
			"operators_above_average": consistent,
		},
	})
}

// StatementsHandler enqueues statement loads so ETL work stays off the
// request path.
type StatementsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		publisher: publisher,
		log:       log,
	}
}

// EnqueueLoad handles POST /api/statements/load
func (h *StatementsHandler) EnqueueLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GCSURI string `json:"gcs_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !strings.HasPrefix(req.GCSURI, "gs://") {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must be a gs:// URI")
		return
	}

	ctx := r.Context()

	job := &jobs.LoadStatementJob{
		GCSURI:   req.GCSURI,
		Filename: gcsuploader.ExtractFilenameFromGCSURI(req.GCSURI),
	}

	if err := h.publisher.PublishLoadStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue load job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue load job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("gcs_uri", req.GCSURI).Msg("Load job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": req.GCSURI,
		"status":  string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Filename: query.Get("filename"),
		Status:   jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
