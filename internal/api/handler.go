package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc          *engine.Service
	repo         domain.Repository
	bus          domain.EventBus
	version      string
	maxBatchSize int
}

// NewHandler creates a new API handler. repo and bus may be nil.
func NewHandler(svc *engine.Service, repo domain.Repository, bus domain.EventBus, version string, maxBatchSize int) *Handler {
	if maxBatchSize <= 0 {
		maxBatchSize = 500
	}
	return &Handler{
		svc:          svc,
		repo:         repo,
		bus:          bus,
		version:      version,
		maxBatchSize: maxBatchSize,
	}
}

// ValidationResponse is returned with 422 when indicators are rejected.
type ValidationResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.SupplierID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "supplierId is required",
		})
		return
	}

	rec, err := h.svc.Evaluate(r.Context(), req)
	if err != nil {
		writeEvaluationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// BatchRequest is the request body for POST /evaluate/batch.
type BatchRequest struct {
	Suppliers []domain.SupplierRequest `json:"suppliers"`
}

// BatchResult is one supplier's outcome in a batch response.
type BatchResult struct {
	Index      int                      `json:"index"`
	SupplierID string                   `json:"supplierId"`
	Record     *domain.EvaluationRecord `json:"record,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Fields     []domain.FieldError      `json:"fields,omitempty"`
}

// EvaluateBatch handles POST /evaluate/batch requests. Each supplier is
// evaluated independently; one invalid supplier does not fail the batch.
func (h *Handler) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Suppliers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "suppliers must not be empty",
		})
		return
	}
	if len(req.Suppliers) > h.maxBatchSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("batch exceeds %d suppliers", h.maxBatchSize),
		})
		return
	}

	items, err := h.svc.EvaluateBatch(r.Context(), req.Suppliers)
	if err != nil {
		slog.Error("batch evaluation aborted", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "batch evaluation aborted",
		})
		return
	}

	results := make([]BatchResult, len(items))
	failed := 0
	for i, item := range items {
		res := BatchResult{
			Index:      item.Index,
			SupplierID: req.Suppliers[i].SupplierID,
			Record:     item.Record,
		}
		if item.Err != nil {
			failed++
			res.Error = item.Err.Error()
			var verr *domain.ValidationError
			if errors.As(item.Err, &verr) {
				res.Error = "validation failed"
				res.Fields = verr.Fields
			}
		}
		results[i] = res
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
		"failed":  failed,
	})
}

// Submit handles POST /submit: the supplier is queued on the event bus and
// evaluated by the worker pool.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req domain.SupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.SupplierID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "supplierId is required",
		})
		return
	}

	payload, err := json.Marshal(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "indicators cannot be encoded",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicSupplierSubmitted, payload); err != nil {
		slog.Error("failed to queue supplier", "supplier_id", req.SupplierID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue supplier",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"supplierId": req.SupplierID,
		"traceId":    GetTraceID(r.Context()),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"catalog": h.svc.Catalog().Version(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "repository unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetEvaluation retrieves an evaluation by ID.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookupEvaluation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetReport renders an evaluation as a Markdown report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookupEvaluation(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.svc.Report(rec)))
}

func (h *Handler) lookupEvaluation(w http.ResponseWriter, r *http.Request) (*domain.EvaluationRecord, bool) {
	evalID := chi.URLParam(r, "id")

	rec, err := h.svc.Get(r.Context(), evalID)
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, engine.ErrNoRepository):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
	default:
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load evaluation",
		})
	}
	return nil, false
}

// SupplierHistory lists a supplier's evaluations, newest first.
func (h *Handler) SupplierHistory(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "id")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	records, err := h.svc.History(r.Context(), supplierID, limit)
	if err != nil {
		if errors.Is(err, engine.ErrNoRepository) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "repository not available",
			})
			return
		}
		slog.Error("failed to list evaluations", "supplier_id", supplierID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list evaluations",
		})
		return
	}

	if records == nil {
		records = []*domain.EvaluationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"supplierId":  supplierID,
		"evaluations": records,
		"count":       len(records),
	})
}

// ListRules returns the active catalog, optionally filtered by ?category=.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	catalog := h.svc.Catalog()

	rules := catalog.All()
	if c := r.URL.Query().Get("category"); c != "" {
		cat := domain.Category(c)
		if !cat.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "unknown category: " + c,
			})
			return
		}
		rules = catalog.RulesFor(cat)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": catalog.Version(),
		"rules":   rules,
		"count":   len(rules),
	})
}

// GetRule retrieves a rule from the active catalog.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	rule, ok := h.svc.Catalog().Rule(ruleID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// GetSchema returns the indicator schema of the active catalog.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema := h.svc.Catalog().Schema()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":    schema.Version(),
		"indicators": schema.Indicators(),
		"required":   schema.Required(),
	})
}

// ListDefinitions returns the CEL definitions extending the built-in catalog.
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.svc.Definitions(r.Context())
	if err != nil {
		slog.Error("failed to list rule definitions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rule definitions",
		})
		return
	}

	if defs == nil {
		defs = []*domain.RuleDefinition{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"definitions": defs,
		"count":       len(defs),
	})
}

// DefinitionRequest is the request body for POST /definitions.
type DefinitionRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      domain.Category `json:"category"`
	Severity      domain.Severity `json:"severity"`
	Impact        int             `json:"impact"`
	Factor        string          `json:"factor,omitempty"`
	Expression    string          `json:"expression"`
	Justification string          `json:"justification,omitempty"`
	Enabled       *bool           `json:"enabled,omitempty"`
}

// CreateDefinition compiles a CEL definition, stores it and reloads the
// catalog so it applies to the next evaluation.
func (h *Handler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var req DefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	def := &domain.RuleDefinition{
		ID:            req.ID,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Severity:      req.Severity,
		Impact:        req.Impact,
		Factor:        req.Factor,
		Expression:    req.Expression,
		Justification: req.Justification,
		Enabled:       req.Enabled == nil || *req.Enabled,
	}

	if err := h.svc.ValidateDefinition(ctx, def); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule definition: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRuleDefinition(ctx, def); err != nil {
		slog.Error("failed to save rule definition", "id", def.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule definition",
		})
		return
	}

	catalog, err := h.svc.Reload(ctx)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "definition saved but catalog reload failed: " + err.Error(),
		})
		return
	}

	slog.Info("rule definition saved", "id", def.ID, "catalog_version", catalog.Version())
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"definition": def,
		"catalog":    catalog.Version(),
	})
}

// DeleteDefinition soft-deletes a stored definition and reloads the catalog.
func (h *Handler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteRuleDefinition(ctx, defID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule definition not found",
			})
			return
		}
		slog.Error("failed to delete rule definition", "id", defID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule definition",
		})
		return
	}

	catalog, err := h.svc.Reload(ctx)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "definition deleted but catalog reload failed: " + err.Error(),
		})
		return
	}

	slog.Info("rule definition deleted", "id", defID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rule definition deleted",
		"catalog": catalog.Version(),
	})
}

// ReloadDefinitions rebuilds the catalog from the rules file and storage.
// A failed reload leaves the active catalog in place.
func (h *Handler) ReloadDefinitions(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.Reload(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "catalog reload failed: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "catalog reloaded successfully",
		"version": catalog.Version(),
		"count":   catalog.Len(),
	})
}

func writeEvaluationError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
		return
	}

	slog.Error("evaluation failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "evaluation failed",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
