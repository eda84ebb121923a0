// Package handlers implements the HTTP boundary of the intake service: the
// two intake entry points consumed by the extraction orchestrator and the
// thin read endpoints the dashboard consumes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brickdatalab/clear-scrub-sub001/internal/api/middleware"
	"github.com/brickdatalab/clear-scrub-sub001/internal/fault"
	"github.com/brickdatalab/clear-scrub-sub001/internal/idempotency"
	"github.com/brickdatalab/clear-scrub-sub001/internal/intake"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
)

// maxPayloadBytes bounds an intake request body.
const maxPayloadBytes = 10 << 20

// IntakeHandler serves the two guarded intake endpoints.
type IntakeHandler struct {
	guard   *idempotency.Guard
	timeout time.Duration
	log     zerolog.Logger
}

// NewIntakeHandler creates a new intake handler.
func NewIntakeHandler(guard *idempotency.Guard, timeout time.Duration, log zerolog.Logger) *IntakeHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IntakeHandler{guard: guard, timeout: timeout, log: log}
}

// IngestStatement handles POST /api/intake/statements
func (h *IntakeHandler) IngestStatement(w http.ResponseWriter, r *http.Request) {
	orgID, raw, ok := h.readIntakeRequest(w, r)
	if !ok {
		return
	}

	var payload intake.StatementPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.guard.IngestStatement(ctx, orgID, raw, &payload)
	if err != nil {
		h.writeFault(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, result)
}

// IngestApplication handles POST /api/intake/applications
func (h *IntakeHandler) IngestApplication(w http.ResponseWriter, r *http.Request) {
	orgID, raw, ok := h.readIntakeRequest(w, r)
	if !ok {
		return
	}

	var payload intake.ApplicationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.guard.IngestApplication(ctx, orgID, raw, &payload)
	if err != nil {
		h.writeFault(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, result)
}

func (h *IntakeHandler) readIntakeRequest(w http.ResponseWriter, r *http.Request) (orgID string, raw []byte, ok bool) {
	orgID = r.Header.Get("X-Organization-ID")
	if orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-Organization-ID header is required")
		return "", nil, false
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Request body exceeds size limit")
			return "", nil, false
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return "", nil, false
	}
	return orgID, raw, true
}

// writeFault maps the error taxonomy onto HTTP statuses: validation errors
// name the offending field for the caller to fix and resubmit; conflicts are
// surfaced loudly; transient failures invite an orchestrator retry.
func (h *IntakeHandler) writeFault(w http.ResponseWriter, err error) {
	var verr *fault.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "validation failed",
			"field":  verr.Field,
			"reason": verr.Reason,
		})
		return
	}

	var cerr *fault.ConflictError
	if errors.As(err, &cerr) {
		h.log.Error().Err(err).Msg("Unresolvable conflict during intake")
		middleware.WriteError(w, http.StatusInternalServerError, "Unresolvable entity conflict")
		return
	}

	var terr *fault.TransientError
	if errors.As(err, &terr) {
		h.log.Warn().Err(err).Msg("Transient failure during intake")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Temporary failure, retry the request")
		return
	}

	h.log.Error().Err(err).Msg("Intake failed")
	middleware.WriteError(w, http.StatusInternalServerError, "Intake failed")
}

// ReadHandler serves the dashboard read endpoints. These are straight store
// reads; the replace semantics on the write path guarantee they never see a
// half-written statement.
type ReadHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewReadHandler creates a new read handler.
func NewReadHandler(s store.Store, log zerolog.Logger) *ReadHandler {
	return &ReadHandler{store: s, log: log}
}

// ListCompanies handles GET /api/companies
func (h *ReadHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	orgID := r.Header.Get("X-Organization-ID")
	if orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-Organization-ID header is required")
		return
	}

	companies, err := h.store.ListCompanies(r.Context(), orgID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list companies")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
	})
}

// ListCompanyStatements handles GET /api/companies/{id}/statements
func (h *ReadHandler) ListCompanyStatements(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("id")

	statements, err := h.store.ListStatementsForCompany(r.Context(), companyID)
	if err != nil {
		h.log.Error().Err(err).Str("company_id", companyID).Msg("Failed to list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list statements")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// ListStatementTransactions handles GET /api/statements/{id}/transactions
func (h *ReadHandler) ListStatementTransactions(w http.ResponseWriter, r *http.Request) {
	statementID := r.PathValue("id")

	transactions, err := h.store.ListTransactions(r.Context(), statementID)
	if err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// ListCompanyRollups handles GET /api/companies/{id}/rollups
func (h *ReadHandler) ListCompanyRollups(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("id")

	rollups, err := h.store.ListRollupsForCompany(r.Context(), companyID)
	if err != nil {
		h.log.Error().Err(err).Str("company_id", companyID).Msg("Failed to list rollups")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list rollups")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rollups": rollups,
		"count":   len(rollups),
	})
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeRawJSON(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
