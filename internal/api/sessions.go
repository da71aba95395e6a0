package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/govsearch/govsearch/internal/assistant"
	"github.com/govsearch/govsearch/internal/auth"
	"github.com/govsearch/govsearch/internal/conversation"
	"github.com/govsearch/govsearch/internal/export"
	"github.com/govsearch/govsearch/internal/query"
	"github.com/govsearch/govsearch/internal/session"
	"github.com/govsearch/govsearch/internal/storage"
)

type askRequest struct {
	Question string `json:"question"`
}

type sessionResponse struct {
	SessionID  string                `json:"session_id"`
	TenantID   string                `json:"tenant_id"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	History    []conversation.Turn   `json:"history"`
	Context    conversation.Snapshot `json:"context"`
	LastResult *resultSummary        `json:"last_result,omitempty"`
	Exports    []string              `json:"exports,omitempty"`
}

type resultSummary struct {
	SQL      string    `json:"sql"`
	Columns  []string  `json:"columns"`
	RowCount int       `json:"row_count"`
	At       time.Time `json:"at"`
}

func newSessionResponse(s *session.Session) sessionResponse {
	response := sessionResponse{
		SessionID: s.ID,
		TenantID:  s.TenantID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		History:   s.History,
		Context:   s.Context.Snapshot(),
		Exports:   s.Exports,
	}
	if s.LastResult != nil {
		response.LastResult = &resultSummary{
			SQL:      s.LastResult.SQL,
			Columns:  s.LastResult.Columns,
			RowCount: s.LastResult.RowCount,
			At:       s.LastResult.At,
		}
	}
	return response
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	tenantID, ok := sessionPreamble(deps, w, r)
	if !ok {
		return
	}
	created, err := deps.Assistant.CreateSession(r.Context(), tenantID)
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(created))
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	tenantID, ok := sessionPreamble(deps, w, r)
	if !ok {
		return
	}
	found, err := deps.Assistant.GetSession(r.Context(), tenantID, r.PathValue("session_id"))
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(found))
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	tenantID, ok := sessionPreamble(deps, w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("session_id")
	if err := deps.Assistant.DeleteSession(r.Context(), tenantID, sessionID); err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "deleted": true})
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	tenantID, ok := sessionPreamble(deps, w, r)
	if !ok {
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	ctx := r.Context()
	if deps.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.TurnTimeout)
		defer cancel()
	}
	reply, err := deps.Assistant.Ask(ctx, tenantID, r.PathValue("session_id"), request.Question)
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// handleExport streams the session's last result set as a file download.
func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	tenantID, ok := sessionPreamble(deps, w, r)
	if !ok {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}

	found, err := deps.Assistant.GetSession(r.Context(), tenantID, r.PathValue("session_id"))
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	if found.LastResult == nil {
		writeError(r.Context(), w, http.StatusNotFound, "NO_RESULT", "session has no executed query to export", false, nil)
		return
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, format, found.LastResult.Columns, found.LastResult.Rows); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode export", false, map[string]any{"details": err.Error()})
		return
	}
	fileName := storage.ExportFileName(found.LastResult.At, string(format))
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func sessionPreamble(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, bool) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant dependency is not configured", false, nil)
		return "", false
	}
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return "", false
	}
	return tenantID, true
}

func tenantFromRequest(r *http.Request) (string, error) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if strings.TrimSpace(identity.TenantID) != "" {
			return identity.TenantID, nil
		}
	}
	tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	if tenantID == "" {
		return "", fmt.Errorf("tenant context is required")
	}
	return tenantID, nil
}

func writeSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	details := map[string]any{"details": err.Error()}
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, nil)
	case errors.Is(err, assistant.ErrEmptyQuestion):
		writeError(ctx, w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "TURN_TIMEOUT", "turn did not finish in time", true, details)
	case errors.Is(err, query.ErrNotReadOnly):
		writeError(ctx, w, http.StatusUnprocessableEntity, "SQL_NOT_ALLOWED", "generated SQL was not a read-only query", false, details)
	case errors.Is(err, query.ErrRestricted):
		writeError(ctx, w, http.StatusUnprocessableEntity, "SQL_NOT_ALLOWED", "generated SQL references a restricted object", false, details)
	case errors.Is(err, assistant.ErrGeneration):
		writeError(ctx, w, http.StatusBadGateway, "SQL_GENERATION_FAILED", "failed to generate SQL for the question", true, details)
	case errors.Is(err, assistant.ErrExecution):
		writeError(ctx, w, http.StatusUnprocessableEntity, "QUERY_EXECUTION_FAILED", "generated SQL failed to execute", false, details)
	case errors.Is(err, assistant.ErrAnswer):
		writeError(ctx, w, http.StatusBadGateway, "ANSWER_GENERATION_FAILED", "failed to generate an answer", true, details)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", "request failed", true, details)
	}
}
