package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"dochat/internal/middleware"
	"dochat/internal/pipeline"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ownerID identifies the caller. Authentication lives in front of this
// service; the gateway injects the header.
func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Owner-ID"))
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if r.Body != nil {
		// An empty body is fine; the title defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	sess, err := h.service.CreateSession(r.Context(), owner, req.Title)
	if err != nil {
		slog.Error("failed to create session", "error", err, "owner_id", owner)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": sess}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), owner)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": sessions,
		"meta": map[string]int{"count": len(sessions)},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	sess, history, err := h.service.GetSession(r.Context(), owner, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.writeError(r.Context(), w, "NOT_FOUND", "Session not found", http.StatusNotFound)
		case errors.Is(err, ErrForbidden):
			h.writeError(r.Context(), w, "FORBIDDEN", "Session belongs to another owner", http.StatusForbidden)
		default:
			h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if history == nil {
		history = []pipeline.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{
			"session":  sess,
			"messages": history,
		},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "message is required", http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	resp, err := h.service.Send(r.Context(), owner, id, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.writeError(r.Context(), w, "NOT_FOUND", "Session not found", http.StatusNotFound)
		case errors.Is(err, ErrForbidden):
			h.writeError(r.Context(), w, "FORBIDDEN", "Session belongs to another owner", http.StatusForbidden)
		default:
			h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
