package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"folio/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		BookID string `json:"book_id"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "INVALID_REQUEST", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.BookID == "" {
		h.writeError(ctx, w, "INVALID_REQUEST", "book_id is required", http.StatusBadRequest)
		return
	}

	session, err := h.service.CreateSession(ctx, req.BookID, req.Title)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session", "book_id", req.BookID, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeData(ctx, w, http.StatusCreated, session)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bookID := r.URL.Query().Get("bookId")
	if bookID == "" {
		h.writeError(ctx, w, "INVALID_REQUEST", "bookId query parameter is required", http.StatusBadRequest)
		return
	}

	sessions, err := h.service.ListSessions(ctx, bookID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list sessions", "book_id", bookID, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": sessions,
		"meta": map[string]int{"count": len(sessions)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	detail, err := h.service.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Session not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get session", "id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if detail.Messages == nil {
		detail.Messages = []Message{}
	}

	h.writeData(ctx, w, http.StatusOK, detail)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.DeleteSession(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to delete session", "id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeData(ctx, w, http.StatusOK, "session deleted")
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "INVALID_REQUEST", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		h.writeError(ctx, w, "INVALID_REQUEST", "question is required", http.StatusBadRequest)
		return
	}

	answer, err := h.service.Ask(ctx, id, req.Question)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Session not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to answer question", "session_id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeData(ctx, w, http.StatusOK, answer)
}

func (h *Handler) writeData(ctx context.Context, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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
