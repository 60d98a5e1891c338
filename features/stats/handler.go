package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"folio/backend/internal/middleware"
)

// Counter reports how many rows a store holds.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// ChunkCounter reports stored vector chunks, optionally per book.
type ChunkCounter interface {
	Count(ctx context.Context, bookID string) (int, error)
}

type Stats struct {
	Books      int `json:"books"`
	Chunks     int `json:"chunks"`
	FailedJobs int `json:"failed_jobs"`
}

type Handler struct {
	books  Counter
	jobs   Counter
	chunks ChunkCounter
}

func NewHandler(books, jobs Counter, chunks ChunkCounter) *Handler {
	return &Handler{books: books, jobs: jobs, chunks: chunks}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var stats Stats
	var err error

	if stats.Books, err = h.books.Count(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to count books", "error", err)
		h.writeError(ctx, w, err)
		return
	}
	if stats.FailedJobs, err = h.jobs.Count(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to count failed jobs", "error", err)
		h.writeError(ctx, w, err)
		return
	}
	if stats.Chunks, err = h.chunks.Count(ctx, ""); err != nil {
		// The vector store being down should not blank the whole dashboard.
		slog.WarnContext(ctx, "failed to count chunks", "error", err)
		stats.Chunks = -1
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": stats}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
