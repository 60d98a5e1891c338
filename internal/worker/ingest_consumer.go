package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"folio/backend/features/job"
	"folio/backend/internal/ingest"
	"folio/backend/internal/middleware"
)

// Ingestor runs one book ingestion end to end.
type Ingestor interface {
	Ingest(ctx context.Context, data []byte, bookID string, opts ingest.Options) (*ingest.Result, error)
}

// BookTracker is the catalog surface the consumer needs.
type BookTracker interface {
	UpdateStatus(ctx context.Context, id, status string) error
	UpdatePageCount(ctx context.Context, id string, pages int) error
}

type IngestConsumer struct {
	pipeline Ingestor
	books    BookTracker
	jobs     job.Repository

	// readFile is swapped in tests.
	readFile func(string) ([]byte, error)
}

func NewIngestConsumer(pipeline Ingestor, books BookTracker, jobs job.Repository) *IngestConsumer {
	return &IngestConsumer{
		pipeline: pipeline,
		books:    books,
		jobs:     jobs,
		readFile: os.ReadFile,
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestBookPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry.
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if payload.BookID == "" || payload.Path == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "book_id", payload.BookID, "path", payload.Path)
		return nil
	}

	data, err := h.readFile(payload.Path)
	if err != nil {
		// The file is gone; retrying won't bring it back.
		h.deadLetter(ctx, m.Body, payload.BookID, fmt.Sprintf("read file: %v", err))
		return nil
	}

	if err := h.books.UpdateStatus(ctx, payload.BookID, "processing"); err != nil {
		slog.WarnContext(ctx, "failed to mark book processing", "book_id", payload.BookID, "error", err)
	}

	res, err := h.pipeline.Ingest(ctx, data, payload.BookID, ingest.Options{
		SkipFigures: payload.SkipFigures,
		Rebuild:     payload.Rebuild,
	})
	if err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "book_id", payload.BookID, "error", err)
		if statusErr := h.books.UpdateStatus(ctx, payload.BookID, "failed"); statusErr != nil {
			slog.WarnContext(ctx, "failed to mark book failed", "book_id", payload.BookID, "error", statusErr)
		}
		h.deadLetter(ctx, m.Body, payload.BookID, err.Error())
		return nil
	}

	if err := h.books.UpdatePageCount(ctx, payload.BookID, res.PageCount); err != nil {
		slog.WarnContext(ctx, "failed to record page count", "book_id", payload.BookID, "error", err)
	}
	if err := h.books.UpdateStatus(ctx, payload.BookID, res.Status); err != nil {
		slog.WarnContext(ctx, "failed to update book status", "book_id", payload.BookID, "error", err)
	}

	slog.InfoContext(ctx, "book ingested",
		"book_id", payload.BookID,
		"chunks_created", res.ChunksCreated,
		"figures_created", res.FiguresCreated,
		"status", res.Status)
	return nil
}

// deadLetter records the original message for manual retry.
func (h *IngestConsumer) deadLetter(ctx context.Context, body []byte, bookID, errMsg string) {
	failedJob := &job.Job{
		BookID:  bookID,
		Handler: "ingest-worker",
		Payload: json.RawMessage(body),
		Error:   errMsg,
	}
	if err := h.jobs.Save(ctx, failedJob); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "book_id", bookID, "error", err)
		return
	}
	slog.InfoContext(ctx, "saved failed job for retry", "job_id", failedJob.ID, "book_id", bookID)
}
