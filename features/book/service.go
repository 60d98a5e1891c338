package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"folio/backend/internal/config"
	"folio/backend/internal/middleware"
	"folio/backend/internal/worker"
)

// ErrDuplicate is returned for an upload whose bytes match an existing book.
var ErrDuplicate = errors.New("duplicate book")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// ChunkStore is the vector-side cleanup hook.
type ChunkStore interface {
	DeleteByBook(ctx context.Context, bookID string) error
}

type Service struct {
	repo   Repository
	pub    EventPublisher
	chunks ChunkStore
}

func NewService(repo Repository, pub EventPublisher, chunks ChunkStore) *Service {
	return &Service{repo: repo, pub: pub, chunks: chunks}
}

// Upload registers the stored file and queues its ingestion.
func (s *Service) Upload(ctx context.Context, path, hash, title, author string) (*Book, error) {
	exists, err := s.repo.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}

	b := &Book{
		Title:       title,
		Author:      author,
		FilePath:    path,
		ContentHash: hash,
		Status:      StatusPending,
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save book: %w", err)
	}

	if err := s.publishIngest(ctx, b.ID, path, false); err != nil {
		// The record exists; ingestion can be retried via reingest.
		slog.ErrorContext(ctx, "failed to queue ingestion", "book_id", b.ID, "error", err)
		if statusErr := s.repo.UpdateStatus(ctx, b.ID, StatusFailed); statusErr != nil {
			slog.WarnContext(ctx, "failed to mark book failed", "book_id", b.ID, "error", statusErr)
		}
		return nil, fmt.Errorf("queue ingestion: %w", err)
	}

	slog.InfoContext(ctx, "book queued for ingestion", "book_id", b.ID, "title", title)
	return b, nil
}

// Reingest queues a full rebuild of one book's derived content.
func (s *Service) Reingest(ctx context.Context, id string) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.publishIngest(ctx, b.ID, b.FilePath, true); err != nil {
		return fmt.Errorf("queue reingestion: %w", err)
	}
	return s.repo.UpdateStatus(ctx, b.ID, StatusPending)
}

func (s *Service) publishIngest(ctx context.Context, bookID, path string, rebuild bool) error {
	payload := worker.IngestBookPayload{
		BookID:        bookID,
		Path:          path,
		Rebuild:       rebuild,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.pub.Publish(config.TopicIngestBook, body)
}

func (s *Service) List(ctx context.Context) ([]Book, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chapters, err := s.repo.ListChapters(ctx, id)
	if err != nil {
		return nil, err
	}
	figures, err := s.repo.ListFigures(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Book: *b, Chapters: chapters, Figures: figures}, nil
}

func (s *Service) Cover(ctx context.Context, id string) ([]byte, string, error) {
	return s.repo.GetCover(ctx, id)
}

// Delete removes a book and its derived content on both stores.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.chunks.DeleteByBook(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.repo.DeleteBookContent(ctx, id); err != nil {
		return fmt.Errorf("delete catalog content: %w", err)
	}
	return s.repo.SoftDelete(ctx, id)
}
