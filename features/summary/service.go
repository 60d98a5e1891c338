package summary

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"folio/backend/features/book"
	"folio/backend/internal/engine"
	"folio/backend/internal/ingest"
)

// BookSource provides the book row and its chapter ranges.
type BookSource interface {
	Get(ctx context.Context, id string) (*book.Book, error)
	ListChapters(ctx context.Context, bookID string) ([]book.Chapter, error)
}

type Service struct {
	repo      Repository
	books     BookSource
	extractor ingest.Extractor
	exec      *engine.Executor

	readFile func(string) ([]byte, error)
}

func NewService(repo Repository, books BookSource, extractor ingest.Extractor, exec *engine.Executor) *Service {
	return &Service{
		repo:      repo,
		books:     books,
		extractor: extractor,
		exec:      exec,
		readFile:  os.ReadFile,
	}
}

func (s *Service) List(ctx context.Context, bookID string) ([]Summary, error) {
	return s.repo.ListByBook(ctx, bookID)
}

// Generate summarizes every chapter of a book and writes the book overview.
// Chapters whose output cannot be recovered are recorded as failed and the
// run continues past them.
func (s *Service) Generate(ctx context.Context, bookID string) (*Report, error) {
	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	chapters, err := s.books.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("book %s has no chapters; ingest it first", bookID)
	}

	inputs, err := s.chapterInputs(ctx, b, chapters)
	if err != nil {
		return nil, err
	}

	state, commands := engine.NewSummary(engine.SummaryRequest{BookID: bookID, Chapters: inputs})

	// Worst case per chapter is three iterations: summarize, repair, save.
	// The overview adds a few more on top.
	limit := 3*len(inputs) + 8
	final, err := engine.Run(ctx, s.exec, state, commands, engine.SummaryState.Step, limit)
	if err != nil {
		return nil, fmt.Errorf("summary workflow: %w", err)
	}
	if final.Failed() {
		return nil, fmt.Errorf("summary workflow: %s", final.Err)
	}

	slog.InfoContext(ctx, "book summarized",
		"book_id", bookID,
		"chapters", len(inputs),
		"failed_chapters", final.FailedChapters,
		"overview_fallback", final.OverviewFallback,
		"model", final.Model)

	report := &Report{
		BookID:           bookID,
		Summaries:        make([]Summary, len(final.Summaries)),
		FailedChapters:   final.FailedChapters,
		Overview:         final.Overview,
		OverviewFallback: final.OverviewFallback,
		Model:            final.Model,
	}
	for i, cs := range final.Summaries {
		report.Summaries[i] = Summary{
			BookID:        cs.BookID,
			ChapterNumber: cs.ChapterNumber,
			Title:         cs.Title,
			Summary:       cs.Summary,
			KeyPoints:     cs.KeyPoints,
			Fallback:      cs.Fallback,
			Failed:        cs.Failed,
			Model:         cs.Model,
		}
	}
	return report, nil
}

// chapterInputs re-extracts the page text from the stored file and slices it
// by each chapter's page range.
func (s *Service) chapterInputs(ctx context.Context, b *book.Book, chapters []book.Chapter) ([]engine.ChapterInput, error) {
	data, err := s.readFile(b.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read book file: %w", err)
	}

	pages, err := s.extractor.ExtractPages(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}

	inputs := make([]engine.ChapterInput, 0, len(chapters))
	for _, ch := range chapters {
		start, end := ch.PageStart, ch.PageEnd
		if start < 1 {
			start = 1
		}
		if end > len(pages) {
			end = len(pages)
		}
		if start > end {
			continue
		}
		text := strings.TrimSpace(strings.Join(pages[start-1:end], "\n\n"))
		if text == "" {
			continue
		}
		inputs = append(inputs, engine.ChapterInput{Number: ch.Number, Title: ch.Title, Text: text})
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no chapter text could be extracted")
	}
	return inputs, nil
}
