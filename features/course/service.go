package course

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"folio/backend/internal/engine"
)

// SummarySource provides the chapter summaries that ground an outline.
type SummarySource interface {
	SummaryTexts(ctx context.Context, bookID string) ([]string, error)
}

type Service struct {
	repo      Repository
	summaries SummarySource
	exec      *engine.Executor
	loopLimit int
}

func NewService(repo Repository, summaries SummarySource, exec *engine.Executor, loopLimit int) *Service {
	return &Service{repo: repo, summaries: summaries, exec: exec, loopLimit: loopLimit}
}

// GenerateRequest describes a new course to build from a book.
type GenerateRequest struct {
	BookID        string `json:"book_id"`
	Title         string `json:"title"`
	Audience      string `json:"audience"`
	TargetMinutes int    `json:"target_minutes"`
}

// Generate creates the course row and drives the outline workflow to a
// committed outline.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Detail, error) {
	if req.TargetMinutes <= 0 {
		return nil, fmt.Errorf("target_minutes must be positive")
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	texts, err := s.summaries.SummaryTexts(ctx, req.BookID)
	if err != nil {
		return nil, fmt.Errorf("load chapter summaries: %w", err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("book %s has no chapter summaries yet", req.BookID)
	}

	c := &Course{
		BookID:        req.BookID,
		Title:         req.Title,
		Audience:      req.Audience,
		TargetMinutes: req.TargetMinutes,
		Status:        StatusGenerating,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	return s.run(ctx, c, engine.CourseRequest{
		CourseID:      c.ID,
		BookID:        c.BookID,
		Title:         c.Title,
		Audience:      c.Audience,
		TargetMinutes: c.TargetMinutes,
		Summaries:     texts,
	})
}

// Revise regenerates a course's outline against a revision note. The new
// outline fully replaces the old one.
func (s *Service) Revise(ctx context.Context, courseID, note string) (*Detail, error) {
	c, err := s.repo.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}

	parts, err := s.repo.ListParts(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load current outline: %w", err)
	}

	texts, err := s.summaries.SummaryTexts(ctx, c.BookID)
	if err != nil {
		return nil, fmt.Errorf("load chapter summaries: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, courseID, StatusGenerating); err != nil {
		return nil, err
	}

	return s.run(ctx, c, engine.CourseRequest{
		CourseID:      c.ID,
		BookID:        c.BookID,
		Title:         c.Title,
		Audience:      c.Audience,
		TargetMinutes: c.TargetMinutes,
		Summaries:     texts,
		PriorOutline:  renderOutline(parts),
		RevisionNote:  note,
	})
}

func (s *Service) run(ctx context.Context, c *Course, req engine.CourseRequest) (*Detail, error) {
	state, commands := engine.NewCourse(req)
	final, err := engine.Run(ctx, s.exec, state, commands, engine.CourseState.Step, s.loopLimit)
	if err == nil && final.Failed() {
		err = fmt.Errorf("%s", final.Err)
	}
	if err != nil {
		if statusErr := s.repo.UpdateStatus(ctx, c.ID, StatusFailed); statusErr != nil {
			slog.WarnContext(ctx, "failed to mark course failed", "course_id", c.ID, "error", statusErr)
		}
		return nil, fmt.Errorf("outline workflow: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, c.ID, StatusReady); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "course outline committed",
		"course_id", c.ID,
		"book_id", c.BookID,
		"total_minutes", final.TotalMinutes,
		"reviewed", final.Reviewed,
		"model", final.Model)

	return s.Get(ctx, c.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	parts, err := s.repo.ListParts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Course: *c, Parts: parts}, nil
}

func (s *Service) List(ctx context.Context, bookID string) ([]Course, error) {
	return s.repo.List(ctx, bookID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// renderOutline turns the stored tree back into the text format the outline
// workflow reads and writes.
func renderOutline(parts []Part) string {
	var b strings.Builder
	for i, p := range parts {
		fmt.Fprintf(&b, "Part %d: %s (%d min)\n", i+1, p.Title, p.Minutes)
		for _, sec := range p.Sections {
			fmt.Fprintf(&b, "- Section: %s (%d min)\n", sec.Title, sec.Minutes)
			for _, obj := range sec.Objectives {
				fmt.Fprintf(&b, "  * %s\n", obj)
			}
		}
		if i+1 < len(parts) {
			b.WriteString("\n")
		}
	}
	return b.String()
}
