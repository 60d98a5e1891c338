package summary

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"folio/backend/internal/engine"
)

type Repository interface {
	SaveChapterSummary(ctx context.Context, s engine.ChapterSummary) error
	SaveOverview(ctx context.Context, bookID, overview string) error
	ListByBook(ctx context.Context, bookID string) ([]Summary, error)
	SummaryTexts(ctx context.Context, bookID string) ([]string, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// SaveChapterSummary upserts on (book_id, chapter_number) so a re-run
// replaces the previous attempt for that chapter.
func (r *PostgresRepo) SaveChapterSummary(ctx context.Context, s engine.ChapterSummary) error {
	query := `INSERT INTO chapter_summaries (book_id, chapter_number, title, summary, key_points, fallback, failed, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (book_id, chapter_number) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			key_points = EXCLUDED.key_points,
			fallback = EXCLUDED.fallback,
			failed = EXCLUDED.failed,
			model = EXCLUDED.model,
			updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query,
		s.BookID, s.ChapterNumber, s.Title, s.Summary, pq.Array(s.KeyPoints), s.Fallback, s.Failed, s.Model)
	return err
}

func (r *PostgresRepo) SaveOverview(ctx context.Context, bookID, overview string) error {
	query := `UPDATE books SET overview = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, overview, bookID)
	return err
}

func (r *PostgresRepo) ListByBook(ctx context.Context, bookID string) ([]Summary, error) {
	query := `SELECT id, book_id, chapter_number, title, summary, key_points, fallback, failed, model, created_at
		FROM chapter_summaries WHERE book_id = $1 ORDER BY chapter_number ASC`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.BookID, &s.ChapterNumber, &s.Title, &s.Summary,
			pq.Array(&s.KeyPoints), &s.Fallback, &s.Failed, &s.Model, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// SummaryTexts renders the usable summaries as prompt-ready lines, skipping
// chapters whose whole repair chain failed.
func (r *PostgresRepo) SummaryTexts(ctx context.Context, bookID string) ([]string, error) {
	summaries, err := r.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, s := range summaries {
		if s.Failed {
			continue
		}
		if s.Title != "" {
			texts = append(texts, fmt.Sprintf("Chapter %d, %q: %s", s.ChapterNumber, s.Title, s.Summary))
		} else {
			texts = append(texts, fmt.Sprintf("Chapter %d: %s", s.ChapterNumber, s.Summary))
		}
	}
	return texts, nil
}
