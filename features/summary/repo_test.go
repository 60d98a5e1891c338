package summary

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/backend/internal/engine"
)

func TestPostgresRepo_SaveChapterSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO chapter_summaries .+ ON CONFLICT \(book_id, chapter_number\) DO UPDATE`).
		WithArgs("book-1", 2, "Endings", "The book closes.", pq.Array([]string{"closure"}), false, false, "test-model").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	err = repo.SaveChapterSummary(context.Background(), engine.ChapterSummary{
		BookID:        "book-1",
		ChapterNumber: 2,
		Title:         "Endings",
		Summary:       "The book closes.",
		KeyPoints:     []string{"closure"},
		Model:         "test-model",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SaveOverview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE books SET overview`).
		WithArgs("A concise tour of the subject.", "book-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	require.NoError(t, repo.SaveOverview(context.Background(), "book-1", "A concise tour of the subject."))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SummaryTexts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "book_id", "chapter_number", "title", "summary", "key_points", "fallback", "failed", "model", "created_at"}).
		AddRow("s-1", "book-1", 1, "Beginnings", "It starts.", pq.Array([]string{}), false, false, "m", now).
		AddRow("s-2", "book-1", 2, "", "It continues.", pq.Array([]string{}), true, false, "m", now).
		AddRow("s-3", "book-1", 3, "Endings", "", pq.Array([]string{}), false, true, "m", now)

	mock.ExpectQuery(`SELECT .+ FROM chapter_summaries WHERE book_id`).
		WithArgs("book-1").
		WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	texts, err := repo.SummaryTexts(context.Background(), "book-1")
	require.NoError(t, err)

	// The failed chapter is omitted; the fallback one still counts.
	require.Len(t, texts, 2)
	assert.Equal(t, `Chapter 1, "Beginnings": It starts.`, texts[0])
	assert.Equal(t, "Chapter 2: It continues.", texts[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}
