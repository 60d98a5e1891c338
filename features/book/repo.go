package book

import (
	"context"
	"database/sql"

	"folio/backend/internal/ingest"
)

type Repository interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Save(ctx context.Context, b *Book) error
	List(ctx context.Context) ([]Book, error)
	Get(ctx context.Context, id string) (*Book, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdatePageCount(ctx context.Context, id string, pages int) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	ListChapters(ctx context.Context, bookID string) ([]Chapter, error)
	ListFigures(ctx context.Context, bookID string) ([]Figure, error)
	GetCover(ctx context.Context, bookID string) ([]byte, string, error)

	// Catalog side used by the ingestion pipeline.
	UpsertChapter(ctx context.Context, bookID string, ch ingest.Chapter) error
	SaveFigures(ctx context.Context, figures []ingest.Figure) error
	FigureHashes(ctx context.Context, bookID string) (map[string]bool, error)
	DeleteBookContent(ctx context.Context, bookID string) error
	SetCover(ctx context.Context, bookID string, image []byte, format string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM books WHERE content_hash = $1 AND deleted_at IS NULL)`
	if err := r.db.QueryRowContext(ctx, query, hash).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) Save(ctx context.Context, b *Book) error {
	query := `INSERT INTO books (title, author, file_path, content_hash, status) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, b.Title, b.Author, b.FilePath, b.ContentHash, b.Status).Scan(&b.ID, &b.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]Book, error) {
	query := `SELECT id, title, author, status, page_count, overview, cover_image IS NOT NULL, created_at FROM books WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Status, &b.PageCount, &b.Overview, &b.HasCover, &b.CreatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Book, error) {
	b := &Book{}
	query := `SELECT id, title, author, file_path, status, page_count, overview, cover_image IS NOT NULL, created_at FROM books WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Title, &b.Author, &b.FilePath, &b.Status, &b.PageCount, &b.Overview, &b.HasCover, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE books SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *PostgresRepo) UpdatePageCount(ctx context.Context, id string, pages int) error {
	query := `UPDATE books SET page_count = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, pages, id)
	return err
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE books SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM books WHERE deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) ListChapters(ctx context.Context, bookID string) ([]Chapter, error) {
	query := `SELECT id, book_id, number, title, page_start, page_end FROM chapters WHERE book_id = $1 ORDER BY number`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []Chapter
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.ID, &ch.BookID, &ch.Number, &ch.Title, &ch.PageStart, &ch.PageEnd); err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

func (r *PostgresRepo) ListFigures(ctx context.Context, bookID string) ([]Figure, error) {
	query := `SELECT id, book_id, page_number, format, width, height, caption, description, model FROM book_figures WHERE book_id = $1 ORDER BY page_number`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var figures []Figure
	for rows.Next() {
		var f Figure
		if err := rows.Scan(&f.ID, &f.BookID, &f.PageNumber, &f.Format, &f.Width, &f.Height, &f.Caption, &f.Description, &f.Model); err != nil {
			return nil, err
		}
		figures = append(figures, f)
	}
	return figures, rows.Err()
}

func (r *PostgresRepo) GetCover(ctx context.Context, bookID string) ([]byte, string, error) {
	var image []byte
	var format string
	query := `SELECT cover_image, cover_format FROM books WHERE id = $1 AND cover_image IS NOT NULL AND deleted_at IS NULL`
	if err := r.db.QueryRowContext(ctx, query, bookID).Scan(&image, &format); err != nil {
		return nil, "", err
	}
	return image, format, nil
}

func (r *PostgresRepo) UpsertChapter(ctx context.Context, bookID string, ch ingest.Chapter) error {
	query := `INSERT INTO chapters (book_id, number, title, page_start, page_end)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (book_id, number) DO UPDATE SET title = EXCLUDED.title, page_start = EXCLUDED.page_start, page_end = EXCLUDED.page_end`
	_, err := r.db.ExecContext(ctx, query, bookID, ch.Number, ch.Title, ch.PageStart, ch.PageEnd)
	return err
}

func (r *PostgresRepo) SaveFigures(ctx context.Context, figures []ingest.Figure) error {
	query := `INSERT INTO book_figures (book_id, page_number, image, format, width, height, caption, description, image_hash, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (book_id, image_hash) DO NOTHING`
	for _, f := range figures {
		if _, err := r.db.ExecContext(ctx, query, f.BookID, f.PageNumber, f.Image, f.Format, f.Width, f.Height, f.Caption, f.Description, f.ImageHash, f.Model); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) FigureHashes(ctx context.Context, bookID string) (map[string]bool, error) {
	query := `SELECT image_hash FROM book_figures WHERE book_id = $1`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := map[string]bool{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = true
	}
	return hashes, rows.Err()
}

func (r *PostgresRepo) DeleteBookContent(ctx context.Context, bookID string) error {
	for _, query := range []string{
		`DELETE FROM chapters WHERE book_id = $1`,
		`DELETE FROM book_figures WHERE book_id = $1`,
		`DELETE FROM chapter_summaries WHERE book_id = $1`,
	} {
		if _, err := r.db.ExecContext(ctx, query, bookID); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) SetCover(ctx context.Context, bookID string, image []byte, format string) error {
	query := `UPDATE books SET cover_image = $1, cover_format = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, image, format, bookID)
	return err
}
