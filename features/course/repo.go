package course

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"folio/backend/internal/engine"
)

type Repository interface {
	Create(ctx context.Context, c *Course) error
	Get(ctx context.Context, id string) (*Course, error)
	List(ctx context.Context, bookID string) ([]Course, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	ListParts(ctx context.Context, courseID string) ([]Part, error)
	ReplaceOutline(ctx context.Context, outline engine.Outline) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, c *Course) error {
	query := `INSERT INTO courses (book_id, title, audience, target_minutes, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, c.BookID, c.Title, c.Audience, c.TargetMinutes, c.Status).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Course, error) {
	c := &Course{}
	query := `SELECT id, book_id, title, audience, target_minutes, total_minutes, status, created_at
		FROM courses WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.BookID, &c.Title, &c.Audience, &c.TargetMinutes, &c.TotalMinutes, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context, bookID string) ([]Course, error) {
	query := `SELECT id, book_id, title, audience, target_minutes, total_minutes, status, created_at
		FROM courses WHERE book_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.BookID, &c.Title, &c.Audience, &c.TargetMinutes, &c.TotalMinutes, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE courses SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	// Parts and sections cascade on the course foreign key.
	query := `DELETE FROM courses WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) ListParts(ctx context.Context, courseID string) ([]Part, error) {
	partQuery := `SELECT id, position, title, minutes FROM course_parts
		WHERE course_id = $1 ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, partQuery, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.Position, &p.Title, &p.Minutes); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range parts {
		sections, err := r.listSections(ctx, parts[i].ID)
		if err != nil {
			return nil, err
		}
		parts[i].Sections = sections
	}
	return parts, nil
}

func (r *PostgresRepo) listSections(ctx context.Context, partID string) ([]Section, error) {
	query := `SELECT id, position, title, minutes, objectives FROM course_sections
		WHERE part_id = $1 ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.Position, &s.Title, &s.Minutes, pq.Array(&s.Objectives)); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// ReplaceOutline swaps a course's committed outline in one transaction: the
// old tree goes away entirely, then the new one is inserted and the course
// totals are refreshed. A revision therefore never leaves a mixed outline.
func (r *PostgresRepo) ReplaceOutline(ctx context.Context, outline engine.Outline) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM course_sections WHERE part_id IN (SELECT id FROM course_parts WHERE course_id = $1)`,
		outline.CourseID); err != nil {
		return fmt.Errorf("delete sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM course_parts WHERE course_id = $1`, outline.CourseID); err != nil {
		return fmt.Errorf("delete parts: %w", err)
	}

	for i, part := range outline.Parts {
		var partID string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO course_parts (course_id, position, title, minutes) VALUES ($1, $2, $3, $4) RETURNING id`,
			outline.CourseID, i+1, part.Title, part.Minutes).Scan(&partID)
		if err != nil {
			return fmt.Errorf("insert part %d: %w", i+1, err)
		}

		for j, section := range part.Sections {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO course_sections (part_id, position, title, minutes, objectives) VALUES ($1, $2, $3, $4, $5)`,
				partID, j+1, section.Title, section.Minutes, pq.Array(section.Objectives)); err != nil {
				return fmt.Errorf("insert section %d.%d: %w", i+1, j+1, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET total_minutes = $1, updated_at = NOW() WHERE id = $2`,
		outline.TotalMinutes, outline.CourseID); err != nil {
		return fmt.Errorf("update course totals: %w", err)
	}

	return tx.Commit()
}
