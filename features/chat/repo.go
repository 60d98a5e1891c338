package chat

import (
	"context"
	"database/sql"
	"fmt"

	"folio/backend/internal/engine"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	ListSessions(ctx context.Context, bookID string) ([]Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	SaveMessages(ctx context.Context, sessionID string, messages []engine.ChatMessage) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateSession(ctx context.Context, s *Session) error {
	query := `INSERT INTO chat_sessions (book_id, title) VALUES ($1, $2) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, s.BookID, s.Title).Scan(&s.ID, &s.CreatedAt)
}

func (r *PostgresRepo) ListSessions(ctx context.Context, bookID string) ([]Session, error) {
	query := `SELECT id, book_id, title, created_at FROM chat_sessions WHERE book_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.BookID, &s.Title, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *PostgresRepo) GetSession(ctx context.Context, id string) (*Session, error) {
	s := &Session{}
	query := `SELECT id, book_id, title, created_at FROM chat_sessions WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.BookID, &s.Title, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) DeleteSession(ctx context.Context, id string) error {
	// chat_messages cascades on the session foreign key.
	query := `DELETE FROM chat_sessions WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	query := `SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SaveMessages appends one chat turn atomically. Both rows land or neither
// does, so a transcript never shows a question without its answer.
func (r *PostgresRepo) SaveMessages(ctx context.Context, sessionID string, messages []engine.ChatMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO chat_messages (session_id, role, content) VALUES ($1, $2, $3)`
	for _, m := range messages {
		if _, err := tx.ExecContext(ctx, query, sessionID, m.Role, m.Content); err != nil {
			return fmt.Errorf("insert %s message: %w", m.Role, err)
		}
	}
	return tx.Commit()
}
