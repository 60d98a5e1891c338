package chat

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/backend/internal/engine"
)

func TestPostgresRepo_CreateSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO chat_sessions`).
		WithArgs("book-1", "First chat").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("sess-1", now))

	repo := NewPostgresRepo(db)
	s := &Session{BookID: "book-1", Title: "First chat"}
	require.NoError(t, repo.CreateSession(context.Background(), s))

	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, now, s.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}).
		AddRow("m-1", "sess-1", "user", "What is chapter two about?", now).
		AddRow("m-2", "sess-1", "assistant", "It covers endings.", now)

	mock.ExpectQuery(`SELECT id, session_id, role, content, created_at FROM chat_messages`).
		WithArgs("sess-1").
		WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	messages, err := repo.ListMessages(context.Background(), "sess-1")
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "It covers endings.", messages[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SaveMessages(t *testing.T) {
	t.Run("Commits Both Rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO chat_messages`).
			WithArgs("sess-1", "user", "hello").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO chat_messages`).
			WithArgs("sess-1", "assistant", "hi").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewPostgresRepo(db)
		err = repo.SaveMessages(context.Background(), "sess-1", []engine.ChatMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls Back On Insert Failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO chat_messages`).
			WithArgs("sess-1", "user", "hello").
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		repo := NewPostgresRepo(db)
		err = repo.SaveMessages(context.Background(), "sess-1", []engine.ChatMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_DeleteSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM chat_sessions WHERE id = \$1`).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	require.NoError(t, repo.DeleteSession(context.Background(), "sess-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
