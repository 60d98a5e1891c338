package chat

import (
	"context"
	"fmt"
	"log/slog"

	"folio/backend/internal/engine"
)

// historyWindow bounds how many prior turns ground a new question.
const historyWindow = 20

type Service struct {
	repo      Repository
	exec      *engine.Executor
	loopLimit int
}

func NewService(repo Repository, exec *engine.Executor, loopLimit int) *Service {
	return &Service{repo: repo, exec: exec, loopLimit: loopLimit}
}

func (s *Service) CreateSession(ctx context.Context, bookID, title string) (*Session, error) {
	if title == "" {
		title = "New chat"
	}
	session := &Session{BookID: bookID, Title: title}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context, bookID string) ([]Session, error) {
	return s.repo.ListSessions(ctx, bookID)
}

func (s *Service) GetSession(ctx context.Context, id string) (*Detail, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Session: *session, Messages: messages}, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// Answer is the reply to one question, grounded in book passages.
type Answer struct {
	Answer        string            `json:"answer"`
	Citations     []engine.Citation `json:"citations"`
	Model         string            `json:"model"`
	ModelSwitched bool              `json:"model_switched,omitempty"`
}

// Ask runs one retrieval-augmented turn and persists it to the session.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.history(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state, commands := engine.NewChat(engine.ChatRequest{
		SessionID: sessionID,
		BookID:    session.BookID,
		Question:  question,
		History:   history,
	})

	final, err := engine.Run(ctx, s.exec, state, commands, engine.ChatState.Step, s.loopLimit)
	if err != nil {
		return nil, fmt.Errorf("chat workflow: %w", err)
	}
	if final.Failed() {
		return nil, fmt.Errorf("chat workflow: %s", final.Err)
	}

	slog.InfoContext(ctx, "chat turn answered",
		"session_id", sessionID,
		"book_id", session.BookID,
		"passages", len(final.Hits),
		"model", final.Model)

	return &Answer{
		Answer:        final.Answer,
		Citations:     final.Citations,
		Model:         final.Model,
		ModelSwitched: final.ModelSwitched,
	}, nil
}

func (s *Service) history(ctx context.Context, sessionID string) ([]engine.ChatMessage, error) {
	messages, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(messages) > historyWindow {
		messages = messages[len(messages)-historyWindow:]
	}
	history := make([]engine.ChatMessage, len(messages))
	for i, m := range messages {
		history[i] = engine.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return history, nil
}
