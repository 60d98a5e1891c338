package chat

import "time"

// Session is one conversation scoped to a single book.
type Session struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Detail is a session with its full transcript.
type Detail struct {
	Session  Session   `json:"session"`
	Messages []Message `json:"messages"`
}
