package job

import (
	"encoding/json"
	"time"
)

// Job is one dead-lettered ingestion message, kept for manual retry.
type Job struct {
	ID        string          `json:"id"`
	BookID    string          `json:"book_id"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
