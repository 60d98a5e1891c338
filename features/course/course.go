package course

import "time"

const (
	StatusGenerating = "generating"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Course is one timed course generated from a book.
type Course struct {
	ID            string    `json:"id"`
	BookID        string    `json:"book_id"`
	Title         string    `json:"title"`
	Audience      string    `json:"audience,omitempty"`
	TargetMinutes int       `json:"target_minutes"`
	TotalMinutes  int       `json:"total_minutes"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type Part struct {
	ID       string    `json:"id"`
	Position int       `json:"position"`
	Title    string    `json:"title"`
	Minutes  int       `json:"minutes"`
	Sections []Section `json:"sections"`
}

type Section struct {
	ID         string   `json:"id"`
	Position   int      `json:"position"`
	Title      string   `json:"title"`
	Minutes    int      `json:"minutes"`
	Objectives []string `json:"objectives,omitempty"`
}

// Detail is a course with its committed outline.
type Detail struct {
	Course Course `json:"course"`
	Parts  []Part `json:"parts"`
}
