package summary

import "time"

// Summary is one stored chapter summary row.
type Summary struct {
	ID            string    `json:"id"`
	BookID        string    `json:"book_id"`
	ChapterNumber int       `json:"chapter_number"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	KeyPoints     []string  `json:"key_points,omitempty"`
	Fallback      bool      `json:"fallback"`
	Failed        bool      `json:"failed"`
	Model         string    `json:"model,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Report is the outcome of one summarization run over a book.
type Report struct {
	BookID           string    `json:"book_id"`
	Summaries        []Summary `json:"summaries"`
	FailedChapters   int       `json:"failed_chapters"`
	Overview         string    `json:"overview"`
	OverviewFallback bool      `json:"overview_fallback,omitempty"`
	Model            string    `json:"model,omitempty"`
}
