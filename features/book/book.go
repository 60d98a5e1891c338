package book

import "time"

// Book statuses follow the ingestion lifecycle.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "completed_with_errors"
	StatusFailed     = "failed"
)

type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	FilePath    string    `json:"-"`
	ContentHash string    `json:"-"`
	Status      string    `json:"status"`
	PageCount   int       `json:"page_count"`
	Overview    string    `json:"overview,omitempty"`
	HasCover    bool      `json:"has_cover"`
	CreatedAt   time.Time `json:"created_at"`
}

type Chapter struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
}

// Figure is the catalog row for one described image; the raw bytes stay in
// the row but are not serialized.
type Figure struct {
	ID          string `json:"id"`
	BookID      string `json:"book_id"`
	PageNumber  int    `json:"page_number"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Caption     string `json:"caption,omitempty"`
	Description string `json:"description"`
	ImageHash   string `json:"-"`
	Model       string `json:"model,omitempty"`
}

// Detail is the single-book view.
type Detail struct {
	Book     Book      `json:"book"`
	Chapters []Chapter `json:"chapters"`
	Figures  []Figure  `json:"figures"`
}
