package worker

// IngestBookPayload is the message body on the ingest.book topic.
type IngestBookPayload struct {
	BookID      string `json:"book_id"`
	Path        string `json:"path"`
	SkipFigures bool   `json:"skip_figures,omitempty"`
	Rebuild     bool   `json:"rebuild,omitempty"`

	CorrelationID string `json:"correlation_id"`
}
