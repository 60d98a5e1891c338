package config

const (
	// TopicIngestBook is the NSQ topic for book ingestion tasks.
	TopicIngestBook = "ingest.book"
)
