package ingest

type ChunkKind string

const (
	ChunkKindWindow  ChunkKind = "window"
	ChunkKindChapter ChunkKind = "chapter"
	ChunkKindFigure  ChunkKind = "figure"
)

// Chunk is one retrieval unit of book content. ContentHash is a pure
// function of Content and is the sole dedup key across ingestion runs.
type Chunk struct {
	BookID        string
	Kind          ChunkKind
	Content       string
	Embedding     []float32
	ChapterNumber int
	ChapterTitle  string
	SectionTitle  string
	PageStart     int
	PageEnd       int
	FigureID      string
	SegmentIndex  int
	SegmentTotal  int
	SegmentOffset int
	ContentHash   string
}

// Chapter is a detected chapter span, used for the chapter-document upsert.
type Chapter struct {
	Number    int
	Title     string
	PageStart int
	PageEnd   int
}

// Figure is one embedded image lifted out of a book.
type Figure struct {
	BookID      string
	PageNumber  int
	Image       []byte
	Format      string
	Width       int
	Height      int
	Caption     string
	ImageHash   string
	Description string
	Model       string
}
