// Package engine is the generation core: pure reducers describe what I/O
// they need as Commands, and an Executor performs exactly that I/O and
// hands back tagged Results. Reducers never touch the network or the
// database, which keeps every workflow replayable and testable with plain
// value fixtures.
package engine

import "context"

// Kind identifies the operation a Command requests.
type Kind string

const (
	KindEmbed        Kind = "embed"
	KindGenerate     Kind = "generate"
	KindSearch       Kind = "search"
	KindSaveMessages Kind = "save_messages"
	KindSaveOutline  Kind = "save_outline"
	KindSaveSummary  Kind = "save_summary"
	KindSaveOverview Kind = "save_overview"
)

// Command is one I/O request emitted by a reducer. Task is the routing tag:
// the Result produced for this Command carries the same tag, and reducers
// only read results whose tags they are awaiting.
type Command struct {
	Kind Kind
	Task string

	// KindEmbed
	Texts []string

	// KindGenerate
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32

	// KindSearch
	Query SearchQuery

	// Persistence payloads.
	SessionID string
	BookID    string
	Messages  []ChatMessage
	Outline   *Outline
	Summary   *ChapterSummary
	Overview  string
}

// Result is the Executor's answer to one Command.
type Result struct {
	Task string
	Err  error

	Vectors       [][]float32
	Text          string
	Model         string
	ModelSwitched bool

	Hits []SearchHit
}

// SearchQuery describes one vector search.
type SearchQuery struct {
	BookID        string
	Vector        []float32
	Kinds         []string
	Limit         int
	MinSimilarity float64
}

// SearchHit is one ranked chunk. Similarity is in [0,1], 1 = identical.
type SearchHit struct {
	Content       string
	Kind          string
	ChapterNumber int
	ChapterTitle  string
	SectionTitle  string
	PageStart     int
	PageEnd       int
	FigureID      string
	Similarity    float64
}

// ChatMessage is one turn of a chat session.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is what the engine needs from a completion backend.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32
}

// Generation is a completion plus the metadata the workflows surface.
type Generation struct {
	Text          string
	Model         string
	ModelSwitched bool
	PromptTokens  int
	OutputTokens  int
}

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator runs one completion call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// Searcher runs one vector search.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchHit, error)
}

// MessageStore persists chat turns.
type MessageStore interface {
	SaveMessages(ctx context.Context, sessionID string, messages []ChatMessage) error
}

// OutlineStore persists a committed course outline, replacing any prior one.
type OutlineStore interface {
	ReplaceOutline(ctx context.Context, outline Outline) error
}

// SummaryStore persists per-chapter summaries and the book overview.
type SummaryStore interface {
	SaveChapterSummary(ctx context.Context, summary ChapterSummary) error
	SaveOverview(ctx context.Context, bookID, overview string) error
}
