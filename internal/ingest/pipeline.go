package ingest

import (
	"context"
	"fmt"
	"log/slog"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Describer produces a textual description of one embedded image.
type Describer interface {
	DescribeFigure(ctx context.Context, image []byte, format string, pageNumber int, caption string) (string, error)
}

// ChunkStore is the vector side of persistence.
type ChunkStore interface {
	ExistingHashes(ctx context.Context, bookID string) (map[string]bool, error)
	StoreChunks(ctx context.Context, chunks []Chunk) error
	DeleteByBook(ctx context.Context, bookID string) error
}

// Catalog is the relational side: chapter documents, figure records and
// book bookkeeping.
type Catalog interface {
	UpsertChapter(ctx context.Context, bookID string, ch Chapter) error
	SaveFigures(ctx context.Context, figures []Figure) error
	FigureHashes(ctx context.Context, bookID string) (map[string]bool, error)
	DeleteBookContent(ctx context.Context, bookID string) error
	SetCover(ctx context.Context, bookID string, image []byte, format string) error
}

type Config struct {
	EmbedConcurrency   int
	FigureConcurrency  int
	BatchBudget        int
	MaxChunkChars      int
	OverlapFraction    float64
	MinFigureDimension int
}

func (c Config) withDefaults() Config {
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if c.FigureConcurrency <= 0 {
		c.FigureConcurrency = DefaultFigureConcurrency
	}
	if c.BatchBudget <= 0 {
		c.BatchBudget = DefaultBatchBudget
	}
	if c.MinFigureDimension <= 0 {
		c.MinFigureDimension = DefaultMinFigureDimension
	}
	return c
}

type Options struct {
	SkipFigures bool
	Rebuild     bool
}

type Result struct {
	BookID         string `json:"book_id"`
	PageCount      int    `json:"page_count"`
	ChunksCreated  int    `json:"chunks_created"`
	FiguresCreated int    `json:"figures_created"`
	FailedBatches  int    `json:"failed_batches"`
	Status         string `json:"status"`
}

const (
	StatusCompleted = "completed"
	StatusPartial   = "completed_with_errors"
)

// Pipeline sequences one book ingestion: text extraction, chunk building,
// chapter upserts, batched embedding, and figure processing. Re-running it
// over identical content creates nothing new; the content-hash sets decide
// what is novel. The hash sets live on the calling goroutine; worker pools
// report outcomes instead of mutating them.
type Pipeline struct {
	extractor Extractor
	embedder  Embedder
	describer Describer
	chunks    ChunkStore
	catalog   Catalog
	cfg       Config
}

func NewPipeline(extractor Extractor, embedder Embedder, describer Describer, chunks ChunkStore, catalog Catalog, cfg Config) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		describer: describer,
		chunks:    chunks,
		catalog:   catalog,
		cfg:       cfg.withDefaults(),
	}
}

func (p *Pipeline) Ingest(ctx context.Context, data []byte, bookID string, opts Options) (*Result, error) {
	res := &Result{BookID: bookID, Status: StatusCompleted}

	if opts.Rebuild {
		slog.InfoContext(ctx, "rebuilding book content", "book_id", bookID)
		if err := p.chunks.DeleteByBook(ctx, bookID); err != nil {
			return nil, fmt.Errorf("delete chunks for rebuild: %w", err)
		}
		if err := p.catalog.DeleteBookContent(ctx, bookID); err != nil {
			return nil, fmt.Errorf("delete catalog content for rebuild: %w", err)
		}
	}

	pages, err := p.extractor.ExtractPages(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	res.PageCount = len(pages)

	build := BuildChunks(bookID, pages, ChunkerConfig{
		OverlapFraction: p.cfg.OverlapFraction,
		MaxChunkChars:   p.cfg.MaxChunkChars,
	})
	for _, ch := range build.Chapters {
		if err := p.catalog.UpsertChapter(ctx, bookID, ch); err != nil {
			return nil, fmt.Errorf("upsert chapter %d: %w", ch.Number, err)
		}
	}

	existing, err := p.chunks.ExistingHashes(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load existing hashes: %w", err)
	}

	novel := novelChunks(build.Chunks, existing)
	created, failed := p.embedAndStore(ctx, novel, existing)
	res.ChunksCreated += created
	res.FailedBatches += failed

	if !opts.SkipFigures {
		figCreated, figFailed, err := p.processFigures(ctx, data, bookID, existing)
		if err != nil {
			// Figures degrade the run, they do not abort it; text content is
			// already persisted at this point.
			slog.ErrorContext(ctx, "figure processing failed", "book_id", bookID, "error", err)
			res.Status = StatusPartial
		}
		res.FiguresCreated = figCreated
		res.FailedBatches += figFailed
	}

	if res.FailedBatches > 0 {
		res.Status = StatusPartial
	}

	slog.InfoContext(ctx, "ingestion finished",
		"book_id", bookID,
		"pages", len(pages),
		"chunks_created", res.ChunksCreated,
		"figures_created", res.FiguresCreated,
		"failed_batches", res.FailedBatches,
		"status", res.Status)
	return res, nil
}

func (p *Pipeline) processFigures(ctx context.Context, data []byte, bookID string, existingChunks map[string]bool) (created, failedBatches int, err error) {
	images, err := p.extractor.ExtractImages(ctx, data)
	if err != nil {
		return 0, 0, fmt.Errorf("extract figures: %w", err)
	}
	if len(images) == 0 {
		return 0, 0, nil
	}

	if cover := pickCover(images); cover != nil {
		if err := p.catalog.SetCover(ctx, bookID, cover.Data, cover.Format); err != nil {
			slog.WarnContext(ctx, "cover update failed", "book_id", bookID, "error", err)
		}
	}

	existingFigs, err := p.catalog.FigureHashes(ctx, bookID)
	if err != nil {
		return 0, 0, fmt.Errorf("load figure hashes: %w", err)
	}

	figures := filterFigures(ctx, bookID, images, p.cfg.MinFigureDimension, existingFigs)
	described := p.describeFigures(ctx, figures)
	if len(described) == 0 {
		return 0, 0, nil
	}

	if err := p.catalog.SaveFigures(ctx, described); err != nil {
		return 0, 0, fmt.Errorf("save figures: %w", err)
	}

	chunks := novelChunks(figureChunks(described), existingChunks)
	_, failedBatches = p.embedAndStore(ctx, chunks, existingChunks)
	return len(described), failedBatches, nil
}

// pickCover prefers the first sizable image on the first page.
func pickCover(images []PageImage) *PageImage {
	for i, img := range images {
		if img.PageNumber != 1 {
			continue
		}
		if w, h := imageDimensions(img.Data); w >= DefaultMinFigureDimension && h >= DefaultMinFigureDimension {
			return &images[i]
		}
	}
	return nil
}

func novelChunks(chunks []Chunk, existing map[string]bool) []Chunk {
	var novel []Chunk
	seen := map[string]bool{}
	for _, c := range chunks {
		if existing[c.ContentHash] || seen[c.ContentHash] {
			continue
		}
		seen[c.ContentHash] = true
		novel = append(novel, c)
	}
	return novel
}
