package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultFigureConcurrency is how many description calls run at once.
const DefaultFigureConcurrency = 10

// DefaultMinFigureDimension drops decorative icons and rules.
const DefaultMinFigureDimension = 128

var describableFormats = map[string]bool{"png": true, "jpeg": true, "webp": true}

// filterFigures applies the decorative filter, drops undescribable
// encodings, hashes survivors, and discards image hashes already present.
// Duplicates inside the same document collapse to their first occurrence.
func filterFigures(ctx context.Context, bookID string, images []PageImage, minDim int, existing map[string]bool) []Figure {
	if minDim <= 0 {
		minDim = DefaultMinFigureDimension
	}

	var figures []Figure
	seen := map[string]bool{}
	for _, img := range images {
		if !describableFormats[img.Format] {
			slog.DebugContext(ctx, "skipping figure with unsupported encoding", "page", img.PageNumber, "format", img.Format)
			continue
		}
		w, h := imageDimensions(img.Data)
		if w < minDim || h < minDim {
			continue
		}

		hash := ImageHash(img.Data)
		if existing[hash] || seen[hash] {
			continue
		}
		seen[hash] = true

		figures = append(figures, Figure{
			BookID:     bookID,
			PageNumber: img.PageNumber,
			Image:      img.Data,
			Format:     img.Format,
			Width:      w,
			Height:     h,
			ImageHash:  hash,
		})
	}
	return figures
}

// describeFigures runs description calls with bounded parallelism. A failed
// figure is logged and excluded; it never sinks its siblings.
func (p *Pipeline) describeFigures(ctx context.Context, figures []Figure) []Figure {
	if len(figures) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(p.cfg.FigureConcurrency))
	results := make([]*Figure, len(figures))
	var wg sync.WaitGroup

	for i, fig := range figures {
		if err := sem.Acquire(ctx, 1); err != nil {
			slog.WarnContext(ctx, "figure description cancelled", "book_id", fig.BookID, "page", fig.PageNumber)
			break
		}
		wg.Add(1)
		go func(i int, fig Figure) {
			defer wg.Done()
			defer sem.Release(1)

			desc, err := p.describer.DescribeFigure(ctx, fig.Image, fig.Format, fig.PageNumber, fig.Caption)
			if err != nil {
				slog.ErrorContext(ctx, "figure description failed",
					"book_id", fig.BookID, "page", fig.PageNumber, "image_hash", fig.ImageHash, "error", err)
				return
			}
			fig.Description = desc
			results[i] = &fig
		}(i, fig)
	}
	wg.Wait()

	var described []Figure
	for _, r := range results {
		if r != nil {
			described = append(described, *r)
		}
	}
	return described
}

// figureChunks turns described figures into embeddable chunks.
func figureChunks(figures []Figure) []Chunk {
	chunks := make([]Chunk, 0, len(figures))
	for _, fig := range figures {
		body := fig.Description
		if fig.Caption != "" {
			body = fig.Caption + "\n" + body
		}
		chunks = append(chunks, Chunk{
			BookID:      fig.BookID,
			Kind:        ChunkKindFigure,
			Content:     body,
			PageStart:   fig.PageNumber,
			PageEnd:     fig.PageNumber,
			FigureID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(fig.ImageHash)).String(),
			ContentHash: ContentHash(body),
		})
	}
	return chunks
}
