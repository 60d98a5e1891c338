package ingest

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultBatchBudget bounds the total characters sent in one embedding call.
const DefaultBatchBudget = 800000

// DefaultEmbedConcurrency is how many batches are in flight at once.
const DefaultEmbedConcurrency = 5

// PackBatches greedily groups chunks so no batch exceeds the character
// budget. A single chunk larger than the budget still travels alone; the
// chunker's oversize split keeps that case rare.
func PackBatches(chunks []Chunk, budget int) [][]Chunk {
	if budget <= 0 {
		budget = DefaultBatchBudget
	}

	var batches [][]Chunk
	var current []Chunk
	size := 0
	for _, c := range chunks {
		if len(current) > 0 && size+len(c.Content) > budget {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, c)
		size += len(c.Content)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

type batchOutcome struct {
	index  int
	hashes []string
	err    error
}

// embedAndStore embeds and persists chunks batch by batch with bounded
// parallelism. A batch's hashes enter the done set only after its persist
// succeeds, and one failed batch does not stop the others. Workers only
// report outcomes; the done set is mutated here, on the caller's goroutine.
func (p *Pipeline) embedAndStore(ctx context.Context, chunks []Chunk, done map[string]bool) (created, failed int) {
	batches := PackBatches(chunks, p.cfg.BatchBudget)
	if len(batches) == 0 {
		return 0, 0
	}

	sem := semaphore.NewWeighted(int64(p.cfg.EmbedConcurrency))
	outcomes := make([]batchOutcome, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = batchOutcome{index: i, err: err}
			continue
		}
		wg.Add(1)
		go func(i int, batch []Chunk) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = p.processBatch(ctx, i, batch)
		}(i, batch)
	}
	wg.Wait()

	for _, out := range outcomes {
		if out.err != nil {
			slog.ErrorContext(ctx, "embedding batch failed", "batch", out.index, "error", out.err)
			failed++
			continue
		}
		for _, h := range out.hashes {
			done[h] = true
		}
		created += len(out.hashes)
	}
	return created, failed
}

func (p *Pipeline) processBatch(ctx context.Context, index int, batch []Chunk) batchOutcome {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return batchOutcome{index: index, err: err}
	}

	for i := range batch {
		batch[i].Embedding = vectors[i]
	}
	if err := p.chunks.StoreChunks(ctx, batch); err != nil {
		return batchOutcome{index: index, err: err}
	}

	hashes := make([]string, len(batch))
	for i, c := range batch {
		hashes[i] = c.ContentHash
	}
	return batchOutcome{index: index, hashes: hashes}
}
