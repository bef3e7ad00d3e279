package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// embedAll embeds every chunk as a DOCUMENT. Calls run concurrently but each vector is written
// to its chunk's index, so the result follows chunk order rather than completion order.
// The first failure cancels the rest and nothing is returned.
func (o *Orchestrator) embedAll(ctx context.Context, chunks []ragModel.Chunk) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ingest_embed_all", time.Since(start)) }()

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, c := range chunks {
		g.Go(func() error {
			if err := o.limiter.Wait(gctx); err != nil {
				return ragModel.Wrap(ragModel.ErrEmbeddingBackend, "embed chunks", err)
			}
			vec, err := o.embedder.Embed(gctx, c.ChunkText, ragModel.DocumentTypeDocument)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.ChunkOrder, err)
			}
			vectors[i] = vec
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		// the caller gave up; report that rather than whichever call noticed first
		return nil, ragModel.Wrap(ragModel.ErrEmbeddingBackend, "embed chunks", ctxErr)
	}
	if err != nil {
		return nil, err
	}

	size := o.embedder.EmbeddingSize()
	for i, v := range vectors {
		if len(v) != size {
			return nil, ragModel.NewError(ragModel.ErrEmbeddingBackend, "embed chunks",
				"chunk %d embedding has %d dimensions, want %d", chunks[i].ChunkOrder, len(v), size)
		}
	}
	return vectors, nil
}
