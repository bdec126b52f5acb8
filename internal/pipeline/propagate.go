package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// embedBatchSize caps how many postings go to the embedding server in one
// request.
const embedBatchSize = 32

// Propagate makes the vector index catch up with the record store: every
// stored posting that has no vector gets embedded and upserted. Postings
// already indexed are untouched, so a repeat run after convergence is a
// no-op. Returns the number of vectors written.
func (p *Pipeline) Propagate(ctx context.Context) (int, error) {
	storeIDs, err := p.store.KnownIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading record store ids: %w", err)
	}
	indexed, err := p.index.KnownIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading vector index ids: %w", err)
	}

	missing := make([]string, 0)
	for id := range storeIDs {
		if _, ok := indexed[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		p.logger.Info("vector index converged", "postings", len(storeIDs))
		return 0, nil
	}
	sort.Strings(missing)
	p.logger.Info("propagating embeddings", "missing", len(missing), "postings", len(storeIDs))

	postings, err := p.store.GetPostings(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("loading postings to embed: %w", err)
	}

	var (
		mu       sync.Mutex
		upserted int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)

	for start := 0; start < len(postings); start += embedBatchSize {
		end := min(start+embedBatchSize, len(postings))
		chunk := postings[start:end]
		g.Go(func() error {
			ids := make([]string, len(chunk))
			for i, posting := range chunk {
				ids[i] = posting.UUID
			}
			vectors, err := p.embedder.EmbedRecords(gctx, chunk)
			if err != nil {
				p.logger.Error("embedding chunk failed", "first", ids[0], "last", ids[len(ids)-1], "error", err)
				return fmt.Errorf("embedding %d postings: %w", len(chunk), err)
			}
			if err := p.index.UpsertBatch(gctx, ids, vectors); err != nil {
				p.logger.Error("upserting chunk failed", "first", ids[0], "last", ids[len(ids)-1], "error", err)
				return err
			}
			mu.Lock()
			upserted += len(ids)
			mu.Unlock()
			if p.metrics != nil {
				p.metrics.VectorsUpsertedTotal.Add(float64(len(ids)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return upserted, err
	}

	p.logger.Info("propagation complete", "upserted", upserted)
	return upserted, nil
}
