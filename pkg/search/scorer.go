package search

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/folio/pkg/vector"
)

// DefaultBatchSize is the number of chunks a LinearScorer scores per task.
const DefaultBatchSize = 512

// Scorer computes the similarity of every chunk to the query embedding.
// The returned slice is index-aligned with chunks.
type Scorer interface {
	Score(ctx context.Context, query []float32, chunks []vector.Chunk) ([]float64, error)
}

// LinearScorer scores every chunk with cosine similarity. Batches are
// scored in parallel.
type LinearScorer struct {
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int

	// Parallelism bounds concurrent batches. Defaults to GOMAXPROCS.
	Parallelism int
}

// Score returns one cosine similarity per chunk. Any chunk whose embedding
// length differs from the query fails the whole call with a
// vector.DimensionMismatchError.
func (s LinearScorer) Score(ctx context.Context, query []float32, chunks []vector.Chunk) ([]float64, error) {
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	limit := s.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	scores := make([]float64, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				score, err := vector.CosineSimilarity(query, chunks[i].Embedding)
				if err != nil {
					return err
				}
				scores[i] = score
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A cancellation after the last batch started still aborts.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return scores, nil
}
