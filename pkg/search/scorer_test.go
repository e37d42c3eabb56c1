package search_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/search"
	"github.com/papercomputeco/folio/pkg/vector"
)

var _ = Describe("LinearScorer", func() {
	chunks := []vector.Chunk{
		{Embedding: []float32{1, 0}},
		{Embedding: []float32{0, 1}},
		{Embedding: []float32{1, 1}},
		{Embedding: []float32{0, 0}},
		{Embedding: []float32{-1, 0}},
	}

	It("scores every chunk in index order across batches", func() {
		scores, err := search.LinearScorer{BatchSize: 2, Parallelism: 2}.Score(context.Background(), []float32{1, 0}, chunks)
		Expect(err).NotTo(HaveOccurred())
		Expect(scores).To(HaveLen(5))
		Expect(scores[0]).To(BeNumerically("~", 1.0, 1e-9))
		Expect(scores[1]).To(BeNumerically("~", 0.0, 1e-9))
		Expect(scores[2]).To(BeNumerically("~", 0.7071067811865475, 1e-9))
		Expect(scores[3]).To(Equal(0.0))
		Expect(scores[4]).To(BeNumerically("~", -1.0, 1e-9))
	})

	It("matches a single-batch run", func() {
		ctx := context.Background()
		batched, err := search.LinearScorer{BatchSize: 1}.Score(ctx, []float32{0.3, 0.7}, chunks)
		Expect(err).NotTo(HaveOccurred())
		single, err := search.LinearScorer{}.Score(ctx, []float32{0.3, 0.7}, chunks)
		Expect(err).NotTo(HaveOccurred())
		Expect(batched).To(Equal(single))
	})

	It("handles no chunks", func() {
		scores, err := search.LinearScorer{}.Score(context.Background(), []float32{1}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(scores).To(BeEmpty())
	})

	It("fails on a dimension mismatch", func() {
		mixed := append([]vector.Chunk{{Embedding: []float32{1, 2, 3}}}, chunks...)
		_, err := search.LinearScorer{BatchSize: 2}.Score(context.Background(), []float32{1, 0}, mixed)
		Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := search.LinearScorer{}.Score(ctx, []float32{1, 0}, chunks)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
