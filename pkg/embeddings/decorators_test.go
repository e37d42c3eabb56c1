package embeddings_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/vector"
)

// blockingEmbedder waits for its context before returning.
type blockingEmbedder struct {
	closed atomic.Bool
}

func (b *blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingEmbedder) Close() error {
	b.closed.Store(true)
	return nil
}

// countingEmbedder returns a fixed vector and counts calls.
type countingEmbedder struct {
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	c.calls.Add(1)
	return []float32{1, 2, 3}, nil
}

func (c *countingEmbedder) Close() error { return nil }

var _ = Describe("Decorators", func() {
	Describe("WithTimeout", func() {
		It("turns a deadline into ErrProviderUnavailable", func() {
			e := embeddings.WithTimeout(&blockingEmbedder{}, 20*time.Millisecond)

			_, err := e.Embed(context.Background(), "hello")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, vector.ErrProviderUnavailable)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})

		It("passes successful calls through", func() {
			e := embeddings.WithTimeout(&countingEmbedder{}, time.Second)

			emb, err := e.Embed(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(emb).To(Equal([]float32{1, 2, 3}))
		})

		It("returns the embedder unchanged for a zero timeout", func() {
			inner := &countingEmbedder{}
			Expect(embeddings.WithTimeout(inner, 0)).To(BeIdenticalTo(inner))
		})

		It("closes the wrapped embedder", func() {
			inner := &blockingEmbedder{}
			Expect(embeddings.WithTimeout(inner, time.Second).Close()).To(Succeed())
			Expect(inner.closed.Load()).To(BeTrue())
		})
	})

	Describe("WithRateLimit", func() {
		It("allows the burst and then throttles", func() {
			inner := &countingEmbedder{}
			e := embeddings.WithRateLimit(inner, 20, 2)

			start := time.Now()
			for range 4 {
				_, err := e.Embed(context.Background(), "hello")
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(inner.calls.Load()).To(Equal(int64(4)))
			Expect(time.Since(start)).To(BeNumerically(">=", 80*time.Millisecond))
		})

		It("fails with ErrProviderUnavailable when the context ends while waiting", func() {
			e := embeddings.WithRateLimit(&countingEmbedder{}, 0.001, 1)
			_, err := e.Embed(context.Background(), "first")
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err = e.Embed(ctx, "second")
			Expect(errors.Is(err, vector.ErrProviderUnavailable)).To(BeTrue())
		})
	})
})
