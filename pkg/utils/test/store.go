package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/vector"
)

// NewTestChunk creates a chunk for documentID with the given text and embedding.
func NewTestChunk(documentID, text string, embedding ...float32) vector.Chunk {
	return vector.Chunk{
		DocumentID: documentID,
		Text:       text,
		Embedding:  embedding,
	}
}

// CollectChunks drains a store scan, failing the test on any scan error.
func CollectChunks(ctx context.Context, store vector.Store) []vector.Chunk {
	var out []vector.Chunk
	for c, err := range store.Scan(ctx) {
		Expect(err).NotTo(HaveOccurred())
		out = append(out, c)
	}
	return out
}

// StoreConformance registers the behavioral specs every vector.Store driver
// must satisfy. newStore is invoked once per test.
func StoreConformance(newStore func() vector.Store) {
	var (
		store vector.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = newStore()
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("reports zero dimensions when empty", func() {
		dims, err := store.Dimensions(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(dims).To(Equal(0))
	})

	It("scans inserted chunks in insertion order", func() {
		Expect(store.Insert(ctx, NewTestChunk("doc-1", "first", 1, 0, 0))).To(Succeed())
		Expect(store.Insert(ctx, NewTestChunk("doc-2", "second", 0, 1, 0))).To(Succeed())
		Expect(store.Insert(ctx, NewTestChunk("doc-1", "third", 0, 0, 1))).To(Succeed())

		chunks := CollectChunks(ctx, store)
		Expect(chunks).To(HaveLen(3))
		Expect(chunks[0].Text).To(Equal("first"))
		Expect(chunks[1].Text).To(Equal("second"))
		Expect(chunks[2].Text).To(Equal("third"))
		Expect(chunks[0].Seq).To(BeNumerically("<", chunks[1].Seq))
		Expect(chunks[1].Seq).To(BeNumerically("<", chunks[2].Seq))
		Expect(chunks[0].DocumentID).To(Equal("doc-1"))
		Expect(chunks[1].Embedding).To(Equal([]float32{0, 1, 0}))
		Expect(chunks[0].ID).NotTo(BeEmpty())
		Expect(chunks[0].ID).NotTo(Equal(chunks[2].ID))
		Expect(chunks[0].CreatedAt.IsZero()).To(BeFalse())

		dims, err := store.Dimensions(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(dims).To(Equal(3))
	})

	It("returns a fresh sequence on every scan", func() {
		Expect(store.Insert(ctx, NewTestChunk("doc-1", "only", 1, 2))).To(Succeed())

		Expect(CollectChunks(ctx, store)).To(HaveLen(1))
		Expect(CollectChunks(ctx, store)).To(HaveLen(1))
	})

	It("stops early when the consumer breaks", func() {
		for i := range 5 {
			Expect(store.Insert(ctx, NewTestChunk("doc-1", fmt.Sprintf("chunk %d", i), 1, 1))).To(Succeed())
		}

		seen := 0
		for _, err := range store.Scan(ctx) {
			Expect(err).NotTo(HaveOccurred())
			seen++
			if seen == 2 {
				break
			}
		}
		Expect(seen).To(Equal(2))
	})

	It("deletes all chunks of a document and is idempotent", func() {
		Expect(store.Insert(ctx, NewTestChunk("doc-1", "a", 1, 0))).To(Succeed())
		Expect(store.Insert(ctx, NewTestChunk("doc-1", "b", 0, 1))).To(Succeed())
		Expect(store.Insert(ctx, NewTestChunk("doc-2", "c", 1, 1))).To(Succeed())

		n, err := store.DeleteByDocument(ctx, "doc-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		n, err = store.DeleteByDocument(ctx, "doc-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))

		n, err = store.DeleteByDocument(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))

		chunks := CollectChunks(ctx, store)
		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0].Text).To(Equal("c"))
	})

	It("rejects chunks without text or embedding", func() {
		err := store.Insert(ctx, NewTestChunk("doc-1", ""))
		Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
	})

	It("yields the context error when cancelled", func() {
		Expect(store.Insert(ctx, NewTestChunk("doc-1", "a", 1))).To(Succeed())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		var scanErr error
		for _, err := range store.Scan(cancelled) {
			if err != nil {
				scanErr = err
				break
			}
		}
		Expect(scanErr).To(HaveOccurred())
	})

	It("never yields duplicates under concurrent inserts", func() {
		const writers, perWriter = 4, 25

		var wg sync.WaitGroup
		for w := range writers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for i := range perWriter {
					Expect(store.Insert(ctx, NewTestChunk(fmt.Sprintf("doc-%d", w), fmt.Sprintf("w%d-%d", w, i), 1, 2))).To(Succeed())
				}
			}()
		}

		for range 5 {
			seen := map[string]bool{}
			for c, err := range store.Scan(ctx) {
				Expect(err).NotTo(HaveOccurred())
				Expect(seen).NotTo(HaveKey(c.ID))
				seen[c.ID] = true
			}
		}
		wg.Wait()

		Expect(CollectChunks(ctx, store)).To(HaveLen(writers * perWriter))
	})
}
