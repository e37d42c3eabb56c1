package ingest_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/eventstream"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/logger"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/inmemory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentIngestedEvent
	err    error
}

func (r *recordingPublisher) PublishDocumentIngested(_ context.Context, e *eventstream.DocumentIngestedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func textsFor(ctx context.Context, store vector.Store, documentID string) []string {
	var out []string
	for _, c := range testutils.CollectChunks(ctx, store) {
		if c.DocumentID == documentID {
			out = append(out, c.Text)
		}
	}
	return out
}

var _ = Describe("Pipeline", func() {
	const threeSentences = "One. Two. Three."

	var (
		ctx       context.Context
		store     *inmemory.Driver
		embedder  *testutils.MockEmbedder
		publisher *recordingPublisher
	)

	newPipeline := func(policy ingest.Policy, s vector.Store) *ingest.Pipeline {
		p, err := ingest.New(ingest.Config{
			Store:     s,
			Embedder:  embedder,
			Publisher: publisher,
			Policy:    policy,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		embedder = testutils.NewMockEmbedder()
		publisher = &recordingPublisher{}
	})

	Describe("New", func() {
		It("requires a store and an embedder", func() {
			_, err := ingest.New(ingest.Config{Embedder: embedder, Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())

			_, err = ingest.New(ingest.Config{Store: store, Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())
		})

		It("defaults to the best effort policy", func() {
			p := newPipeline("", store)
			Expect(p.Policy()).To(Equal(ingest.PolicyBestEffort))
		})

		It("runs without a logger", func() {
			p, err := ingest.New(ingest.Config{Store: store, Embedder: embedder})
			Expect(err).NotTo(HaveOccurred())

			n, err := p.Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
		})

		It("rejects an unknown policy", func() {
			_, err := ingest.New(ingest.Config{Store: store, Embedder: embedder, Policy: "sometimes", Logger: logger.Nop()})
			Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
		})
	})

	Describe("input validation", func() {
		It("rejects an empty document id", func() {
			_, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, " ", threeSentences, 6)
			Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
		})

		It("rejects a non-positive chunk size before embedding", func() {
			_, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", threeSentences, 0)
			Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
			Expect(embedder.CallCount()).To(Equal(0))
		})

		It("creates nothing for empty text and publishes no event", func() {
			n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", "", 600)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
			Expect(publisher.events).To(BeEmpty())
		})
	})

	It("stores one chunk per segment in generation order", func() {
		n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", threeSentences, 6)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))

		chunks := testutils.CollectChunks(ctx, store)
		Expect(chunks).To(HaveLen(3))
		Expect([]string{chunks[0].Text, chunks[1].Text, chunks[2].Text}).To(Equal([]string{"One.", "Two.", "Three."}))
		for _, c := range chunks {
			Expect(c.DocumentID).To(Equal("doc-1"))
			Expect(c.ID).NotTo(BeEmpty())
			Expect(c.Embedding).To(HaveLen(3))
			Expect(c.CreatedAt.IsZero()).To(BeFalse())
		}
	})

	It("publishes an ingestion event after a successful run", func() {
		_, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", threeSentences, 6)
		Expect(err).NotTo(HaveOccurred())

		Expect(publisher.events).To(HaveLen(1))
		event := publisher.events[0]
		Expect(event.EventType).To(Equal(eventstream.EventTypeDocumentIngested))
		Expect(event.DocumentID).To(Equal("doc-1"))
		Expect(event.ChunksCreated).To(Equal(3))
		Expect(event.Dimensions).To(Equal(3))
		Expect(event.EventID).NotTo(BeEmpty())
	})

	It("does not fail ingestion when publishing fails", func() {
		publisher.err = errors.New("broker down")

		n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", threeSentences, 6)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
	})

	It("ingests a 1400 character document of three long sentences into three chunks", func() {
		s1 := strings.Repeat("a", 449) + "."
		s2 := strings.Repeat("b", 449) + "."
		s3 := strings.Repeat("c", 497) + "."
		text := s1 + " " + s2 + " " + s3
		Expect(text).To(HaveLen(1400))

		n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", text, chunker.DefaultSize)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))

		texts := textsFor(ctx, store, "doc-1")
		Expect(texts).To(Equal([]string{s1, s2, s3}))
		Expect(strings.Join(texts, " ")).To(Equal(text))
	})

	Describe("best effort policy", func() {
		It("skips failed segments and reports a partial failure", func() {
			embedder.FailOn["Two."] = true

			n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(n).To(Equal(2))
			Expect(errors.Is(err, ingest.ErrPartialIngestion)).To(BeTrue())
			Expect(errors.Is(err, vector.ErrProviderUnavailable)).To(BeTrue())

			var partial *ingest.PartialError
			Expect(errors.As(err, &partial)).To(BeTrue())
			Expect(partial.Succeeded).To(Equal(2))
			Expect(partial.Failed).To(Equal(1))
			Expect(partial.Errs).To(HaveLen(1))

			Expect(textsFor(ctx, store, "doc-1")).To(Equal([]string{"One.", "Three."}))
		})

		It("still publishes an event counting the failures", func() {
			embedder.FailOn["Two."] = true

			_, _ = newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].ChunksFailed).To(Equal(1))
		})

		It("reports a partial failure with zero successes when every segment fails", func() {
			embedder.FailOn["One."] = true

			n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", "One.", 6)
			Expect(n).To(Equal(0))

			var partial *ingest.PartialError
			Expect(errors.As(err, &partial)).To(BeTrue())
			Expect(partial.Succeeded).To(Equal(0))
			Expect(partial.Failed).To(Equal(1))
			Expect(publisher.events).To(BeEmpty())
		})

		It("stops on a storage failure and keeps what was stored", func() {
			failing := testutils.NewFailingStore(store)
			failing.FailInsertAfter = 1

			n, err := newPipeline(ingest.PolicyBestEffort, failing).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(n).To(Equal(1))
			Expect(errors.Is(err, vector.ErrStorageUnavailable)).To(BeTrue())
			Expect(textsFor(ctx, store, "doc-1")).To(Equal([]string{"One."}))
		})
	})

	Describe("all or nothing policy", func() {
		It("rolls back on the first embedding failure", func() {
			Expect(store.Insert(ctx, testutils.NewTestChunk("doc-other", "keep me", 1, 2, 3))).To(Succeed())
			embedder.FailOn["Three."] = true

			n, err := newPipeline(ingest.PolicyAllOrNothing, store).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(n).To(Equal(0))
			Expect(errors.Is(err, vector.ErrProviderUnavailable)).To(BeTrue())
			Expect(errors.Is(err, ingest.ErrPartialIngestion)).To(BeFalse())

			Expect(textsFor(ctx, store, "doc-1")).To(BeEmpty())
			Expect(textsFor(ctx, store, "doc-other")).To(Equal([]string{"keep me"}))
			Expect(publisher.events).To(BeEmpty())
		})

		It("stops embedding after the first failure", func() {
			embedder.FailOn["One."] = true

			_, err := newPipeline(ingest.PolicyAllOrNothing, store).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(err).To(HaveOccurred())
			Expect(embedder.CallCount()).To(Equal(1))
		})

		It("rolls back on a storage failure", func() {
			failing := testutils.NewFailingStore(store)
			failing.FailInsertAfter = 2

			n, err := newPipeline(ingest.PolicyAllOrNothing, failing).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(n).To(Equal(0))
			Expect(errors.Is(err, vector.ErrStorageUnavailable)).To(BeTrue())
			Expect(textsFor(ctx, store, "doc-1")).To(BeEmpty())
		})
	})

	Describe("dimension guard", func() {
		It("rejects a 768 dimension chunk after a 384 dimension chunk", func() {
			small := testutils.NewMockEmbedder()
			small.Dimensions = 384
			first, err := ingest.New(ingest.Config{Store: store, Embedder: small, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			n, err := first.Ingest(ctx, "doc-1", "First document.", 600)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			large := testutils.NewMockEmbedder()
			large.Dimensions = 768
			second, err := ingest.New(ingest.Config{Store: store, Embedder: large, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			n, err = second.Ingest(ctx, "doc-2", "Second document.", 600)
			Expect(n).To(Equal(0))
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())

			var mismatch vector.DimensionMismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Want).To(Equal(384))
			Expect(mismatch.Got).To(Equal(768))

			Expect(textsFor(ctx, store, "doc-2")).To(BeEmpty())
		})

		It("commits the first dimensionality within one pipeline", func() {
			embedder.Embeddings["Two."] = []float32{1, 2, 3, 4}

			n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(n).To(Equal(1))
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())
		})

		It("surfaces a failure to read the committed dimensionality", func() {
			failing := testutils.NewFailingStore(store)
			failing.FailDimensions = true

			_, err := newPipeline(ingest.PolicyBestEffort, failing).Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(errors.Is(err, vector.ErrStorageUnavailable)).To(BeTrue())
		})
	})

	Describe("replace", func() {
		It("removes existing chunks before ingesting", func() {
			p := newPipeline(ingest.PolicyBestEffort, store)

			_, err := p.Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(err).NotTo(HaveOccurred())

			n, err := p.IngestWithOptions(ctx, "doc-1", "Fresh text.", 600, ingest.Options{Replace: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(textsFor(ctx, store, "doc-1")).To(Equal([]string{"Fresh text."}))
		})

		It("keeps the existing chunks when an all or nothing replacement fails to embed", func() {
			p := newPipeline(ingest.PolicyAllOrNothing, store)

			_, err := p.Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(err).NotTo(HaveOccurred())

			embedder.FailOn["Broken."] = true
			n, err := p.IngestWithOptions(ctx, "doc-1", "Fresh. Broken.", 7, ingest.Options{Replace: true})
			Expect(n).To(Equal(0))
			Expect(errors.Is(err, vector.ErrProviderUnavailable)).To(BeTrue())

			Expect(textsFor(ctx, store, "doc-1")).To(Equal([]string{"One.", "Two.", "Three."}))
		})

		It("replaces the chunks once an all or nothing run has embedded everything", func() {
			p := newPipeline(ingest.PolicyAllOrNothing, store)

			_, err := p.Ingest(ctx, "doc-1", threeSentences, 6)
			Expect(err).NotTo(HaveOccurred())

			n, err := p.IngestWithOptions(ctx, "doc-1", "Fresh. Text.", 6, ingest.Options{Replace: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(textsFor(ctx, store, "doc-1")).To(Equal([]string{"Fresh.", "Text."}))
		})

		It("appends without replace", func() {
			p := newPipeline(ingest.PolicyBestEffort, store)

			_, err := p.Ingest(ctx, "doc-1", "Old.", 600)
			Expect(err).NotTo(HaveOccurred())
			_, err = p.Ingest(ctx, "doc-1", "New.", 600)
			Expect(err).NotTo(HaveOccurred())

			Expect(textsFor(ctx, store, "doc-1")).To(Equal([]string{"Old.", "New."}))
		})
	})

	It("stops when the context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		n, err := newPipeline(ingest.PolicyBestEffort, store).Ingest(cctx, "doc-1", threeSentences, 6)
		Expect(n).To(Equal(0))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("is safe for concurrent ingestion of different documents", func() {
		p := newPipeline(ingest.PolicyBestEffort, store)

		var wg sync.WaitGroup
		for _, id := range []string{"a", "b", "c", "d"} {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				n, err := p.Ingest(ctx, id, threeSentences, 6)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(3))
			}()
		}
		wg.Wait()

		Expect(testutils.CollectChunks(ctx, store)).To(HaveLen(12))
	})
})

var _ = Describe("ParsePolicy", func() {
	DescribeTable("known values",
		func(in string, want ingest.Policy) {
			got, err := ingest.ParsePolicy(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("empty", "", ingest.PolicyBestEffort),
		Entry("best effort", "best_effort", ingest.PolicyBestEffort),
		Entry("all or nothing", "all_or_nothing", ingest.PolicyAllOrNothing),
	)
})
