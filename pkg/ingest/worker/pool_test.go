package worker

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/logger"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector/inmemory"
)

// blockingIngester holds every job until release is closed.
type blockingIngester struct {
	release chan struct{}
}

func (b *blockingIngester) IngestWithOptions(context.Context, string, string, int, ingest.Options) (int, error) {
	<-b.release
	return 0, nil
}

// newTestPool creates a worker pool backed by an in-memory store.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool(embedder *testutils.MockEmbedder, onDone func(Job, int, error)) (*Pool, *inmemory.Driver) {
	store := inmemory.NewDriver()

	pipeline, err := ingest.New(ingest.Config{
		Store:    store,
		Embedder: embedder,
		Logger:   logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	wp, err := NewPool(&Config{
		Pipeline: pipeline,
		OnDone:   onDone,
		Logger:   logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, store
}

var _ = Describe("Worker Pool", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("requires a pipeline", func() {
		_, err := NewPool(&Config{Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})

	It("applies defaults", func() {
		wp, _ := newTestPool(testutils.NewMockEmbedder(), nil)
		defer wp.Close()

		Expect(wp.config.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(cap(wp.queue)).To(Equal(int(defaultJobQueueSize)))
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			wp, _ := newTestPool(testutils.NewMockEmbedder(), nil)
			Expect(wp.Enqueue(Job{DocumentID: "doc-1", Text: "Hello.", ChunkSize: 600})).To(BeTrue())
			wp.Close()
		})

		It("returns false when the queue is full", func() {
			ing := &blockingIngester{release: make(chan struct{})}
			wp, err := NewPool(&Config{Pipeline: ing, NumWorkers: 1, QueueSize: 1, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			// One job is picked up by the worker and blocks, one fills the queue.
			Expect(wp.Enqueue(Job{DocumentID: "a"})).To(BeTrue())
			Eventually(func() int { return len(wp.queue) }).Should(Equal(0))
			Expect(wp.Enqueue(Job{DocumentID: "b"})).To(BeTrue())
			Expect(wp.Enqueue(Job{DocumentID: "c"})).To(BeFalse())

			close(ing.release)
			wp.Close()
		})

		It("returns false after Close", func() {
			wp, _ := newTestPool(testutils.NewMockEmbedder(), nil)
			wp.Close()
			Expect(wp.Enqueue(Job{DocumentID: "doc-1", Text: "Hello.", ChunkSize: 600})).To(BeFalse())
		})
	})

	Describe("Close", func() {
		It("drains every queued job", func() {
			wp, store := newTestPool(testutils.NewMockEmbedder(), nil)

			for _, id := range []string{"a", "b", "c", "d", "e"} {
				Expect(wp.Enqueue(Job{DocumentID: id, Text: "One. Two.", ChunkSize: 4})).To(BeTrue())
			}
			wp.Close()

			Expect(testutils.CollectChunks(ctx, store)).To(HaveLen(10))
		})

		It("is safe to call twice", func() {
			wp, _ := newTestPool(testutils.NewMockEmbedder(), nil)
			wp.Close()
			Expect(wp.Close).NotTo(Panic())
		})
	})

	It("reports each result through OnDone", func() {
		var (
			mu      sync.Mutex
			results = map[string]int{}
			errs    = map[string]error{}
		)
		embedder := testutils.NewMockEmbedder()
		embedder.FailOn["Broken."] = true

		wp, _ := newTestPool(embedder, func(job Job, created int, err error) {
			mu.Lock()
			defer mu.Unlock()
			results[job.DocumentID] = created
			errs[job.DocumentID] = err
		})

		Expect(wp.Enqueue(Job{DocumentID: "ok", Text: "Fine. Also fine.", ChunkSize: 10})).To(BeTrue())
		Expect(wp.Enqueue(Job{DocumentID: "partial", Text: "Fine. Broken.", ChunkSize: 10})).To(BeTrue())
		wp.Close()

		Expect(results["ok"]).To(Equal(2))
		Expect(errs["ok"]).NotTo(HaveOccurred())
		Expect(results["partial"]).To(Equal(1))
		Expect(errs["partial"]).To(MatchError(ingest.ErrPartialIngestion))
	})

	It("replaces existing chunks when asked", func() {
		wp, store := newTestPool(testutils.NewMockEmbedder(), nil)
		Expect(store.Insert(ctx, testutils.NewTestChunk("doc-1", "stale", 1, 1, 1))).To(Succeed())

		Expect(wp.Enqueue(Job{DocumentID: "doc-1", Text: "Fresh.", ChunkSize: 600, Replace: true})).To(BeTrue())
		wp.Close()

		chunks := testutils.CollectChunks(ctx, store)
		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0].Text).To(Equal("Fresh."))
	})
})
