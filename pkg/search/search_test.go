package search_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/documents"
	docsinmemory "github.com/papercomputeco/folio/pkg/documents/inmemory"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/search"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/inmemory"
)

// brokenDocuments fails every lookup with a non-NotFound error.
type brokenDocuments struct {
	documents.Store
}

func (brokenDocuments) FindByID(context.Context, string) (documents.Document, error) {
	return documents.Document{}, errors.New("connection refused")
}

func countTexts(results []search.GroupedResult) int {
	n := 0
	for _, r := range results {
		n += len(r.MatchedTexts)
	}
	return n
}

var _ = Describe("Engine", func() {
	const query = "what is recursion"

	var (
		ctx      context.Context
		chunks   *inmemory.Driver
		docs     *docsinmemory.Driver
		embedder *testutils.MockEmbedder
		engine   *search.Engine
	)

	newEngine := func(chunkStore vector.Store, docStore documents.Store) *search.Engine {
		e, err := search.NewEngine(search.Config{
			Embedder:  embedder,
			Chunks:    chunkStore,
			Documents: docStore,
			Scorer:    search.LinearScorer{BatchSize: 2},
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	createDoc := func(title, course string) documents.Document {
		doc, err := docs.Create(ctx, testutils.NewTestDocument(title, course, "lecture"))
		Expect(err).NotTo(HaveOccurred())
		return doc
	}

	insert := func(doc documents.Document, text string, embedding ...float32) {
		Expect(chunks.Insert(ctx, testutils.NewTestChunk(doc.ID, text, embedding...))).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		chunks = inmemory.NewDriver()
		docs = docsinmemory.NewDriver()
		embedder = testutils.NewMockEmbedder()
		embedder.Embeddings[query] = []float32{1, 0, 0}
		engine = newEngine(chunks, docs)
	})

	Describe("NewEngine", func() {
		It("requires every collaborator", func() {
			_, err := search.NewEngine(search.Config{Chunks: chunks, Documents: docs})
			Expect(err).To(HaveOccurred())
			_, err = search.NewEngine(search.Config{Embedder: embedder, Documents: docs})
			Expect(err).To(HaveOccurred())
			_, err = search.NewEngine(search.Config{Embedder: embedder, Chunks: chunks})
			Expect(err).To(HaveOccurred())
		})

		It("runs without a logger", func() {
			doc := createDoc("A", "CS101")
			insert(doc, "a", 1, 0, 0)

			e, err := search.NewEngine(search.Config{Embedder: embedder, Chunks: chunks, Documents: docs})
			Expect(err).NotTo(HaveOccurred())

			results, err := e.Search(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			flat, err := e.SearchFlat(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(flat).To(HaveLen(1))
		})
	})

	Describe("Search", func() {
		It("ranks by score and groups by document in first-seen order", func() {
			a := createDoc("A", "CS101")
			b := createDoc("B", "CS101")

			insert(a, "a-low", 0, 1, 0)
			insert(b, "b-high", 1, 0, 0)
			insert(a, "a-mid", 1, 1, 0)

			results, err := engine.Search(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Document.ID).To(Equal(b.ID))
			Expect(results[0].MatchedTexts).To(Equal([]string{"b-high"}))
			Expect(results[1].Document.ID).To(Equal(a.ID))
			Expect(results[1].MatchedTexts).To(Equal([]string{"a-mid", "a-low"}))
			Expect(results[1].Document.Title).To(Equal("A"))
		})

		It("truncates to the group cap before grouping", func() {
			a := createDoc("A", "CS101")
			b := createDoc("B", "CS101")

			insert(a, "first", 1, 0, 0)
			insert(b, "second", 1, 0.1, 0)
			insert(a, "third", 1, 1, 0)

			results, err := engine.Search(ctx, search.Query{Text: query, GroupCap: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].MatchedTexts).To(Equal([]string{"first"}))
			Expect(results[1].MatchedTexts).To(Equal([]string{"second"}))
		})

		It("returns min(group cap, surviving chunks) texts", func() {
			for i := range 3 {
				doc := createDoc(fmt.Sprintf("doc-%d", i), "CS101")
				for j := range 5 {
					insert(doc, fmt.Sprintf("%d-%d", i, j), float32(j+1), float32(i), 1)
				}
			}

			for _, capN := range []int{1, 4, 15, 100} {
				results, err := engine.Search(ctx, search.Query{Text: query, GroupCap: capN})
				Expect(err).NotTo(HaveOccurred())
				Expect(countTexts(results)).To(Equal(min(capN, 15)))
			}
		})

		It("applies the default group cap", func() {
			doc := createDoc("big", "CS101")
			for i := range 40 {
				insert(doc, fmt.Sprintf("chunk-%d", i), 1, float32(i), 0)
			}

			results, err := engine.Search(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(countTexts(results)).To(Equal(search.DefaultGroupCap))
		})

		It("does not apply top k in grouped mode", func() {
			doc := createDoc("big", "CS101")
			for i := range 12 {
				insert(doc, fmt.Sprintf("chunk-%d", i), 1, float32(i), 0)
			}

			results, err := engine.Search(ctx, search.Query{Text: query, TopK: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(countTexts(results)).To(Equal(12))
		})

		It("keeps insertion order for equal scores", func() {
			a := createDoc("A", "CS101")
			b := createDoc("B", "CS101")

			insert(b, "one", 2, 0, 0)
			insert(a, "two", 3, 0, 0)
			insert(b, "three", 4, 0, 0)

			results, err := engine.Search(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Document.ID).To(Equal(b.ID))
			Expect(results[0].MatchedTexts).To(Equal([]string{"one", "three"}))
			Expect(results[1].MatchedTexts).To(Equal([]string{"two"}))
		})

		It("returns only chunks of documents matching the course filter", func() {
			var cs101 []string
			for i := range 2 {
				doc := createDoc(fmt.Sprintf("cs-%d", i), "CS101")
				cs101 = append(cs101, doc.ID)
			}
			// 5 CS101 chunks across 2 documents, 10 chunks across 3 others.
			for i := range 5 {
				insert(documents.Document{ID: cs101[i%2]}, fmt.Sprintf("cs-chunk-%d", i), 0.5, float32(i), 1)
			}
			for i := range 3 {
				doc := createDoc(fmt.Sprintf("other-%d", i), "MATH200")
				for j := range 4 {
					if i*4+j >= 10 {
						break
					}
					insert(doc, fmt.Sprintf("other-%d-%d", i, j), 1, 0, 0)
				}
			}

			results, err := engine.Search(ctx, search.Query{
				Text:   query,
				Filter: documents.Filter{Course: "CS101"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(countTexts(results)).To(Equal(5))
			Expect(len(results)).To(BeNumerically("<=", 2))
			for _, r := range results {
				Expect(r.Document.CourseCode).To(Equal("CS101"))
				Expect(cs101).To(ContainElement(r.Document.ID))
			}
		})

		It("filters on document type", func() {
			lecture := createDoc("lecture", "CS101")
			exam, err := docs.Create(ctx, testutils.NewTestDocument("exam", "CS101", "exam"))
			Expect(err).NotTo(HaveOccurred())

			insert(lecture, "lecture text", 1, 0, 0)
			insert(exam, "exam text", 1, 0, 0)

			results, err := engine.Search(ctx, search.Query{Text: query, Filter: documents.Filter{Type: "exam"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].MatchedTexts).To(Equal([]string{"exam text"}))
		})

		It("excludes chunks whose document no longer exists", func() {
			kept := createDoc("kept", "CS101")
			gone := createDoc("gone", "CS101")
			insert(kept, "kept text", 1, 0, 0)
			insert(gone, "gone text", 1, 0, 0)
			Expect(docs.Delete(ctx, gone.ID)).To(Succeed())

			results, err := engine.Search(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Document.ID).To(Equal(kept.ID))
		})

		It("returns an empty, non-nil result when nothing matches", func() {
			results, err := engine.Search(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeNil())
			Expect(results).To(BeEmpty())
		})

		It("rejects a negative group cap", func() {
			_, err := engine.Search(ctx, search.Query{Text: query, GroupCap: -1})
			Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
		})
	})

	Describe("SearchFlat", func() {
		It("returns the top k chunks by descending score", func() {
			doc := createDoc("A", "CS101")
			insert(doc, "orthogonal", 0, 1, 0)
			insert(doc, "exact", 1, 0, 0)
			insert(doc, "close", 1, 0.2, 0)

			results, err := engine.SearchFlat(ctx, search.Query{Text: query, TopK: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Text).To(Equal("exact"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-9))
			Expect(results[0].DocumentID).To(Equal(doc.ID))
			Expect(results[1].Text).To(Equal("close"))
			Expect(results[0].Score).To(BeNumerically(">=", results[1].Score))
		})

		It("defaults to ten results", func() {
			doc := createDoc("A", "CS101")
			for i := range 15 {
				insert(doc, fmt.Sprintf("chunk-%d", i), 1, float32(i), 0)
			}

			results, err := engine.SearchFlat(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(search.DefaultTopK))
		})

		It("scores a zero vector as exactly zero", func() {
			doc := createDoc("A", "CS101")
			insert(doc, "zero", 0, 0, 0)

			results, err := engine.SearchFlat(ctx, search.Query{Text: query})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Score).To(Equal(0.0))
		})

		It("rejects a negative top k", func() {
			_, err := engine.SearchFlat(ctx, search.Query{Text: query, TopK: -3})
			Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
		})
	})

	Describe("failures", func() {
		It("rejects an empty query before embedding", func() {
			for _, text := range []string{"", "   \n\t"} {
				_, err := engine.Search(ctx, search.Query{Text: text})
				Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())

				_, err = engine.SearchFlat(ctx, search.Query{Text: text})
				Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
			}
			Expect(embedder.CallCount()).To(Equal(0))
		})

		It("fails the request when the query cannot be embedded", func() {
			insert(createDoc("A", "CS101"), "text", 1, 0, 0)
			embedder.FailOn[query] = true

			results, err := engine.Search(ctx, search.Query{Text: query})
			Expect(results).To(BeNil())
			Expect(errors.Is(err, vector.ErrProviderUnavailable)).To(BeTrue())
		})

		It("fails with a dimension mismatch when a stored chunk disagrees", func() {
			doc := createDoc("A", "CS101")
			insert(doc, "three", 1, 0, 0)
			insert(doc, "two", 1, 0)

			_, err := engine.Search(ctx, search.Query{Text: query})
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())
		})

		It("ignores a mismatched chunk that the filter excludes", func() {
			kept := createDoc("A", "CS101")
			other := createDoc("B", "MATH200")
			insert(kept, "three", 1, 0, 0)
			insert(other, "two", 1, 0)

			results, err := engine.Search(ctx, search.Query{Text: query, Filter: documents.Filter{Course: "CS101"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
		})

		It("surfaces a scan failure as storage unavailable", func() {
			failing := testutils.NewFailingStore(chunks)
			failing.FailScan = true

			_, err := newEngine(failing, docs).Search(ctx, search.Query{Text: query})
			Expect(errors.Is(err, vector.ErrStorageUnavailable)).To(BeTrue())
		})

		It("surfaces a document lookup failure as storage unavailable", func() {
			insert(createDoc("A", "CS101"), "text", 1, 0, 0)

			_, err := newEngine(chunks, brokenDocuments{docs}).Search(ctx, search.Query{Text: query})
			Expect(errors.Is(err, vector.ErrStorageUnavailable)).To(BeTrue())
		})

		It("abandons the request when the context is cancelled", func() {
			doc := createDoc("A", "CS101")
			for i := range 10 {
				insert(doc, fmt.Sprintf("chunk-%d", i), 1, 0, 0)
			}

			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := engine.Search(cctx, search.Query{Text: query})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})
