package qdrant_test

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/folio/pkg/logger"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/qdrant"
)

var _ = Describe("Driver", func() {
	It("requires a host", func() {
		_, err := qdrant.NewDriver(qdrant.Config{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("qdrant host is required")))
	})

	Describe("point mapping", func() {
		It("round-trips a chunk through its payload", func() {
			created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			in := vector.Chunk{
				ID:         uuid.NewString(),
				DocumentID: "doc-1",
				Seq:        1740830400000000,
				Text:       "payload text",
				Embedding:  []float32{0.5, 0.25},
				CreatedAt:  created,
			}

			point := qdrant.PointFromChunk(in)
			vectors := &qc.VectorsOutput{
				VectorsOptions: &qc.VectorsOutput_Vector{
					Vector: &qc.VectorOutput{
						Vector: &qc.VectorOutput_Dense{Dense: &qc.DenseVector{Data: in.Embedding}},
					},
				},
			}

			out := qdrant.ChunkFromPoint(point.GetId(), point.GetPayload(), vectors)
			Expect(out).To(Equal(in))
		})
	})

	Describe("paging", func() {
		// pagesOf serves seq-ordered chunks the way an ordered Scroll does.
		pagesOf := func(chunks []vector.Chunk) func(int64, int) ([]vector.Chunk, error) {
			return func(from int64, limit int) ([]vector.Chunk, error) {
				var page []vector.Chunk
				for _, c := range chunks {
					if c.Seq >= from && len(page) < limit {
						page = append(page, c)
					}
				}
				return page, nil
			}
		}

		collect := func(chunks []vector.Chunk, pageSize int) []string {
			var ids []string
			qdrant.ScanPages(context.Background(), pagesOf(chunks), pageSize, func(c vector.Chunk, err error) bool {
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, c.ID)
				return true
			})
			return ids
		}

		It("keeps chunks sharing a seq across a page boundary", func() {
			chunks := []vector.Chunk{
				{ID: "a", Seq: 1},
				{ID: "b", Seq: 2},
				{ID: "c", Seq: 2},
				{ID: "d", Seq: 3},
			}
			Expect(collect(chunks, 2)).To(Equal([]string{"a", "b", "c", "d"}))
		})

		It("gets past more tied chunks than fit in a page", func() {
			chunks := []vector.Chunk{
				{ID: "a", Seq: 5},
				{ID: "b", Seq: 5},
				{ID: "c", Seq: 5},
				{ID: "d", Seq: 5},
				{ID: "e", Seq: 5},
				{ID: "f", Seq: 6},
			}
			Expect(collect(chunks, 2)).To(Equal([]string{"a", "b", "c", "d", "e", "f"}))
		})

		It("stops when the consumer stops", func() {
			chunks := []vector.Chunk{{ID: "a", Seq: 1}, {ID: "b", Seq: 2}}
			var ids []string
			qdrant.ScanPages(context.Background(), pagesOf(chunks), 1, func(c vector.Chunk, _ error) bool {
				ids = append(ids, c.ID)
				return false
			})
			Expect(ids).To(Equal([]string{"a"}))
		})
	})

	Describe("against a live server", func() {
		testutils.StoreConformance(func() vector.Store {
			host := os.Getenv("FOLIO_TEST_QDRANT_HOST")
			if host == "" {
				Skip("FOLIO_TEST_QDRANT_HOST not set, skipping Qdrant tests")
			}
			port, _ := strconv.Atoi(os.Getenv("FOLIO_TEST_QDRANT_PORT"))

			driver, err := qdrant.NewDriver(qdrant.Config{
				Host:       host,
				Port:       port,
				Collection: "folio_test_" + uuid.NewString()[:8],
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			return driver
		})
	})
})
