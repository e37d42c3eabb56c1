package vector_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/vector"
)

var _ = Describe("CosineSimilarity", func() {
	It("is symmetric", func() {
		pairs := [][2][]float32{
			{{1, 2, 3}, {4, 5, 6}},
			{{0.3, -0.7, 0.1, 0.9}, {-0.2, 0.4, 0.8, 0.05}},
			{{1e-3, 1e3}, {5, -5}},
		}
		for _, p := range pairs {
			ab, err := vector.CosineSimilarity(p[0], p[1])
			Expect(err).NotTo(HaveOccurred())
			ba, err := vector.CosineSimilarity(p[1], p[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(ab).To(Equal(ba))
		}
	})

	It("returns 1 for a non-zero vector compared with itself", func() {
		v := []float32{0.12, -3.4, 5.6, 7.8}
		s, err := vector.CosineSimilarity(v, v)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("returns -1 for opposite vectors", func() {
		s, err := vector.CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNumerically("~", -1.0, 1e-9))
	})

	It("returns exactly 0 when a vector is all zeros", func() {
		zero := []float32{0, 0, 0}
		for _, other := range [][]float32{{1, 2, 3}, {0, 0, 0}} {
			s, err := vector.CosineSimilarity(zero, other)
			Expect(err).NotTo(HaveOccurred())
			Expect(math.IsNaN(s)).To(BeFalse())
			Expect(s).To(Equal(0.0))

			s, err = vector.CosineSimilarity(other, zero)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(0.0))
		}
	})

	It("fails with a dimension mismatch for different lengths", func() {
		_, err := vector.CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2})
		Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())

		var dimErr vector.DimensionMismatchError
		Expect(errors.As(err, &dimErr)).To(BeTrue())
		Expect(dimErr.Want).To(Equal(3))
		Expect(dimErr.Got).To(Equal(2))
	})
})

var _ = Describe("Chunk.Validate", func() {
	It("rejects chunks missing required fields", func() {
		cases := []vector.Chunk{
			{Text: "t", Embedding: []float32{1}},
			{DocumentID: "d", Embedding: []float32{1}},
			{DocumentID: "d", Text: "t"},
		}
		for _, c := range cases {
			Expect(errors.Is(c.Validate(), vector.ErrInvalidArgument)).To(BeTrue())
		}
	})

	It("accepts a complete chunk", func() {
		c := vector.Chunk{DocumentID: "d", Text: "t", Embedding: []float32{1}}
		Expect(c.Validate()).To(Succeed())
	})
})
