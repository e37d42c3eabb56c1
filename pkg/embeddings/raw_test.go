package embeddings_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/vector"
)

var _ = Describe("DecodeRaw", func() {
	It("decodes a flat vector", func() {
		raw, err := embeddings.DecodeRaw([]byte(`[0.1, 0.2, 0.3]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(BeAssignableToTypeOf(embeddings.Flat{}))

		emb, err := raw.Normalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.1, 0.2, 0.3}))
	})

	It("unwraps exactly one level of nesting", func() {
		raw, err := embeddings.DecodeRaw([]byte(`[[0.1, 0.2, 0.3], [9, 9, 9]]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(BeAssignableToTypeOf(embeddings.NestedOnce{}))

		emb, err := raw.Normalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.1, 0.2, 0.3}))
	})

	DescribeTable("rejects malformed payloads",
		func(payload string) {
			_, err := decodeAndNormalize(payload)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, vector.ErrMalformedResponse)).To(BeTrue())
		},
		Entry("an object", `{"error": "model loading"}`),
		Entry("an empty array", `[]`),
		Entry("an empty nested row", `[[]]`),
		Entry("two levels of nesting", `[[[0.1, 0.2]]]`),
		Entry("mixed shapes", `[[0.1], 0.2]`),
		Entry("non-numeric entries", `["a", "b"]`),
		Entry("null entries", `[0.1, null, 0.3]`),
		Entry("a lone null entry", `[null]`),
		Entry("null row entry", `[[null]]`),
		Entry("invalid JSON", `[0.1,`),
	)
})

var _ = Describe("Vector", func() {
	It("decodes numeric entries", func() {
		var v embeddings.Vector
		Expect(json.Unmarshal([]byte(`[1, 2.5]`), &v)).To(Succeed())
		Expect([]float32(v)).To(Equal([]float32{1, 2.5}))
	})

	It("rejects null entries inside an object", func() {
		var body struct {
			Embedding embeddings.Vector `json:"embedding"`
		}
		err := json.Unmarshal([]byte(`{"embedding": [0.1, null]}`), &body)
		Expect(errors.Is(err, vector.ErrMalformedResponse)).To(BeTrue())
	})
})

func decodeAndNormalize(payload string) ([]float32, error) {
	raw, err := embeddings.DecodeRaw([]byte(payload))
	if err != nil {
		return nil, err
	}
	return raw.Normalize()
}
