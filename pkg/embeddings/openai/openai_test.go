package openai_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/embeddings/openai"
	"github.com/papercomputeco/folio/pkg/vector"
)

var _ = Describe("Embedder", func() {
	It("requires an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
	})

	It("returns the first data embedding", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
			_, _ = w.Write([]byte(`{"data":[{"embedding":[0.25,0.5]}],"model":"text-embedding-3-large"}`))
		}))
		defer server.Close()

		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		emb, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.25, 0.5}))
	})

	It("treats an empty data list as malformed", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, vector.ErrMalformedResponse)).To(BeTrue())
	})

	It("rejects null entries in the embedding", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"embedding":[0.25,null]}]}`))
		}))
		defer server.Close()

		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, vector.ErrMalformedResponse)).To(BeTrue())
	})
})
