package huggingface_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/embeddings/huggingface"
	"github.com/papercomputeco/folio/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server  *httptest.Server
		reply   string
		status  int
		gotPath string
		gotAuth string
		gotWait string
		gotBody map[string]string
	)

	BeforeEach(func() {
		reply = `[0.1, 0.2, 0.3]`
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotWait = r.Header.Get("x-wait-for-model")
			gotBody = map[string]string{}
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func() *huggingface.Embedder {
		e, err := huggingface.NewEmbedder(huggingface.EmbedderConfig{
			BaseURL: server.URL + "/models",
			APIKey:  "hf_test",
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("posts inputs to the default model with auth and wait headers", func() {
		emb, err := newEmbedder().Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.1, 0.2, 0.3}))

		Expect(gotPath).To(Equal("/models/" + huggingface.DefaultEmbeddingModel))
		Expect(gotAuth).To(Equal("Bearer hf_test"))
		Expect(gotWait).To(Equal("true"))
		Expect(gotBody).To(HaveKeyWithValue("inputs", "hello"))
	})

	It("unwraps a nested response", func() {
		reply = `[[0.5, 0.6]]`
		emb, err := newEmbedder().Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.5, 0.6}))
	})

	It("rejects deeper nesting as malformed", func() {
		reply = `[[[0.5, 0.6]]]`
		_, err := newEmbedder().Embed(context.Background(), "hello")
		Expect(errors.Is(err, vector.ErrMalformedResponse)).To(BeTrue())
	})

	It("maps error statuses to ErrProviderUnavailable", func() {
		status = http.StatusTooManyRequests
		reply = `{"error":"rate limited"}`
		_, err := newEmbedder().Embed(context.Background(), "hello")
		Expect(errors.Is(err, vector.ErrProviderUnavailable)).To(BeTrue())
	})
})
