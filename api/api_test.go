package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/documents"
	docsinmemory "github.com/papercomputeco/folio/pkg/documents/inmemory"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/search"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/inmemory"
)

// apiEnv bundles a server with the stores behind it.
type apiEnv struct {
	server   *Server
	docs     *docsinmemory.Driver
	chunks   *inmemory.Driver
	embedder *testutils.MockEmbedder
	pipeline *ingest.Pipeline
}

func newAPIEnv(policy ingest.Policy, mutate func(*Config)) *apiEnv {
	env := &apiEnv{
		docs:     docsinmemory.NewDriver(),
		chunks:   inmemory.NewDriver(),
		embedder: testutils.NewMockEmbedder(),
	}

	var err error
	env.pipeline, err = ingest.New(ingest.Config{
		Store:    env.chunks,
		Embedder: env.embedder,
		Policy:   policy,
		Logger:   logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	engine, err := search.NewEngine(search.Config{
		Embedder:  env.embedder,
		Chunks:    env.chunks,
		Documents: env.docs,
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	config := Config{
		ListenAddr: ":0",
		Documents:  env.docs,
		Chunks:     env.chunks,
		Pipeline:   env.pipeline,
		Engine:     engine,
	}
	if mutate != nil {
		mutate(&config)
	}

	env.server, err = NewServer(config, logger.Nop())
	Expect(err).NotTo(HaveOccurred())

	return env
}

// do sends a request and decodes the JSON response body into out when set.
func (e *apiEnv) do(method, path string, body any, out any) int {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, path, r)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(raw, out)).To(Succeed(), string(raw))
	}

	return resp.StatusCode
}

func (e *apiEnv) createDocument(title, course, text string) documents.Document {
	var out CreateDocumentResponse
	status := e.do(http.MethodPost, "/v1/documents", map[string]any{
		"title":  title,
		"course": course,
		"type":   "notes",
		"text":   text,
	}, &out)
	Expect(status).To(Equal(fiber.StatusCreated))
	return out.Document
}

func (e *apiEnv) chunkCount(documentID string) int {
	n := 0
	for _, c := range testutils.CollectChunks(context.Background(), e.chunks) {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n
}

var _ = Describe("NewServer", func() {
	It("requires its collaborators", func() {
		_, err := NewServer(Config{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("document store is required")))
	})

	It("rejects an unknown default search mode", func() {
		env := newAPIEnv(ingest.PolicyBestEffort, nil)
		config := env.server.config
		config.SearchMode = "ranked"
		_, err := NewServer(config, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported search mode")))
	})

	It("applies defaults", func() {
		env := newAPIEnv(ingest.PolicyBestEffort, nil)
		Expect(env.server.config.ChunkSize).To(Equal(600))
		Expect(env.server.config.SearchMode).To(Equal(search.ModeGrouped))
	})
})

var _ = Describe("handlePing", func() {
	It("returns pong", func() {
		env := newAPIEnv(ingest.PolicyBestEffort, nil)
		var out string
		Expect(env.do(http.MethodGet, "/ping", nil, &out)).To(Equal(fiber.StatusOK))
		Expect(out).To(Equal("pong"))
	})
})

var _ = Describe("statusFor", func() {
	DescribeTable("maps errors to HTTP statuses",
		func(err error, status int) {
			Expect(statusFor(err)).To(Equal(status))
		},
		Entry("invalid argument", fmt.Errorf("%w: bad", vector.ErrInvalidArgument), fiber.StatusBadRequest),
		Entry("not found", documents.NotFoundError{ID: "x"}, fiber.StatusNotFound),
		Entry("dimension mismatch", vector.DimensionMismatchError{Want: 384, Got: 768}, fiber.StatusConflict),
		Entry("provider unavailable", fmt.Errorf("%w: down", vector.ErrProviderUnavailable), fiber.StatusBadGateway),
		Entry("malformed response", fmt.Errorf("%w: junk", vector.ErrMalformedResponse), fiber.StatusBadGateway),
		Entry("storage unavailable", vector.Unavailable("insert", errors.New("disk full")), fiber.StatusServiceUnavailable),
		Entry("deadline", context.DeadlineExceeded, fiber.StatusGatewayTimeout),
		Entry("unknown", errors.New("boom"), fiber.StatusInternalServerError),
	)

	It("reports partial ingestion ahead of the segment errors it wraps", func() {
		err := &ingest.PartialError{
			Succeeded: 1,
			Failed:    1,
			Errs:      []error{fmt.Errorf("segment 1: %w", vector.ErrProviderUnavailable)},
		}
		Expect(statusFor(err)).To(Equal(fiber.StatusMultiStatus))
	})
})

var _ = Describe("MCP mount", func() {
	It("routes /mcp to the configured handler", func() {
		env := newAPIEnv(ingest.PolicyBestEffort, func(c *Config) {
			c.MCPHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})
		})
		Expect(env.do(http.MethodPost, "/mcp", map[string]any{}, nil)).To(Equal(http.StatusTeapot))
	})

	It("is absent when no handler is configured", func() {
		env := newAPIEnv(ingest.PolicyBestEffort, nil)
		Expect(env.do(http.MethodPost, "/mcp", map[string]any{}, nil)).To(Equal(fiber.StatusNotFound))
	})
})
