// Package ingest turns extracted document text into stored, embedded chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/eventstream"
	"github.com/papercomputeco/folio/pkg/eventstream/nop"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/vector"
)

// Config wires the collaborators of a Pipeline.
type Config struct {
	// Store receives the embedded chunks.
	Store vector.Store

	// Embedder generates one embedding per chunk.
	Embedder embeddings.Embedder

	// Publisher receives an event after each run that stored at least one
	// chunk. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Policy defaults to PolicyBestEffort.
	Policy Policy

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Options adjust a single ingestion run.
type Options struct {
	// Replace removes the document's existing chunks before ingesting.
	Replace bool
}

// Pipeline chunks, embeds and stores document text.
type Pipeline struct {
	store     vector.Store
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
	policy    Policy
	logger    *slog.Logger

	// dimsMu guards dims. Zero means the store had no committed
	// dimensionality when it was last loaded.
	dimsMu     sync.Mutex
	dims       int
	dimsLoaded bool
}

// New creates a Pipeline.
func New(c Config) (*Pipeline, error) {
	if c.Store == nil {
		return nil, errors.New("ingest pipeline requires a vector store")
	}
	if c.Embedder == nil {
		return nil, errors.New("ingest pipeline requires an embedder")
	}

	policy, err := ParsePolicy(string(c.Policy))
	if err != nil {
		return nil, err
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Pipeline{
		store:     c.Store,
		embedder:  c.Embedder,
		publisher: c.Publisher,
		policy:    policy,
		logger:    c.Logger,
	}, nil
}

// Policy reports the failure policy the pipeline runs with.
func (p *Pipeline) Policy() Policy {
	return p.policy
}

// Ingest chunks text, embeds each chunk and stores it under documentID. It
// returns the number of chunks created.
//
// Under PolicyBestEffort a failed embedding is skipped and reported at the end
// as a *PartialError alongside the count of stored chunks. Under
// PolicyAllOrNothing every segment is embedded before anything is written;
// the first failure returns 0 and leaves the store as it was, and a storage
// failure while writing removes the chunks written so far. Dimension
// mismatches and storage failures stop the run under either policy.
func (p *Pipeline) Ingest(ctx context.Context, documentID, text string, maxChunkSize int) (int, error) {
	return p.IngestWithOptions(ctx, documentID, text, maxChunkSize, Options{})
}

// IngestWithOptions is Ingest with per-run options.
//
// With Options.Replace the document's existing chunks are removed before the
// first new chunk is written. Under PolicyAllOrNothing that happens only once
// every segment is embedded, so an embedding failure keeps the old chunks. A
// storage failure after the removal leaves the document without chunks.
func (p *Pipeline) IngestWithOptions(ctx context.Context, documentID, text string, maxChunkSize int, opts Options) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, fmt.Errorf("%w: document id is required", vector.ErrInvalidArgument)
	}

	segments, err := chunker.Chunk(text, maxChunkSize)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	log := p.logger.With("document_id", documentID, "policy", string(p.policy))
	log.Debug("ingesting document", "segments", len(segments), "chunk_size", maxChunkSize)

	if p.policy == PolicyAllOrNothing {
		return p.ingestAll(ctx, log, documentID, segments, opts, start)
	}

	if opts.Replace {
		if err := p.replace(ctx, log, documentID); err != nil {
			return 0, err
		}
	}

	var (
		created int
		errs    []error
	)

	for i, segment := range segments {
		if err := ctx.Err(); err != nil {
			return p.abort(ctx, log, documentID, created, err)
		}

		embedding, err := p.embedder.Embed(ctx, segment)
		if err != nil {
			log.Warn("failed to embed segment, skipping", "segment", i, "error", err)
			errs = append(errs, fmt.Errorf("segment %d: %w", i, err))
			continue
		}

		if err := p.checkDimensions(ctx, len(embedding)); err != nil {
			return p.abort(ctx, log, documentID, created, err)
		}

		if err := p.store.Insert(ctx, newChunk(documentID, segment, embedding)); err != nil {
			return p.abort(ctx, log, documentID, created, fmt.Errorf("storing segment %d: %w", i, err))
		}

		created++
	}

	if created > 0 {
		p.publish(ctx, log, documentID, created, len(errs), time.Since(start))
	}

	if len(errs) > 0 {
		log.Warn("document partially ingested", "succeeded", created, "failed", len(errs))
		return created, &PartialError{Succeeded: created, Failed: len(errs), Errs: errs}
	}

	log.Info("document ingested", "chunks_created", created, "duration", time.Since(start))

	return created, nil
}

// ingestAll embeds every segment, then writes them. Nothing is written, and
// nothing replaced, unless every segment embedded.
func (p *Pipeline) ingestAll(ctx context.Context, log *slog.Logger, documentID string, segments []string, opts Options, start time.Time) (int, error) {
	pending := make([]vector.Chunk, 0, len(segments))

	for i, segment := range segments {
		if err := ctx.Err(); err != nil {
			return p.abort(ctx, log, documentID, 0, err)
		}

		embedding, err := p.embedder.Embed(ctx, segment)
		if err != nil {
			return p.abort(ctx, log, documentID, 0, fmt.Errorf("embedding segment %d: %w", i, err))
		}

		if err := p.checkDimensions(ctx, len(embedding)); err != nil {
			return p.abort(ctx, log, documentID, 0, err)
		}

		pending = append(pending, newChunk(documentID, segment, embedding))
	}

	if opts.Replace {
		if err := p.replace(ctx, log, documentID); err != nil {
			return 0, err
		}
	}

	created := 0
	for i, chunk := range pending {
		if err := p.store.Insert(ctx, chunk); err != nil {
			return p.abort(ctx, log, documentID, created, fmt.Errorf("storing segment %d: %w", i, err))
		}
		created++
	}

	if created > 0 {
		p.publish(ctx, log, documentID, created, 0, time.Since(start))
	}

	log.Info("document ingested", "chunks_created", created, "duration", time.Since(start))

	return created, nil
}

func (p *Pipeline) replace(ctx context.Context, log *slog.Logger, documentID string) error {
	removed, err := p.store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("replacing chunks: %w", err)
	}
	log.Debug("removed existing chunks", "count", removed)
	return nil
}

func newChunk(documentID, text string, embedding []float32) vector.Chunk {
	return vector.Chunk{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Text:       text,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}
}

// abort ends a run on a fatal error. Under PolicyAllOrNothing the chunks
// stored so far are deleted and the count reported is 0.
func (p *Pipeline) abort(ctx context.Context, log *slog.Logger, documentID string, created int, cause error) (int, error) {
	if p.policy != PolicyAllOrNothing {
		log.Error("ingestion stopped", "chunks_created", created, "error", cause)
		return created, cause
	}

	if created > 0 {
		removed, err := p.store.DeleteByDocument(context.WithoutCancel(ctx), documentID)
		if err != nil {
			log.Error("rollback failed", "error", err)
			return 0, errors.Join(cause, fmt.Errorf("rolling back %s: %w", documentID, err))
		}
		log.Info("rolled back partial ingestion", "chunks_removed", removed)
	}

	log.Error("ingestion aborted", "error", cause)

	return 0, cause
}

// checkDimensions compares n with the dimensionality committed to the store.
// The first embedding written to an empty store commits its length.
func (p *Pipeline) checkDimensions(ctx context.Context, n int) error {
	p.dimsMu.Lock()
	defer p.dimsMu.Unlock()

	if !p.dimsLoaded || p.dims == 0 {
		dims, err := p.store.Dimensions(ctx)
		if err != nil {
			return err
		}
		p.dims = dims
		p.dimsLoaded = true
	}

	if p.dims == 0 {
		p.dims = n
		return nil
	}

	if p.dims != n {
		return vector.DimensionMismatchError{Want: p.dims, Got: n}
	}

	return nil
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, documentID string, created, failed int, took time.Duration) {
	p.dimsMu.Lock()
	dims := p.dims
	p.dimsMu.Unlock()

	event := &eventstream.DocumentIngestedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeDocumentIngested,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		DocumentID:    documentID,
		ChunksCreated: created,
		ChunksFailed:  failed,
		Dimensions:    dims,
		Policy:        string(p.policy),
		DurationMs:    took.Milliseconds(),
	}

	if err := p.publisher.PublishDocumentIngested(ctx, event); err != nil {
		log.Warn("failed to publish ingestion event", "error", err)
	}
}
