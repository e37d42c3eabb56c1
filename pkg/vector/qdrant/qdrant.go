// Package qdrant provides a vector.Store backed by a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultCollection is the collection chunks are written to.
	DefaultCollection = "folio_chunks"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// DefaultPageSize is the number of points fetched per Scroll call.
	DefaultPageSize = 256
)

// Payload keys.
const (
	keyDocumentID = "document_id"
	keySeq        = "seq"
	keyText       = "text"
	keyCreatedAt  = "created_at"
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// Collection defaults to DefaultCollection.
	Collection string

	// PageSize defaults to DefaultPageSize.
	PageSize int
}

// Driver implements vector.Store on Qdrant. The collection is created with
// cosine distance at the dimensionality of the first inserted chunk.
type Driver struct {
	client     *qc.Client
	collection string
	pageSize   int
	logger     *slog.Logger

	mu      sync.Mutex
	ready   bool
	lastSeq int64
}

// NewDriver connects to Qdrant.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	logger.Info("qdrant vector driver initialized",
		"host", c.Host,
		"port", c.Port,
		"collection", c.Collection,
	)

	return &Driver{
		client:     client,
		collection: c.Collection,
		pageSize:   c.PageSize,
		logger:     logger,
	}, nil
}

// ensureCollection creates the collection and its payload indexes on first
// use, or seeds lastSeq from an existing collection's highest seq. Callers
// must hold d.mu.
func (d *Driver) ensureCollection(ctx context.Context, dims int) error {
	if d.ready {
		return nil
	}

	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return vector.Unavailable("checking collection", err)
	}

	if !exists {
		err := d.client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: d.collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(dims),
				Distance: qc.Distance_Cosine,
			}),
		})
		if err != nil {
			return vector.Unavailable("creating collection", err)
		}

		for field, typ := range map[string]qc.FieldType{
			keyDocumentID: qc.FieldType_FieldTypeKeyword,
			keySeq:        qc.FieldType_FieldTypeInteger,
		} {
			_, err := d.client.CreateFieldIndex(ctx, &qc.CreateFieldIndexCollection{
				CollectionName: d.collection,
				Wait:           qc.PtrOf(true),
				FieldName:      field,
				FieldType:      qc.PtrOf(typ),
			})
			if err != nil {
				return vector.Unavailable("creating payload index "+field, err)
			}
		}

		d.logger.Info("created qdrant collection", "collection", d.collection, "dimensions", dims)
	} else {
		top, err := d.scroll(ctx, nil, qc.Direction_Desc, 1)
		if err != nil {
			return err
		}
		if len(top) > 0 {
			d.lastSeq = max(d.lastSeq, top[0].Seq)
		}
	}

	d.ready = true
	return nil
}

// nextSeq returns a strictly increasing, time-derived sequence number in
// microseconds, above every seq seen in the collection. Other processes
// writing the same collection may still pick an equal seq. Callers must hold
// d.mu.
func (d *Driver) nextSeq() int64 {
	seq := max(time.Now().UnixMicro(), d.lastSeq+1)
	d.lastSeq = seq
	return seq
}

// Insert upserts a single chunk as a point.
func (d *Driver) Insert(ctx context.Context, chunk vector.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}

	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureCollection(ctx, len(chunk.Embedding)); err != nil {
		return err
	}
	chunk.Seq = d.nextSeq()

	_, err := d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         []*qc.PointStruct{pointFromChunk(chunk)},
	})
	if err != nil {
		return vector.Unavailable("upserting chunk", err)
	}

	return nil
}

// DeleteByDocument removes every point whose payload names documentID.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return 0, vector.Unavailable("checking collection", err)
	}
	if !exists {
		return 0, nil
	}

	filter := &qc.Filter{Must: []*qc.Condition{qc.NewMatch(keyDocumentID, documentID)}}

	n, err := d.client.Count(ctx, &qc.CountPoints{
		CollectionName: d.collection,
		Filter:         filter,
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return 0, vector.Unavailable("counting chunks", err)
	}
	if n == 0 {
		return 0, nil
	}

	_, err = d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, vector.Unavailable("deleting chunks", err)
	}

	return int(n), nil
}

// Scan pages through the collection ordered by seq, bounded by the highest
// seq present when iteration starts. Concurrent writers may share a seq, so
// pages are keyed on seq and point ID together.
func (d *Driver) Scan(ctx context.Context) iter.Seq2[vector.Chunk, error] {
	return func(yield func(vector.Chunk, error) bool) {
		exists, err := d.client.CollectionExists(ctx, d.collection)
		if err != nil {
			yield(vector.Chunk{}, vector.Unavailable("checking collection", err))
			return
		}
		if !exists {
			return
		}

		top, err := d.scroll(ctx, nil, qc.Direction_Desc, 1)
		if err != nil {
			yield(vector.Chunk{}, err)
			return
		}
		if len(top) == 0 {
			return
		}
		upper := top[0].Seq

		fetch := func(from int64, limit int) ([]vector.Chunk, error) {
			return d.scroll(ctx, &qc.Range{
				Gte: qc.PtrOf(float64(from)),
				Lte: qc.PtrOf(float64(upper)),
			}, qc.Direction_Asc, limit)
		}
		scanPages(ctx, fetch, d.pageSize, yield)
	}
}

// scanPages walks seq-ordered pages starting at the last seen seq, so chunks
// sharing a seq are never lost across a page boundary. IDs already yielded at
// the current seq are skipped; a page holding nothing new is refetched with a
// larger limit until it gets past the tied points.
func scanPages(ctx context.Context, fetch func(from int64, limit int) ([]vector.Chunk, error), pageSize int, yield func(vector.Chunk, error) bool) {
	var (
		last  int64
		seen  = make(map[string]struct{})
		limit = pageSize
	)

	for {
		page, err := fetch(last, limit)
		if err != nil {
			yield(vector.Chunk{}, err)
			return
		}

		fresh := 0
		for _, c := range page {
			if c.Seq == last {
				if _, ok := seen[c.ID]; ok {
					continue
				}
			}
			if err := ctx.Err(); err != nil {
				yield(vector.Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}

			if c.Seq != last {
				last = c.Seq
				clear(seen)
			}
			seen[c.ID] = struct{}{}
			fresh++
		}

		if len(page) < limit {
			return
		}
		if fresh == 0 {
			limit *= 2
			continue
		}
		limit = pageSize
	}
}

func (d *Driver) scroll(ctx context.Context, seqRange *qc.Range, dir qc.Direction, limit int) ([]vector.Chunk, error) {
	req := &qc.ScrollPoints{
		CollectionName: d.collection,
		Limit:          qc.PtrOf(uint32(limit)),
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
		OrderBy: &qc.OrderBy{
			Key:       keySeq,
			Direction: qc.PtrOf(dir),
		},
	}
	if seqRange != nil {
		req.Filter = &qc.Filter{Must: []*qc.Condition{qc.NewRange(keySeq, seqRange)}}
	}

	points, err := d.client.Scroll(ctx, req)
	if err != nil {
		return nil, vector.Unavailable("scrolling chunks", err)
	}

	chunks := make([]vector.Chunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, chunkFromPoint(p.GetId(), p.GetPayload(), p.GetVectors()))
	}
	return chunks, nil
}

// Dimensions reports the embedding length of the oldest point.
func (d *Driver) Dimensions(ctx context.Context) (int, error) {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return 0, vector.Unavailable("checking collection", err)
	}
	if !exists {
		return 0, nil
	}

	first, err := d.scroll(ctx, nil, qc.Direction_Asc, 1)
	if err != nil {
		return 0, err
	}
	if len(first) == 0 {
		return 0, nil
	}
	return len(first[0].Embedding), nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func pointFromChunk(c vector.Chunk) *qc.PointStruct {
	return &qc.PointStruct{
		Id:      qc.NewID(c.ID),
		Vectors: qc.NewVectors(c.Embedding...),
		Payload: qc.NewValueMap(map[string]any{
			keyDocumentID: c.DocumentID,
			keySeq:        c.Seq,
			keyText:       c.Text,
			keyCreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339Nano),
		}),
	}
}

func chunkFromPoint(id *qc.PointId, payload map[string]*qc.Value, vectors *qc.VectorsOutput) vector.Chunk {
	c := vector.Chunk{
		ID:         id.GetUuid(),
		DocumentID: payload[keyDocumentID].GetStringValue(),
		Seq:        payload[keySeq].GetIntegerValue(),
		Text:       payload[keyText].GetStringValue(),
		Embedding:  denseData(vectors.GetVector()),
	}
	if t, err := time.Parse(time.RFC3339Nano, payload[keyCreatedAt].GetStringValue()); err == nil {
		c.CreatedAt = t
	}
	return c
}

// denseData reads a dense vector from either the current or the legacy
// response layout.
func denseData(v *qc.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData() //nolint:staticcheck // servers before 1.13 only fill Data
}

var _ vector.Store = (*Driver)(nil)
