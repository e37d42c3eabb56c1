// Package sqlstore implements vector.Store on a relational database through
// ent's dialect-aware SQL builder.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/papercomputeco/folio/pkg/vector"
)

// DefaultPageSize is the number of rows fetched per Scan round trip.
const DefaultPageSize = 256

// Options tunes a Store.
type Options struct {
	// Encode serializes embeddings for storage. Defaults to EncodeFloat32.
	Encode func([]float32) ([]byte, error)

	// PageSize defaults to DefaultPageSize.
	PageSize int
}

// Store implements vector.Store on top of an ent SQL driver.
type Store struct {
	drv      *entsql.Driver
	encode   func([]float32) ([]byte, error)
	pageSize int
	logger   *slog.Logger
}

// New creates the chunk schema if needed and returns a Store. The driver's
// dialect must be SQLite or Postgres.
func New(ctx context.Context, drv *entsql.Driver, opts Options, logger *slog.Logger) (*Store, error) {
	ddl, ok := schemas[drv.Dialect()]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL dialect for chunk store: %s", drv.Dialect())
	}

	for _, stmt := range ddl {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if opts.Encode == nil {
		opts.Encode = EncodeFloat32
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	logger.Debug("chunk store initialized", "dialect", drv.Dialect())

	return &Store{
		drv:      drv,
		encode:   opts.Encode,
		pageSize: opts.PageSize,
		logger:   logger,
	}, nil
}

// Insert stores a single chunk. The database assigns Seq.
func (s *Store) Insert(ctx context.Context, chunk vector.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}

	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	blob, err := s.encode(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("%w: serializing embedding for chunk %s: %v", vector.ErrInvalidArgument, chunk.ID, err)
	}

	query, args := entsql.Dialect(s.drv.Dialect()).
		Insert(chunkTable).
		Columns("id", "document_id", "text", "embedding", "created_at").
		Values(chunk.ID, chunk.DocumentID, chunk.Text, blob, chunk.CreatedAt).
		Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return vector.Unavailable("inserting chunk", err)
	}

	return nil
}

// DeleteByDocument removes every chunk owned by documentID.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Delete(chunkTable).
		Where(entsql.EQ("document_id", documentID)).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, vector.Unavailable("deleting chunks", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, vector.Unavailable("counting deleted chunks", err)
	}

	s.logger.Debug("deleted chunks", "document_id", documentID, "count", n)

	return int(n), nil
}

// Scan pages through the table in Seq order. The upper bound is fixed when
// iteration starts, so rows inserted mid-scan are not yielded and no row is
// yielded twice.
func (s *Store) Scan(ctx context.Context) iter.Seq2[vector.Chunk, error] {
	return func(yield func(vector.Chunk, error) bool) {
		upper, err := s.maxSeq(ctx)
		if err != nil {
			yield(vector.Chunk{}, err)
			return
		}

		var last int64
		for last < upper {
			page, err := s.page(ctx, last, upper)
			if err != nil {
				yield(vector.Chunk{}, err)
				return
			}
			if len(page) == 0 {
				return
			}

			for _, c := range page {
				if err := ctx.Err(); err != nil {
					yield(vector.Chunk{}, err)
					return
				}
				if !yield(c, nil) {
					return
				}
			}
			last = page[len(page)-1].Seq
		}
	}
}

func (s *Store) maxSeq(ctx context.Context) (int64, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select(entsql.Max("seq")).
		From(entsql.Table(chunkTable)).
		Query()

	var upper sql.NullInt64
	if err := s.queryRow(ctx, query, args, &upper); err != nil {
		return 0, vector.Unavailable("reading scan bound", err)
	}
	return upper.Int64, nil
}

// page reads up to pageSize chunks with after < seq <= upper. Rows are
// drained and closed before returning so the connection is free while the
// caller yields.
func (s *Store) page(ctx context.Context, after, upper int64) ([]vector.Chunk, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select("id", "document_id", "seq", "text", "embedding", "created_at").
		From(entsql.Table(chunkTable)).
		Where(entsql.And(entsql.GT("seq", after), entsql.LTE("seq", upper))).
		OrderBy("seq").
		Limit(s.pageSize).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, vector.Unavailable("scanning chunks", err)
	}
	defer rows.Close()

	chunks := make([]vector.Chunk, 0, s.pageSize)
	for rows.Next() {
		var (
			c    vector.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Text, &blob, &c.CreatedAt); err != nil {
			return nil, vector.Unavailable("reading chunk row", err)
		}

		emb, err := DecodeFloat32(blob)
		if err != nil {
			return nil, vector.Unavailable("decoding chunk embedding", err)
		}
		c.Embedding = emb
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, vector.Unavailable("iterating chunk rows", err)
	}

	return chunks, nil
}

// Dimensions reports the embedding length of the oldest stored chunk.
func (s *Store) Dimensions(ctx context.Context) (int, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select(dimensionExprs[s.drv.Dialect()]).
		From(entsql.Table(chunkTable)).
		OrderBy("seq").
		Limit(1).
		Query()

	var dims sql.NullInt64
	if err := s.queryRow(ctx, query, args, &dims); err != nil {
		return 0, vector.Unavailable("reading dimensions", err)
	}
	return int(dims.Int64), nil
}

// queryRow scans the first row of a single-column query into dest. An empty
// result leaves dest untouched.
func (s *Store) queryRow(ctx context.Context, query string, args []any, dest any) error {
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}

var _ vector.Store = (*Store)(nil)
