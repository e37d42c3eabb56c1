// Package sqlstore implements documents.Store on a relational database
// through ent's dialect-aware SQL builder.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/vector"
)

const documentTable = "documents"

var schemas = map[string][]string{
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			course_code TEXT NOT NULL,
			type TEXT NOT NULL,
			storage_url TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_course_type ON documents(course_code, type)`,
	},
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			course_code TEXT NOT NULL,
			type TEXT NOT NULL,
			storage_url TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_course_type ON documents(course_code, type)`,
	},
}

var columns = []string{"id", "title", "course_code", "type", "storage_url", "owner_id", "created_at"}

// Store implements documents.Store on top of an ent SQL driver.
type Store struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

// New creates the documents schema if needed and returns a Store.
func New(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) (*Store, error) {
	ddl, ok := schemas[drv.Dialect()]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL dialect for document store: %s", drv.Dialect())
	}

	for _, stmt := range ddl {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{drv: drv, logger: logger}, nil
}

// Create stores a new document.
func (s *Store) Create(ctx context.Context, doc documents.Document) (documents.Document, error) {
	if err := doc.Validate(); err != nil {
		return documents.Document{}, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if _, err := s.FindByID(ctx, doc.ID); err == nil {
		return documents.Document{}, fmt.Errorf("%w: document %s already exists", vector.ErrInvalidArgument, doc.ID)
	}

	query, args := entsql.Dialect(s.drv.Dialect()).
		Insert(documentTable).
		Columns(columns...).
		Values(doc.ID, doc.Title, doc.CourseCode, doc.Type, doc.StorageURL, doc.OwnerID, doc.CreatedAt).
		Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return documents.Document{}, vector.Unavailable("inserting document", err)
	}

	s.logger.Debug("created document", "id", doc.ID, "course", doc.CourseCode)

	return doc, nil
}

// FindByID returns a document by ID.
func (s *Store) FindByID(ctx context.Context, id string) (documents.Document, error) {
	docs, err := s.query(ctx, entsql.EQ("id", id))
	if err != nil {
		return documents.Document{}, err
	}
	if len(docs) == 0 {
		return documents.Document{}, documents.NotFoundError{ID: id}
	}
	return docs[0], nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id string) error {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Delete(documentTable).
		Where(entsql.EQ("id", id)).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return vector.Unavailable("deleting document", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return vector.Unavailable("deleting document", err)
	}
	if n == 0 {
		return documents.NotFoundError{ID: id}
	}
	return nil
}

// Find returns the documents matching filter, newest first.
func (s *Store) Find(ctx context.Context, filter documents.Filter) ([]documents.Document, error) {
	var preds []*entsql.Predicate
	if filter.Course != "" {
		preds = append(preds, entsql.EQ("course_code", filter.Course))
	}
	if filter.Type != "" {
		preds = append(preds, entsql.EQ("type", filter.Type))
	}
	if filter.UploadedBy != "" {
		preds = append(preds, entsql.EQ("owner_id", filter.UploadedBy))
	}

	var where *entsql.Predicate
	if len(preds) > 0 {
		where = entsql.And(preds...)
	}
	return s.query(ctx, where)
}

func (s *Store) query(ctx context.Context, where *entsql.Predicate) ([]documents.Document, error) {
	sel := entsql.Dialect(s.drv.Dialect()).
		Select(columns...).
		From(entsql.Table(documentTable)).
		OrderBy(entsql.Desc("created_at"), "id")
	if where != nil {
		sel = sel.Where(where)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, vector.Unavailable("querying documents", err)
	}
	defer rows.Close()

	var docs []documents.Document
	for rows.Next() {
		var d documents.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.CourseCode, &d.Type, &d.StorageURL, &d.OwnerID, &d.CreatedAt); err != nil {
			return nil, vector.Unavailable("reading document row", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, vector.Unavailable("iterating document rows", err)
	}

	return docs, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}

var _ documents.Store = (*Store)(nil)
