// Package sqlitevec provides a SQLite-backed chunk store whose embeddings are
// stored in sqlite-vec's float32 BLOB format.
package sqlitevec

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/papercomputeco/folio/pkg/storage/sqlite"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/sqlstore"
)

// Driver implements vector.Store using SQLite with sqlite-vec.
type Driver struct {
	*sqlstore.Store
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewDriver opens the database at c.DBPath and returns a sqlite-vec chunk
// store on it.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	drv, err := sqlite.Open(c.DBPath)
	if err != nil {
		return nil, err
	}

	d, err := NewDriverFromDB(ctx, drv, logger)
	if err != nil {
		drv.Close()
		return nil, err
	}

	logger.Info("sqlite-vec vector driver initialized", "db_path", c.DBPath)

	return d, nil
}

// NewDriverFromDB builds the store on an already opened SQLite driver, so
// it can share a database with the document store.
func NewDriverFromDB(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) (*Driver, error) {
	if drv.Dialect() != dialect.SQLite {
		return nil, fmt.Errorf("sqlite-vec requires a sqlite database, got %s", drv.Dialect())
	}

	store, err := sqlstore.New(ctx, drv, sqlstore.Options{
		Encode: sqlite_vec.SerializeFloat32,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Driver{Store: store}, nil
}

var _ vector.Store = (*Driver)(nil)
