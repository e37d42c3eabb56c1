// Package storage opens the relational database shared by the document
// metadata store and the SQL-backed chunk stores.
package storage

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/folio/pkg/storage/postgres"
	"github.com/papercomputeco/folio/pkg/storage/sqlite"
)

// Supported storage providers.
const (
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderInMemory = "inmemory"
)

// Config selects and locates the backing database.
type Config struct {
	// Provider is one of ProviderSQLite or ProviderPostgres.
	Provider string

	// SQLitePath is the database file for the sqlite provider. ":memory:"
	// opens a private in-memory database.
	SQLitePath string

	// PostgresDSN is the connection string for the postgres provider.
	PostgresDSN string
}

// Open connects to the configured database and returns an ent SQL driver
// ready for use with the dialect builders.
func Open(ctx context.Context, c Config) (*entsql.Driver, error) {
	switch c.Provider {
	case ProviderSQLite:
		return sqlite.Open(c.SQLitePath)
	case ProviderPostgres:
		return postgres.Open(ctx, c.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", c.Provider)
	}
}
