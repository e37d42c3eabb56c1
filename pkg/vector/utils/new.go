// Package vectorutils builds the configured vector.Store.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/inmemory"
	"github.com/papercomputeco/folio/pkg/vector/qdrant"
	"github.com/papercomputeco/folio/pkg/vector/sqlitevec"
	"github.com/papercomputeco/folio/pkg/vector/sqlstore"
)

// Provider names accepted by NewStore.
const (
	ProviderInMemory = "inmemory"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderQdrant   = "qdrant"
)

// SupportedProviders lists every provider NewStore can build.
var SupportedProviders = []string{ProviderInMemory, ProviderSQLite, ProviderPostgres, ProviderQdrant}

type NewStoreOpts struct {
	ProviderType string

	// DB is the shared relational database used by the sqlite and postgres
	// providers. Its dialect must match ProviderType.
	DB *entsql.Driver

	// Qdrant configures the qdrant provider.
	Qdrant qdrant.Config

	Logger *slog.Logger
}

func NewStore(ctx context.Context, o *NewStoreOpts) (vector.Store, error) {
	switch o.ProviderType {
	case ProviderInMemory:
		return inmemory.NewDriver(), nil
	case ProviderSQLite:
		if o.DB == nil {
			return nil, fmt.Errorf("sqlite vector store requires a database")
		}
		return sqlitevec.NewDriverFromDB(ctx, o.DB, o.Logger)
	case ProviderPostgres:
		if o.DB == nil {
			return nil, fmt.Errorf("postgres vector store requires a database")
		}
		return sqlstore.New(ctx, o.DB, sqlstore.Options{}, o.Logger)
	case ProviderQdrant:
		return qdrant.NewDriver(o.Qdrant, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
