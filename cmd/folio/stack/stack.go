// Package stack assembles the stores, embedder and services that folio
// commands share, from resolved configuration.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/spf13/viper"

	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/documents"
	docsinmemory "github.com/papercomputeco/folio/pkg/documents/inmemory"
	docssql "github.com/papercomputeco/folio/pkg/documents/sqlstore"
	"github.com/papercomputeco/folio/pkg/dotdir"
	"github.com/papercomputeco/folio/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/folio/pkg/embeddings/utils"
	"github.com/papercomputeco/folio/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/folio/pkg/eventstream/utils"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/search"
	"github.com/papercomputeco/folio/pkg/storage"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/qdrant"
	vectorutils "github.com/papercomputeco/folio/pkg/vector/utils"
)

// Settings is the resolved configuration of a folio process.
type Settings struct {
	StorageProvider string
	SQLitePath      string
	PostgresDSN     string

	VectorProvider   string
	VectorTarget     string
	VectorCollection string

	EmbeddingProvider string
	EmbeddingTarget   string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingDims     int
	EmbeddingTimeout  time.Duration
	EmbeddingRate     float64
	EmbeddingBurst    int

	ChunkSize int
	Policy    ingest.Policy
	Workers   uint
	QueueSize uint

	TopK       int
	GroupCap   int
	SearchMode string

	APIListen string
	APITarget string

	EventsProvider string
	KafkaBrokers   []string
	KafkaTopic     string
}

// SettingsFromViper reads Settings from v. An empty SQLite path resolves to
// the database file in the .folio directory, and an unset embedding model
// takes the provider preset's model, target and dimensions.
func SettingsFromViper(v *viper.Viper, configDir string) (Settings, error) {
	policy, err := ingest.ParsePolicy(v.GetString("ingest.policy"))
	if err != nil {
		return Settings{}, err
	}

	timeout, err := config.EmbeddingConfig{Timeout: v.GetString("embedding.timeout")}.TimeoutDuration()
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		StorageProvider: v.GetString("storage.provider"),
		SQLitePath:      v.GetString("storage.sqlite_path"),
		PostgresDSN:     v.GetString("storage.postgres_dsn"),

		VectorProvider:   v.GetString("vector_store.provider"),
		VectorTarget:     v.GetString("vector_store.target"),
		VectorCollection: v.GetString("vector_store.collection"),

		EmbeddingProvider: v.GetString("embedding.provider"),
		EmbeddingTarget:   v.GetString("embedding.target"),
		EmbeddingModel:    v.GetString("embedding.model"),
		EmbeddingAPIKey:   v.GetString(config.APIKeyViperKey),
		EmbeddingDims:     v.GetInt("embedding.dimensions"),
		EmbeddingTimeout:  timeout,
		EmbeddingRate:     v.GetFloat64("embedding.rate_limit"),
		EmbeddingBurst:    v.GetInt("embedding.burst"),

		ChunkSize: v.GetInt("ingest.chunk_size"),
		Policy:    policy,
		Workers:   v.GetUint("ingest.workers"),
		QueueSize: v.GetUint("ingest.queue_size"),

		TopK:       v.GetInt("search.top_k"),
		GroupCap:   v.GetInt("search.group_cap"),
		SearchMode: v.GetString("search.mode"),

		APIListen: v.GetString("api.listen"),
		APITarget: v.GetString("client.api_target"),

		EventsProvider: v.GetString("events.provider"),
		KafkaBrokers:   splitList(v.GetString("events.brokers")),
		KafkaTopic:     v.GetString("events.topic"),
	}

	if s.usesSQLite() && s.SQLitePath == "" {
		s.SQLitePath, err = dotdir.NewManager().DatabasePath(configDir)
		if err != nil {
			return Settings{}, fmt.Errorf("resolving database path: %w", err)
		}
	}

	if s.EmbeddingModel == "" {
		preset, err := config.PresetConfig(s.EmbeddingProvider)
		if err != nil {
			return Settings{}, err
		}
		s.EmbeddingModel = preset.Embedding.Model
		if s.EmbeddingTarget == "" {
			s.EmbeddingTarget = preset.Embedding.Target
		}
		if s.EmbeddingDims == 0 {
			s.EmbeddingDims = int(preset.Embedding.Dimensions)
		}
	}

	return s, nil
}

func (s Settings) usesSQLite() bool {
	return s.StorageProvider == storage.ProviderSQLite || s.VectorProvider == vectorutils.ProviderSQLite
}

// databaseProvider picks the relational database to open, if any. The SQL
// vector stores share the document store's database.
func (s Settings) databaseProvider() (string, error) {
	sqlStorage := s.StorageProvider == storage.ProviderSQLite || s.StorageProvider == storage.ProviderPostgres
	sqlVectors := s.VectorProvider == vectorutils.ProviderSQLite || s.VectorProvider == vectorutils.ProviderPostgres

	switch {
	case sqlStorage && sqlVectors && s.StorageProvider != s.VectorProvider:
		return "", fmt.Errorf("vector store provider %s cannot share a %s database", s.VectorProvider, s.StorageProvider)
	case sqlStorage:
		return s.StorageProvider, nil
	case sqlVectors:
		return s.VectorProvider, nil
	default:
		return "", nil
	}
}

// Stack holds the opened collaborators of a folio process.
type Stack struct {
	Settings Settings

	Documents documents.Store
	Chunks    vector.Store
	Embedder  embeddings.Embedder
	Publisher eventstream.Publisher
	Pipeline  *ingest.Pipeline
	Engine    *search.Engine

	db     *entsql.Driver
	logger *slog.Logger
}

// Open connects every store and builds the pipeline and engine. The caller
// must Close the returned Stack.
func Open(ctx context.Context, s Settings, logger *slog.Logger) (_ *Stack, err error) {
	st := &Stack{Settings: s, logger: logger}
	defer func() {
		if err != nil {
			_ = st.Close()
		}
	}()

	dbProvider, err := s.databaseProvider()
	if err != nil {
		return nil, err
	}
	if dbProvider != "" {
		st.db, err = storage.Open(ctx, storage.Config{
			Provider:    dbProvider,
			SQLitePath:  s.SQLitePath,
			PostgresDSN: s.PostgresDSN,
		})
		if err != nil {
			return nil, fmt.Errorf("opening %s database: %w", dbProvider, err)
		}
		logger.Debug("database opened", "provider", dbProvider, "sqlite_path", s.SQLitePath)
	}

	switch s.StorageProvider {
	case storage.ProviderInMemory:
		st.Documents = docsinmemory.NewDriver()
	case storage.ProviderSQLite, storage.ProviderPostgres:
		st.Documents, err = docssql.New(ctx, st.db, logger)
		if err != nil {
			return nil, fmt.Errorf("creating document store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", s.StorageProvider)
	}

	qcfg, err := qdrantConfig(s)
	if err != nil {
		return nil, err
	}
	st.Chunks, err = vectorutils.NewStore(ctx, &vectorutils.NewStoreOpts{
		ProviderType: s.VectorProvider,
		DB:           st.db,
		Qdrant:       qcfg,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	st.Embedder, err = embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
		ProviderType: s.EmbeddingProvider,
		TargetURL:    s.EmbeddingTarget,
		Model:        s.EmbeddingModel,
		APIKey:       s.EmbeddingAPIKey,
		Dimensions:   s.EmbeddingDims,
		Timeout:      s.EmbeddingTimeout,
		RateLimit:    s.EmbeddingRate,
		Burst:        s.EmbeddingBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	st.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: s.EventsProvider,
		Brokers:      s.KafkaBrokers,
		Topic:        s.KafkaTopic,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	st.Pipeline, err = ingest.New(ingest.Config{
		Store:     st.Chunks,
		Embedder:  st.Embedder,
		Publisher: st.Publisher,
		Policy:    s.Policy,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	st.Engine, err = search.NewEngine(search.Config{
		Embedder:  st.Embedder,
		Chunks:    st.Chunks,
		Documents: st.Documents,
		TopK:      s.TopK,
		GroupCap:  s.GroupCap,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("folio stack ready",
		"storage", s.StorageProvider,
		"vector_store", s.VectorProvider,
		"embedding_provider", s.EmbeddingProvider,
		"embedding_model", s.EmbeddingModel,
		"policy", string(s.Policy),
		"events", s.EventsProvider,
	)

	return st, nil
}

// Close releases every opened collaborator.
func (st *Stack) Close() error {
	var errs []error

	if st.Publisher != nil {
		errs = append(errs, st.Publisher.Close())
	}
	if st.Embedder != nil {
		errs = append(errs, st.Embedder.Close())
	}
	if st.Chunks != nil {
		errs = append(errs, st.Chunks.Close())
	}
	if st.Documents != nil {
		errs = append(errs, st.Documents.Close())
	}
	if st.db != nil {
		errs = append(errs, st.db.Close())
	}

	return errors.Join(errs...)
}

func qdrantConfig(s Settings) (qdrant.Config, error) {
	c := qdrant.Config{Collection: s.VectorCollection}
	if s.VectorProvider != vectorutils.ProviderQdrant {
		return c, nil
	}

	host, port, err := net.SplitHostPort(s.VectorTarget)
	if err != nil {
		// a bare host uses the default gRPC port
		c.Host = s.VectorTarget
		return c, nil
	}

	c.Host = host
	c.Port, err = strconv.Atoi(port)
	if err != nil {
		return c, fmt.Errorf("invalid qdrant port %q: %w", port, err)
	}

	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
