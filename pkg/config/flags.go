package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --chunk-size
// on both "folio ingest" and "folio watch").
type Flag struct {
	// Name is the long flag name (e.g. "chunk-size").
	Name string

	// Shorthand is the one-letter short flag (e.g. "c"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "ingest.chunk_size").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen       = "api-listen"
	FlagStorageProv     = "storage-provider"
	FlagSQLite          = "sqlite"
	FlagPostgresDSN     = "postgres-dsn"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagChunkSize       = "chunk-size"
	FlagIngestPolicy    = "ingest-policy"
	FlagWorkers         = "workers"
	FlagTopK            = "top-k"
	FlagGroupCap        = "group-cap"
	FlagSearchMode      = "mode"
	FlagAPITarget       = "api-target"
	FlagEventsProv      = "events-provider"
	FlagKafkaBrokers    = "kafka-brokers"
)

// Flags is the registry shared by every folio command.
var Flags = FlagSet{
	FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagStorageProv:     {Name: "storage-provider", ViperKey: "storage.provider", Description: "Document storage provider (sqlite, postgres, inmemory)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database (default: .folio/folio.db)"},
	FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (sqlite, postgres, qdrant, inmemory)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store host:port (qdrant only)"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (huggingface, openai, ollama, gemini)"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider base URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Requested embedding dimensionality, where supported"},
	FlagChunkSize:       {Name: "chunk-size", Shorthand: "c", ViperKey: "ingest.chunk_size", Description: "Maximum chunk length in characters"},
	FlagIngestPolicy:    {Name: "policy", ViperKey: "ingest.policy", Description: "Ingestion failure policy (best_effort, all_or_nothing)"},
	FlagWorkers:         {Name: "workers", ViperKey: "ingest.workers", Description: "Number of background ingestion workers"},
	FlagTopK:            {Name: "top-k", Shorthand: "k", ViperKey: "search.top_k", Description: "Number of results in flat mode"},
	FlagGroupCap:        {Name: "group-cap", ViperKey: "search.group_cap", Description: "Maximum chunks considered for grouped results"},
	FlagSearchMode:      {Name: "mode", Shorthand: "m", ViperKey: "search.mode", Description: "Result shape (grouped, flat)"},
	FlagAPITarget:       {Name: "api-target", ViperKey: "client.api_target", Description: "URL of the folio API server"},
	FlagEventsProv:      {Name: "events-provider", ViperKey: "events.provider", Description: "Ingestion event publisher (none, kafka)"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma-separated Kafka broker addresses"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
