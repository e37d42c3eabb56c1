package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent folio configuration stored as config.toml
// in the .folio/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Ingest      IngestConfig      `toml:"ingest"`
	Search      SearchConfig      `toml:"search"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig holds the relational database shared by document metadata
// and the SQL vector stores.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// VectorStoreConfig holds vector store settings. Target is the qdrant
// host:port and is ignored by the SQL stores.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings. The API key is read
// from FOLIO_EMBEDDING_API_KEY and never written to disk.
type EmbeddingConfig struct {
	Provider   string  `toml:"provider,omitempty"`
	Target     string  `toml:"target,omitempty"`
	Model      string  `toml:"model,omitempty"`
	Dimensions uint    `toml:"dimensions,omitempty"`
	Timeout    string  `toml:"timeout,omitempty"`
	RateLimit  float64 `toml:"rate_limit,omitempty"`
	Burst      uint    `toml:"burst,omitempty"`
}

// TimeoutDuration parses Timeout. An empty value disables the timeout.
func (e EmbeddingConfig) TimeoutDuration() (time.Duration, error) {
	if e.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid value for embedding.timeout: %w", err)
	}
	return d, nil
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	ChunkSize uint   `toml:"chunk_size,omitempty"`
	Policy    string `toml:"policy,omitempty"`
	Workers   uint   `toml:"workers,omitempty"`
	QueueSize uint   `toml:"queue_size,omitempty"`
}

// SearchConfig holds query engine settings.
type SearchConfig struct {
	TopK     uint   `toml:"top_k,omitempty"`
	GroupCap uint   `toml:"group_cap,omitempty"`
	Mode     string `toml:"mode,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. folio search). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventsConfig holds ingestion event publishing settings. Brokers is a
// comma-separated list.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func enumKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if !slices.Contains(allowed, v) {
				return fmt.Errorf("invalid value for %s: %q (valid: %s)", name, v, strings.Join(allowed, ", "))
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.timeout": {
		get: func(c *Config) string { return c.Embedding.Timeout },
		set: func(c *Config, v string) error {
			if _, err := (EmbeddingConfig{Timeout: v}).TimeoutDuration(); err != nil {
				return err
			}
			c.Embedding.Timeout = v
			return nil
		},
	},
	"embedding.rate_limit": {
		get: func(c *Config) string {
			if c.Embedding.RateLimit == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Embedding.RateLimit, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.rate_limit: %w", err)
			}
			c.Embedding.RateLimit = f
			return nil
		},
	},
	"embedding.burst": uintKey("embedding.burst", func(c *Config) *uint { return &c.Embedding.Burst }),

	"ingest.chunk_size": uintKey("ingest.chunk_size", func(c *Config) *uint { return &c.Ingest.ChunkSize }),
	"ingest.policy":     enumKey("ingest.policy", []string{"best_effort", "all_or_nothing"}, func(c *Config) *string { return &c.Ingest.Policy }),
	"ingest.workers":    uintKey("ingest.workers", func(c *Config) *uint { return &c.Ingest.Workers }),
	"ingest.queue_size": uintKey("ingest.queue_size", func(c *Config) *uint { return &c.Ingest.QueueSize }),

	"search.top_k":     uintKey("search.top_k", func(c *Config) *uint { return &c.Search.TopK }),
	"search.group_cap": uintKey("search.group_cap", func(c *Config) *uint { return &c.Search.GroupCap }),
	"search.mode":      enumKey("search.mode", []string{"grouped", "flat"}, func(c *Config) *string { return &c.Search.Mode }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}
