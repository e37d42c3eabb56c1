package config

const (
	defaultStorageProvider = "sqlite"
	defaultVectorProvider  = "sqlite"
	defaultCollection      = "folio_chunks"

	defaultEmbeddingProvider = "huggingface"
	defaultEmbeddingTimeout  = "30s"
	defaultEmbeddingBurst    = 1

	defaultChunkSize       = 600
	defaultIngestPolicy    = "best_effort"
	defaultIngestWorkers   = 3
	defaultIngestQueueSize = 256

	defaultTopK       = 10
	defaultGroupCap   = 30
	defaultSearchMode = "grouped"

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "folio.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultCollection,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Timeout:  defaultEmbeddingTimeout,
			Burst:    defaultEmbeddingBurst,
		},
		Ingest: IngestConfig{
			ChunkSize: defaultChunkSize,
			Policy:    defaultIngestPolicy,
			Workers:   defaultIngestWorkers,
			QueueSize: defaultIngestQueueSize,
		},
		Search: SearchConfig{
			TopK:     defaultTopK,
			GroupCap: defaultGroupCap,
			Mode:     defaultSearchMode,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
