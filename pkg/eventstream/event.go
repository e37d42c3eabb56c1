package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIngested is emitted after a document's chunks are stored.
	EventTypeDocumentIngested = "folio.document.ingested"
)

// DocumentIngestedEvent is a transport-neutral event payload for an
// ingestion run that stored at least one chunk.
type DocumentIngestedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	DocumentID    string    `json:"document_id"`
	ChunksCreated int       `json:"chunks_created"`
	ChunksFailed  int       `json:"chunks_failed"`
	Dimensions    int       `json:"dimensions"`
	Policy        string    `json:"policy"`
	DurationMs    int64     `json:"duration_ms"`
}
