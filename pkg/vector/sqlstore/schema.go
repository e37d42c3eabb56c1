package sqlstore

import "entgo.io/ent/dialect"

// chunkTable is the table every SQL chunk store writes to.
const chunkTable = "chunks"

// schemas holds the idempotent DDL run when a store is opened, per dialect.
var schemas = map[string][]string{
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS chunks (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_id ON chunks(document_id)`,
	},
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS chunks (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_id ON chunks(document_id)`,
	},
}

// dimensionExprs computes the embedding length of a row, per dialect.
var dimensionExprs = map[string]string{
	dialect.SQLite:   "vec_length(embedding)",
	dialect.Postgres: "(octet_length(embedding) / 4)",
}
