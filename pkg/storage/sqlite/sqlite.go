// Package sqlite opens SQLite databases with the sqlite-vec extension loaded.
package sqlite

import (
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens the SQLite database at dbPath and wraps it with ent's SQL
// driver. The dbPath can be a file path or ":memory:" for an in-memory
// database.
func Open(dbPath string) (*entsql.Driver, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	// SQLite-specific pragmas
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	return entsql.OpenDB(dialect.SQLite, db), nil
}
