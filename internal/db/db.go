// Package db owns SQLite connection setup and the authoritative run index
// schema. Index stores are per-candidate files; callers open and close them
// explicitly, there is no process-wide connection singleton.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens a run index store at path and applies connection pragmas.
// It does not create the schema; rebuilds do that against a fresh file.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	if _, err := database.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return database, nil
}

// Create opens a fresh store at path and applies the authoritative schema.
func Create(path string) (*sql.DB, error) {
	database, err := Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := database.Exec(SchemaSQL); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}
