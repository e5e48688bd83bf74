// Package sqlite_test contains integration tests for the SQLite run index.
//
// This file is the single point where the index schema is loaded for tests.
// Setup uses db.GetSchemaSQL() so tests always run against the authoritative
// schema; do not hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/runvault/internal/adapters/sqlite"
	"github.com/example/runvault/internal/db"
	"github.com/example/runvault/internal/models"
)

// setupTestDB creates an in-memory store with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedRunRow inserts a test run row and returns it.
func seedRunRow(t *testing.T, repo *sqlite.RunIndexRepository, runID, timestamp string) *models.RunRow {
	t.Helper()
	row := &models.RunRow{
		Candidate:   "alice",
		RunID:       runID,
		Timestamp:   timestamp,
		RunDir:      "/state/candidates/alice/runs/" + runID,
		IndexPath:   "/state/candidates/alice/runs/" + runID + "/index.json",
		PayloadJSON: fmt.Sprintf(`{"run_id": %q, "timestamp": %q}`, runID, timestamp),
	}
	if err := repo.Insert(context.Background(), row); err != nil {
		t.Fatalf("failed to seed run row: %v", err)
	}
	return row
}
