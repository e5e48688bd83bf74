package db

// SchemaSQL is the complete schema for a candidate's run index store.
//
// This is the SINGLE SOURCE OF TRUTH for the index schema. Tests load it via
// GetSchemaSQL() instead of hardcoding CREATE TABLE statements, so repository
// code that references a missing column fails immediately with
// "no such column" at test time.
//
// The index is a cache: rows are derived from each run's index.json and the
// whole store is rebuilt from a filesystem scan whenever it is missing or
// corrupt. Nothing here is a source of truth.
const SchemaSQL = `
-- Run index rows, one per run directory with a readable index document.
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	run_dir TEXT NOT NULL,
	index_path TEXT NOT NULL,
	payload_json TEXT NOT NULL
);

-- Canonical listing order: newest first, run_id as tie-break.
CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp DESC, run_id DESC);
`

// GetSchemaSQL returns the authoritative schema SQL.
func GetSchemaSQL() string {
	return SchemaSQL
}
