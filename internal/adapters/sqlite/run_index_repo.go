// Package sqlite contains the SQLite implementation of the run index.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/runvault/internal/models"
	"github.com/example/runvault/internal/ports/secondary"
)

// RunIndexRepository implements secondary.RunIndexRepository over one
// candidate's index store. The candidate is implicit in the store file; the
// caller stamps it onto returned rows.
type RunIndexRepository struct {
	db        *sql.DB
	candidate string
}

// NewRunIndexRepository creates a run index repository for one candidate.
func NewRunIndexRepository(db *sql.DB, candidate string) *RunIndexRepository {
	return &RunIndexRepository{db: db, candidate: candidate}
}

// Insert persists one run row, replacing any previous row for the run.
func (r *RunIndexRepository) Insert(ctx context.Context, row *models.RunRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, timestamp, run_dir, index_path, payload_json) VALUES (?, ?, ?, ?, ?)`,
		row.RunID,
		row.Timestamp,
		row.RunDir,
		row.IndexPath,
		row.PayloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run row: %w", err)
	}
	return nil
}

// ListRuns returns rows ordered (timestamp DESC, run_id DESC).
func (r *RunIndexRepository) ListRuns(ctx context.Context, limit int) ([]*models.RunRow, error) {
	query := `SELECT run_id, timestamp, run_dir, index_path, payload_json FROM runs ORDER BY timestamp DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

// GetRun retrieves the row for a run.
func (r *RunIndexRepository) GetRun(ctx context.Context, runID string) (*models.RunRow, error) {
	row := &models.RunRow{Candidate: r.candidate}
	err := r.db.QueryRowContext(ctx,
		`SELECT run_id, timestamp, run_dir, index_path, payload_json FROM runs WHERE run_id = ?`,
		runID,
	).Scan(&row.RunID, &row.Timestamp, &row.RunDir, &row.IndexPath, &row.PayloadJSON)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", runID, secondary.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return row, nil
}

// ListPage returns one page of rows in canonical order.
func (r *RunIndexRepository) ListPage(ctx context.Context, offset, limit int) ([]*models.RunRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, timestamp, run_dir, index_path, payload_json FROM runs ORDER BY timestamp DESC, run_id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs page: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

func (r *RunIndexRepository) scanRows(rows *sql.Rows) ([]*models.RunRow, error) {
	var out []*models.RunRow
	for rows.Next() {
		row := &models.RunRow{Candidate: r.candidate}
		if err := rows.Scan(&row.RunID, &row.Timestamp, &row.RunDir, &row.IndexPath, &row.PayloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run rows: %w", err)
	}
	return out, nil
}

// Ensure RunIndexRepository implements the interface
var _ secondary.RunIndexRepository = (*RunIndexRepository)(nil)
