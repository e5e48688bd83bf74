// Package secondary defines the secondary ports (driven adapters) for the
// application: the interfaces through which it drives storage.
package secondary

import (
	"context"
	"errors"

	"github.com/example/runvault/internal/models"
)

// ErrRunNotFound marks a clean index miss, as opposed to a store failure.
var ErrRunNotFound = errors.New("run not found")

// RunIndexRepository is the durable per-candidate run index. The canonical
// listing order everywhere is (timestamp DESC, run_id DESC).
type RunIndexRepository interface {
	// Insert persists one run row, replacing any previous row for the run.
	Insert(ctx context.Context, row *models.RunRow) error

	// ListRuns returns rows in canonical order; limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]*models.RunRow, error)

	// GetRun returns the row for a run, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*models.RunRow, error)

	// ListPage returns one fixed-size page of rows in canonical order,
	// used for client-side filtering without an unbounded read.
	ListPage(ctx context.Context, offset, limit int) ([]*models.RunRow, error)
}
