// Package primary defines the primary ports: the service interfaces the CLI
// and other consumers (dashboard, DR tooling) drive the application through.
package primary

import (
	"context"

	"github.com/example/runvault/internal/models"
)

// RunQueryService is the read surface over the run index and store.
type RunQueryService interface {
	// ListRuns returns runs in canonical order (timestamp DESC, run_id DESC).
	ListRuns(ctx context.Context, candidate string, limit int) ([]*models.RunRow, error)

	// GetRun returns one run's index row.
	GetRun(ctx context.Context, candidate, runID string) (*models.RunRow, error)

	// ListRunsForProfile returns runs that carry the given profile under any
	// provider, paging through the store and filtering client-side.
	ListRunsForProfile(ctx context.Context, candidate, profile string, limit int) ([]*models.RunRow, error)

	// RebuildIndex rescans the filesystem and atomically replaces the
	// candidate's index store. Returns the number of indexed runs.
	RebuildIndex(ctx context.Context, candidate string) (int, error)
}

// VerifyRequest locates a run's manifest. Exactly one of ReportPath, RunDir,
// or (Candidate, RunID) selects the run; Profile optionally narrows the
// manifest to entries whose logical key carries that profile segment.
type VerifyRequest struct {
	ReportPath string
	RunDir     string
	Candidate  string
	RunID      string
	Profile    string
}

// Mismatch describes one failed manifest entry.
type Mismatch struct {
	Label    string `json:"label"`
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason"`
}

// VerifyResult is the replay verification outcome.
type VerifyResult struct {
	OK         bool       `json:"ok"`
	RunID      string     `json:"run_id"`
	Verified   int        `json:"verified"`
	Missing    int        `json:"missing"`
	Mismatched int        `json:"mismatched"`
	ElapsedMS  int64      `json:"elapsed_ms"`
	Mismatches []Mismatch `json:"mismatches"`
	Lines      []string   `json:"-"`
	Reason     string     `json:"-"`
}

// VerifyService recomputes artifact digests against a run's manifest.
type VerifyService interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// CompareRequest names two run directories to diff.
type CompareRequest struct {
	LeftDir         string
	RightDir        string
	AllowRunIDDrift bool
}

// CompareResult accumulates every semantic difference found. Empty Issues
// means the runs are equivalent.
type CompareResult struct {
	Issues []string `json:"issues"`
}

// CompareService normalizes and diffs two runs' artifact sets.
type CompareService interface {
	Compare(ctx context.Context, req CompareRequest) (*CompareResult, error)
}

// CanaryRequest points at a canary scenario config and an optional receipt
// destination outside the run store.
type CanaryRequest struct {
	ConfigPath  string
	ReceiptPath string
}

// CanaryResult is the drift canary outcome persisted to the receipt.
type CanaryResult struct {
	Status      string   `json:"status"`
	Issues      []string `json:"issues"`
	LeftRunDir  string   `json:"left_run_dir"`
	RightRunDir string   `json:"right_run_dir"`
}

// CanaryService executes the pipeline twice against frozen inputs and
// asserts zero drift.
type CanaryService interface {
	Run(ctx context.Context, req CanaryRequest) (*CanaryResult, error)
}
