// Package app contains the application services that orchestrate the run
// store, index, verifier, comparator, and canary.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/example/runvault/internal/adapters/filesystem"
	"github.com/example/runvault/internal/adapters/sqlite"
	"github.com/example/runvault/internal/db"
	"github.com/example/runvault/internal/models"
	"github.com/example/runvault/internal/ports/primary"
	"github.com/example/runvault/internal/ports/secondary"
)

// profilePageSize bounds memory on large histories: profile filtering pages
// through the store instead of one unbounded read. Which profiles appear in
// a run is deliberately not indexed; this scan-and-filter is a design
// choice, not an oversight.
const profilePageSize = 200

// IndexService provides fast run lookups backed by per-candidate SQLite
// stores, with transparent recovery: a failed read triggers one rebuild and
// retry, then falls back to a direct filesystem scan.
//
// All state (the fallback-warning set) lives on the instance; there are no
// package-level caches.
type IndexService struct {
	store  *filesystem.RunStore
	logger *log.Logger

	mu             sync.Mutex
	fallbackLogged map[string]struct{}
}

// NewIndexService creates an index service over the given store. A nil
// logger defaults to the standard logger.
func NewIndexService(store *filesystem.RunStore, logger *log.Logger) *IndexService {
	if logger == nil {
		logger = log.Default()
	}
	return &IndexService{
		store:          store,
		logger:         logger,
		fallbackLogged: make(map[string]struct{}),
	}
}

// RebuildIndex performs a full filesystem scan and writes a fresh store to a
// temporary path, then atomically renames it over the live store. Readers
// never observe a partially-rebuilt index; an aborted rebuild leaves only an
// orphaned temp file. Concurrent rebuilds are safe: last writer wins.
func (s *IndexService) RebuildIndex(ctx context.Context, candidate string) (int, error) {
	rows, err := s.store.ScanRuns(candidate)
	if err != nil {
		return 0, fmt.Errorf("failed to scan runs for %s: %w", candidate, err)
	}

	dbPath := s.store.IndexDBPath(candidate)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create index directory: %w", err)
	}

	// Each rebuild gets its own temp file so concurrent rebuilds of the same
	// candidate cannot rename each other's half-written store into place.
	tmpFile, err := os.CreateTemp(filepath.Dir(dbPath), filepath.Base(dbPath)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp index store: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	database, err := db.Create(tmpPath)
	if err != nil {
		return 0, err
	}
	repo := sqlite.NewRunIndexRepository(database, candidate)
	for _, row := range rows {
		if err := repo.Insert(ctx, row); err != nil {
			database.Close()
			return 0, err
		}
	}
	if err := database.Close(); err != nil {
		return 0, fmt.Errorf("failed to close rebuilt store: %w", err)
	}

	if err := os.Rename(tmpPath, dbPath); err != nil {
		return 0, fmt.Errorf("failed to swap index store: %w", err)
	}
	return len(rows), nil
}

// ListRuns returns runs in canonical order, recovering from a missing or
// corrupt index without surfacing an error to the caller.
func (s *IndexService) ListRuns(ctx context.Context, candidate string, limit int) ([]*models.RunRow, error) {
	rows, err := s.withRecovery(ctx, candidate, func(repo secondary.RunIndexRepository) ([]*models.RunRow, error) {
		return repo.ListRuns(ctx, limit)
	})
	if err == nil {
		return rows, nil
	}

	scanned, scanErr := s.store.ScanRuns(candidate)
	if scanErr != nil {
		return nil, fmt.Errorf("index unavailable and scan failed for %s: %w", candidate, scanErr)
	}
	if limit > 0 && len(scanned) > limit {
		scanned = scanned[:limit]
	}
	return scanned, nil
}

// GetRun returns one run's index row. A clean miss also triggers one rebuild
// before giving up, so a stale index cannot hide a run that exists on disk.
func (s *IndexService) GetRun(ctx context.Context, candidate, runID string) (*models.RunRow, error) {
	var found *models.RunRow
	_, err := s.withRecovery(ctx, candidate, func(repo secondary.RunIndexRepository) ([]*models.RunRow, error) {
		row, err := repo.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		found = row
		return nil, nil
	})
	if err == nil {
		return found, nil
	}
	if errors.Is(err, secondary.ErrRunNotFound) {
		return nil, err
	}

	// Store unusable; fall back to the scan.
	scanned, scanErr := s.store.ScanRuns(candidate)
	if scanErr != nil {
		return nil, fmt.Errorf("index unavailable and scan failed for %s: %w", candidate, scanErr)
	}
	for _, row := range scanned {
		if row.RunID == runID {
			return row, nil
		}
	}
	return nil, fmt.Errorf("run %s: %w", runID, secondary.ErrRunNotFound)
}

// ListRunsForProfile returns runs carrying the profile under any provider,
// paging through the store and filtering client-side.
func (s *IndexService) ListRunsForProfile(ctx context.Context, candidate, profile string, limit int) ([]*models.RunRow, error) {
	rows, err := s.withRecovery(ctx, candidate, func(repo secondary.RunIndexRepository) ([]*models.RunRow, error) {
		return collectProfileRuns(ctx, repo, profile, limit)
	})
	if err == nil {
		return rows, nil
	}

	scanned, scanErr := s.store.ScanRuns(candidate)
	if scanErr != nil {
		return nil, fmt.Errorf("index unavailable and scan failed for %s: %w", candidate, scanErr)
	}
	var out []*models.RunRow
	for _, row := range scanned {
		if payloadHasProfile(row.PayloadJSON, profile) {
			out = append(out, row)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// withRecovery runs op against the candidate's store, retrying once after a
// rebuild when the read fails. A clean ErrRunNotFound after a rebuild is
// returned as-is. Any other persistent failure is logged once per
// (candidate, reason) and returned so the caller can fall back to a scan.
func (s *IndexService) withRecovery(ctx context.Context, candidate string, op func(secondary.RunIndexRepository) ([]*models.RunRow, error)) ([]*models.RunRow, error) {
	rows, err := s.readOnce(ctx, candidate, op)
	if err == nil {
		return rows, nil
	}
	reason := classifyIndexError(err)

	if _, rebuildErr := s.RebuildIndex(ctx, candidate); rebuildErr != nil {
		s.warnFallback(candidate, reason)
		return nil, fmt.Errorf("index rebuild failed for %s: %w", candidate, rebuildErr)
	}
	rows, err = s.readOnce(ctx, candidate, op)
	if err == nil {
		return rows, nil
	}
	if errors.Is(err, secondary.ErrRunNotFound) {
		return nil, err
	}
	s.warnFallback(candidate, reason)
	return nil, err
}

func (s *IndexService) readOnce(ctx context.Context, candidate string, op func(secondary.RunIndexRepository) ([]*models.RunRow, error)) ([]*models.RunRow, error) {
	dbPath := s.store.IndexDBPath(candidate)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("index store missing: %w", err)
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return op(sqlite.NewRunIndexRepository(database, candidate))
}

// warnFallback logs once per (candidate, reason) pair to avoid log storms
// when a store stays broken across many queries.
func (s *IndexService) warnFallback(candidate, reason string) {
	key := candidate + "|" + reason
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, logged := s.fallbackLogged[key]; logged {
		return
	}
	s.fallbackLogged[key] = struct{}{}
	s.logger.Printf("warning: run index for %s unavailable (%s), serving from filesystem scan", candidate, reason)
}

func classifyIndexError(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return "missing_store"
	}
	return "query_error"
}

func collectProfileRuns(ctx context.Context, repo secondary.RunIndexRepository, profile string, limit int) ([]*models.RunRow, error) {
	var out []*models.RunRow
	for offset := 0; ; offset += profilePageSize {
		page, err := repo.ListPage(ctx, offset, profilePageSize)
		if err != nil {
			return nil, err
		}
		for _, row := range page {
			if payloadHasProfile(row.PayloadJSON, profile) {
				out = append(out, row)
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
		if len(page) < profilePageSize {
			return out, nil
		}
	}
}

func payloadHasProfile(payload, profile string) bool {
	var doc models.RunIndexDoc
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return false
	}
	return doc.HasProfile(profile)
}

// Ensure IndexService implements the primary port
var _ primary.RunQueryService = (*IndexService)(nil)
