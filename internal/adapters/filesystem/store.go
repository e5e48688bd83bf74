// Package filesystem contains the run store: the on-disk layout owner and
// the path-safe primitives everything else builds on.
package filesystem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/example/runvault/internal/core/pathsafe"
	"github.com/example/runvault/internal/models"
)

// DefaultCandidate is the single reserved candidate that may still resolve
// to the legacy unnamespaced layout (<root>/runs/<run_id>). Pre-multi-tenant
// data lives there; new writes always go to the namespaced path.
const DefaultCandidate = "default"

var candidatePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// runIDSeparators are stripped from raw run identifiers so a timestamp like
// "2026-01-01T12:00:00" becomes a filesystem-safe token.
var runIDSeparators = strings.NewReplacer(":", "", "-", "", " ", "", "/", "", "\\", "", ".", "")

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RunStore owns the directory layout under one state root and enforces path
// safety on every artifact access.
type RunStore struct {
	stateRoot    string
	allowedRoots []string
}

// NewRunStore creates a run store rooted at stateRoot. extraRoots widens the
// set of roots a run directory may resolve under (a defense against a
// corrupted index pointing outside the store).
func NewRunStore(stateRoot string, extraRoots ...string) (*RunStore, error) {
	rootAbs, err := filepath.Abs(stateRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to absolutize state root: %w", err)
	}
	allowed := []string{rootAbs}
	for _, r := range extraRoots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("failed to absolutize allowed root %s: %w", r, err)
		}
		allowed = append(allowed, abs)
	}
	return &RunStore{stateRoot: rootAbs, allowedRoots: allowed}, nil
}

// StateRoot returns the store's primary root directory.
func (s *RunStore) StateRoot() string {
	return s.stateRoot
}

// ValidateCandidate checks the candidate namespace identifier.
func ValidateCandidate(candidate string) error {
	if !candidatePattern.MatchString(candidate) {
		return fmt.Errorf("invalid candidate %q: must match [a-z0-9_]{1,64}", candidate)
	}
	return nil
}

// SanitizeRunID strips raw separators from a timestamp-like token and
// validates the remainder is non-empty and filesystem-safe.
func SanitizeRunID(raw string) (string, error) {
	cleaned := runIDSeparators.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", fmt.Errorf("invalid run id %q: empty after sanitization", raw)
	}
	if !runIDPattern.MatchString(cleaned) {
		return "", fmt.Errorf("invalid run id %q: contains unsafe characters", raw)
	}
	return cleaned, nil
}

// CandidateDir returns the namespaced directory for a candidate.
func (s *RunStore) CandidateDir(candidate string) string {
	return filepath.Join(s.stateRoot, "candidates", candidate)
}

// RunsDir returns the directory that holds a candidate's run directories.
func (s *RunStore) RunsDir(candidate string) string {
	return filepath.Join(s.CandidateDir(candidate), "runs")
}

// IndexDBPath returns the location of a candidate's durable run index.
func (s *RunStore) IndexDBPath(candidate string) string {
	return filepath.Join(s.CandidateDir(candidate), "index", "runs.db")
}

// RunDir resolves the directory for one run. The namespaced layout is
// preferred; only the reserved default candidate may fall back to the legacy
// unnamespaced layout when the namespaced directory does not exist.
func (s *RunStore) RunDir(candidate, runID string) (string, error) {
	if err := ValidateCandidate(candidate); err != nil {
		return "", err
	}
	id, err := SanitizeRunID(runID)
	if err != nil {
		return "", err
	}

	namespaced := filepath.Join(s.RunsDir(candidate), id)
	if candidate == DefaultCandidate {
		if _, err := os.Stat(namespaced); err == nil {
			return namespaced, nil
		}
		legacy := filepath.Join(s.stateRoot, "runs", id)
		if _, err := os.Stat(legacy); err == nil {
			return legacy, nil
		}
	}
	return namespaced, nil
}

// ResolveArtifactPath resolves a run-relative artifact path, asserting both
// that the run directory lies under an allowed root and that the relative
// path cannot escape the run directory.
func (s *RunStore) ResolveArtifactPath(candidate, runID, relative string) (string, error) {
	dir, err := s.RunDir(candidate, runID)
	if err != nil {
		return "", err
	}
	if !s.underAllowedRoot(dir) {
		return "", &pathsafe.Error{Kind: pathsafe.KindEscape, Rel: relative, Reason: fmt.Sprintf("run dir %s outside allowed roots", dir)}
	}
	return pathsafe.Resolve(dir, relative)
}

// WriteJSON serializes payload with stable key ordering and writes it to a
// path-safe location under the run directory, creating parents as needed.
// Overwrites are allowed so retried stages stay idempotent.
func (s *RunStore) WriteJSON(candidate, runID, relative string, payload any) (string, error) {
	target, err := s.ResolveArtifactPath(candidate, runID, relative)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	// encoding/json sorts map keys, which keeps repeated writes byte-stable.
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := os.WriteFile(target, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}

// ListRunMetadataPaths enumerates the *.json files directly under the
// candidate's flat run-metadata directory. Last-resort fallback only; the
// per-run index documents are the primary source.
func (s *RunStore) ListRunMetadataPaths(candidate string) ([]string, error) {
	if err := ValidateCandidate(candidate); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.CandidateDir(candidate), "run_metadata")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run metadata dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ScanRuns walks every run directory under the candidate and returns one row
// per run with a readable index document, sorted newest first
// (timestamp DESC, run_id DESC). Runs whose index document is missing or
// unparseable are silently excluded; the filesystem remains the ground truth
// and the index stays best-effort.
//
// This is the single scan primitive shared by index rebuilds and the direct
// filesystem fallback, so both always agree.
func (s *RunStore) ScanRuns(candidate string) ([]*models.RunRow, error) {
	if err := ValidateCandidate(candidate); err != nil {
		return nil, err
	}

	seen := make(map[string]*models.RunRow)
	if err := s.scanRunsDir(candidate, s.RunsDir(candidate), seen); err != nil {
		return nil, err
	}
	if candidate == DefaultCandidate {
		// Legacy unnamespaced runs; namespaced rows win on collision.
		if err := s.scanRunsDir(candidate, filepath.Join(s.stateRoot, "runs"), seen); err != nil {
			return nil, err
		}
	}

	rows := make([]*models.RunRow, 0, len(seen))
	for _, row := range seen {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Timestamp != rows[j].Timestamp {
			return rows[i].Timestamp > rows[j].Timestamp
		}
		return rows[i].RunID > rows[j].RunID
	})
	return rows, nil
}

func (s *RunStore) scanRunsDir(candidate, dir string, seen map[string]*models.RunRow) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to scan runs dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runDir := filepath.Join(dir, entry.Name())
		indexPath, err := pathsafe.Resolve(runDir, models.RunIndexFile)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(indexPath)
		if err != nil {
			continue
		}
		var doc models.RunIndexDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		if doc.RunID == "" {
			doc.RunID = entry.Name()
		}
		if _, ok := seen[doc.RunID]; ok {
			continue
		}
		seen[doc.RunID] = &models.RunRow{
			Candidate:   candidate,
			RunID:       doc.RunID,
			Timestamp:   doc.Timestamp,
			RunDir:      runDir,
			IndexPath:   indexPath,
			PayloadJSON: string(data),
		}
	}
	return nil
}

func (s *RunStore) underAllowedRoot(dir string) bool {
	for _, root := range s.allowedRoots {
		if dir == root || strings.HasPrefix(dir, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
