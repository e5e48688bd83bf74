package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/example/runvault/internal/adapters/filesystem"
	"github.com/example/runvault/internal/core/canonical"
	"github.com/example/runvault/internal/core/pathsafe"
	"github.com/example/runvault/internal/models"
	"github.com/example/runvault/internal/ports/primary"
)

// Verification failure reasons. Missing takes priority over mismatched in
// the summary reason.
const (
	ReasonMissingArtifacts    = "missing artifacts"
	ReasonMismatchedArtifacts = "mismatched artifacts"
)

// VerifyService recomputes artifact digests and compares them against a
// run's signed manifest. The manifest is never adjusted, only compared.
type VerifyService struct {
	store *filesystem.RunStore
}

// NewVerifyService creates a verify service over the given store.
func NewVerifyService(store *filesystem.RunStore) *VerifyService {
	return &VerifyService{store: store}
}

// Verify checks every manifest entry of the located run. A load problem
// (unreadable report, bad locator) returns an error; verification findings
// are reported in the result, never as an error.
func (s *VerifyService) Verify(ctx context.Context, req primary.VerifyRequest) (*primary.VerifyResult, error) {
	started := time.Now()

	runDir, report, err := s.locate(req)
	if err != nil {
		return nil, err
	}

	result := &primary.VerifyResult{
		RunID:      report.RunID,
		Mismatches: []primary.Mismatch{},
	}

	keys := make([]string, 0, len(report.VerifiableArtifacts))
	for key := range report.VerifiableArtifacts {
		if req.Profile != "" && !keyHasProfile(key, req.Profile) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := report.VerifiableArtifacts[key]
		expected := strings.ToLower(entry.SHA256)

		if entry.Path == "" || entry.SHA256 == "" {
			result.Missing++
			result.Mismatches = append(result.Mismatches, primary.Mismatch{
				Label: key, Path: entry.Path, Expected: entry.SHA256, Actual: "", Reason: "missing_path_or_hash",
			})
			result.Lines = append(result.Lines, reportLine(key, expected, "", false))
			continue
		}

		target, err := s.resolveEntry(req, runDir, entry.Path)
		if err != nil {
			// A manifest path that escapes the run root is a containment
			// violation, not an absent file; report it as such.
			reason := "missing_file"
			var perr *pathsafe.Error
			if errors.As(err, &perr) {
				reason = "unsafe_path"
			}
			result.Missing++
			result.Mismatches = append(result.Mismatches, primary.Mismatch{
				Label: key, Path: entry.Path, Expected: expected, Actual: "", Reason: reason,
			})
			result.Lines = append(result.Lines, reportLine(key, expected, "", false))
			continue
		}
		if _, err := os.Stat(target); err != nil {
			result.Missing++
			result.Mismatches = append(result.Mismatches, primary.Mismatch{
				Label: key, Path: entry.Path, Expected: expected, Actual: "", Reason: "missing_file",
			})
			result.Lines = append(result.Lines, reportLine(key, expected, "", false))
			continue
		}

		actual, err := hashArtifact(target)
		if err != nil {
			result.Missing++
			result.Mismatches = append(result.Mismatches, primary.Mismatch{
				Label: key, Path: entry.Path, Expected: expected, Actual: "", Reason: "missing_file",
			})
			result.Lines = append(result.Lines, reportLine(key, expected, "", false))
			continue
		}

		if actual == expected {
			result.Verified++
			result.Lines = append(result.Lines, reportLine(key, expected, actual, true))
			continue
		}
		result.Mismatched++
		result.Mismatches = append(result.Mismatches, primary.Mismatch{
			Label: key, Path: entry.Path, Expected: expected, Actual: actual, Reason: "hash_mismatch",
		})
		result.Lines = append(result.Lines, reportLine(key, expected, actual, false))
	}

	result.Lines = append(result.Lines, fmt.Sprintf(
		"checked=%d matched=%d mismatched=%d missing=%d",
		len(keys), result.Verified, result.Mismatched, result.Missing,
	))

	result.OK = result.Missing == 0 && result.Mismatched == 0
	if result.Missing > 0 {
		result.Reason = ReasonMissingArtifacts
	} else if result.Mismatched > 0 {
		result.Reason = ReasonMismatchedArtifacts
	}
	result.ElapsedMS = time.Since(started).Milliseconds()
	return result, nil
}

// locate finds the run directory and loads its report from whichever
// locator the request carries.
func (s *VerifyService) locate(req primary.VerifyRequest) (string, *models.RunReport, error) {
	var reportPath, runDir string
	switch {
	case req.ReportPath != "":
		reportPath = req.ReportPath
		runDir = filepath.Dir(reportPath)
	case req.RunDir != "":
		runDir = req.RunDir
		resolved, err := pathsafe.Resolve(runDir, models.RunReportFile)
		if err != nil {
			return "", nil, err
		}
		reportPath = resolved
	case req.Candidate != "" && req.RunID != "":
		dir, err := s.store.RunDir(req.Candidate, req.RunID)
		if err != nil {
			return "", nil, err
		}
		runDir = dir
		resolved, err := s.store.ResolveArtifactPath(req.Candidate, req.RunID, models.RunReportFile)
		if err != nil {
			return "", nil, err
		}
		reportPath = resolved
	default:
		return "", nil, fmt.Errorf("no run locator: need a report path, run dir, or candidate and run id")
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read run report: %w", err)
	}
	var report models.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return "", nil, fmt.Errorf("failed to parse run report: %w", err)
	}
	return runDir, &report, nil
}

// resolveEntry applies path safety to one manifest entry. The store-level
// allowed-roots assertion runs when the request located the run by
// candidate; explicit directories get the plain run-root containment check.
func (s *VerifyService) resolveEntry(req primary.VerifyRequest, runDir, relative string) (string, error) {
	if req.Candidate != "" && req.RunID != "" && req.RunDir == "" && req.ReportPath == "" {
		return s.store.ResolveArtifactPath(req.Candidate, req.RunID, relative)
	}
	return pathsafe.Resolve(runDir, relative)
}

// hashArtifact digests a resolved artifact path without following a symlink
// at the final component.
func hashArtifact(path string) (string, error) {
	f, err := pathsafe.OpenRead(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return canonical.SHA256Reader(f)
}

func reportLine(label, expected, actual string, match bool) string {
	if actual == "" {
		actual = "None"
	}
	return fmt.Sprintf("%s: expected=%s actual=%s match=%t", label, expected, actual, match)
}

// keyHasProfile reports whether a logical key like "ranked_json:openai:cs"
// carries the profile as one of its segments.
func keyHasProfile(key, profile string) bool {
	for _, seg := range strings.Split(key, ":") {
		if seg == profile {
			return true
		}
	}
	return false
}

// Ensure VerifyService implements the primary port
var _ primary.VerifyService = (*VerifyService)(nil)
