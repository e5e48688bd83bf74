package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/example/runvault/internal/core/canonical"
	"github.com/example/runvault/internal/core/compare"
	"github.com/example/runvault/internal/core/pathsafe"
	"github.com/example/runvault/internal/models"
	"github.com/example/runvault/internal/ports/primary"
)

// Logical-key prefixes in a run's artifact map that carry ranked output.
const (
	rankedJSONPrefix   = "ranked_json:"
	rankedCSVPrefix    = "ranked_csv:"
	rankedFamilyPrefix = "ranked_family:"
)

// runDocs holds one run's loaded core documents: the typed views plus the
// raw values used for normalized comparison.
type runDocs struct {
	dir          string
	index        models.RunIndexDoc
	summary      models.RunSummary
	health       models.RunHealth
	availability models.ProviderAvailability

	rawSummary      any
	rawHealth       any
	rawAvailability any
}

// CompareService normalizes and diffs two runs' artifact sets. All check
// groups run and accumulate issues; nothing short-circuits except the staged
// ranked comparison inside a single artifact.
type CompareService struct{}

// NewCompareService creates a compare service.
func NewCompareService() *CompareService {
	return &CompareService{}
}

// Compare diffs two run directories. Load problems (missing or unreadable
// core documents) return an error; semantic differences land in Issues.
func (s *CompareService) Compare(ctx context.Context, req primary.CompareRequest) (*primary.CompareResult, error) {
	left, err := loadRunDocs(req.LeftDir)
	if err != nil {
		return nil, fmt.Errorf("left run: %w", err)
	}
	right, err := loadRunDocs(req.RightDir)
	if err != nil {
		return nil, fmt.Errorf("right run: %w", err)
	}

	issues := []string{}
	issues = append(issues, schemaVersionIssues(left, right)...)
	issues = append(issues, contractIssues(left, right, req.AllowRunIDDrift)...)
	issues = append(issues, normalizedDocIssues(left, right, req.AllowRunIDDrift)...)
	issues = append(issues, rankedArtifactIssues(left, right, req.AllowRunIDDrift)...)

	return &primary.CompareResult{Issues: issues}, nil
}

func loadRunDocs(dir string) (*runDocs, error) {
	docs := &runDocs{dir: dir}

	if err := loadTyped(dir, models.RunIndexFile, &docs.index); err != nil {
		return nil, err
	}
	var err error
	if docs.rawSummary, err = loadBoth(dir, models.RunSummaryFile, &docs.summary); err != nil {
		return nil, err
	}
	if docs.rawHealth, err = loadBoth(dir, models.RunHealthFile, &docs.health); err != nil {
		return nil, err
	}
	if docs.rawAvailability, err = loadBoth(dir, models.ProviderAvailabilityFile, &docs.availability); err != nil {
		return nil, err
	}
	return docs, nil
}

func loadTyped(dir, name string, target any) error {
	path, err := pathsafe.Resolve(dir, name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// loadBoth decodes a document into its typed view and returns the raw value
// for normalized comparison.
func loadBoth(dir, name string, target any) (any, error) {
	path, err := pathsafe.Resolve(dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	raw, err := canonical.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return raw, nil
}

func schemaVersionIssues(left, right *runDocs) []string {
	var issues []string
	check := func(side string, docs *runDocs) {
		if docs.summary.SchemaVersion != models.RunSummarySchemaVersion {
			issues = append(issues, fmt.Sprintf("%s run_summary schema_version is %d, expected %d", side, docs.summary.SchemaVersion, models.RunSummarySchemaVersion))
		}
		if docs.health.SchemaVersion != models.RunHealthSchemaVersion {
			issues = append(issues, fmt.Sprintf("%s run_health schema_version is %d, expected %d", side, docs.health.SchemaVersion, models.RunHealthSchemaVersion))
		}
		if docs.availability.SchemaVersion != models.ProviderAvailabilitySchemaVersion {
			issues = append(issues, fmt.Sprintf("%s provider_availability schema_version is %d, expected %d", side, docs.availability.SchemaVersion, models.ProviderAvailabilitySchemaVersion))
		}
	}
	check("left", left)
	check("right", right)
	return issues
}

func contractIssues(left, right *runDocs, allowRunIDDrift bool) []string {
	var issues []string

	if left.summary.Candidate != right.summary.Candidate {
		issues = append(issues, fmt.Sprintf("candidate differs: left=%s right=%s", left.summary.Candidate, right.summary.Candidate))
	}

	issues = append(issues, internalRunIDIssues("left", left)...)
	issues = append(issues, internalRunIDIssues("right", right)...)

	if !allowRunIDDrift && left.summary.RunID != right.summary.RunID {
		issues = append(issues, fmt.Sprintf("run_id differs: left=%s right=%s", left.summary.RunID, right.summary.RunID))
	}

	if left.summary.SnapshotManifest != right.summary.SnapshotManifest {
		issues = append(issues, fmt.Sprintf("snapshot manifest differs: left=%s@%s right=%s@%s",
			left.summary.SnapshotManifest.Path, left.summary.SnapshotManifest.SHA256,
			right.summary.SnapshotManifest.Path, right.summary.SnapshotManifest.SHA256))
	}
	if left.summary.ScoringConfig != right.summary.ScoringConfig {
		issues = append(issues, fmt.Sprintf("scoring config differs: left=%s@%s right=%s@%s",
			left.summary.ScoringConfig.Path, left.summary.ScoringConfig.SHA256,
			right.summary.ScoringConfig.Path, right.summary.ScoringConfig.SHA256))
	}
	if left.summary.ProviderRegistrySHA256 != right.summary.ProviderRegistrySHA256 {
		issues = append(issues, fmt.Sprintf("provider registry digest differs: left=%s right=%s",
			left.summary.ProviderRegistrySHA256, right.summary.ProviderRegistrySHA256))
	}
	return issues
}

// internalRunIDIssues checks run_id consistency across one run's own
// summary, health, and availability documents.
func internalRunIDIssues(side string, docs *runDocs) []string {
	var issues []string
	if docs.health.RunID != docs.summary.RunID {
		issues = append(issues, fmt.Sprintf("%s run_health run_id %s does not match run_summary run_id %s", side, docs.health.RunID, docs.summary.RunID))
	}
	if docs.availability.RunID != docs.summary.RunID {
		issues = append(issues, fmt.Sprintf("%s provider_availability run_id %s does not match run_summary run_id %s", side, docs.availability.RunID, docs.summary.RunID))
	}
	return issues
}

func normalizedDocIssues(left, right *runDocs, allowRunIDDrift bool) []string {
	var issues []string
	docs := []struct {
		name        string
		left, right any
	}{
		{"run_summary", left.rawSummary, right.rawSummary},
		{"run_health", left.rawHealth, right.rawHealth},
		{"provider_availability", left.rawAvailability, right.rawAvailability},
	}
	for _, doc := range docs {
		equal, err := compare.NormalizedEqual(doc.left, doc.right, allowRunIDDrift)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", doc.name, err))
			continue
		}
		if !equal {
			issues = append(issues, fmt.Sprintf("%s differs after normalization", doc.name))
		}
	}
	return issues
}

func rankedArtifactIssues(left, right *runDocs, allowRunIDDrift bool) []string {
	var issues []string
	for _, key := range unionRankedKeys(left.index.Artifacts, right.index.Artifacts) {
		leftRel, leftOK := left.index.Artifacts[key]
		rightRel, rightOK := right.index.Artifacts[key]
		if !leftOK {
			issues = append(issues, fmt.Sprintf("%s: missing on left", key))
			continue
		}
		if !rightOK {
			issues = append(issues, fmt.Sprintf("%s: missing on right", key))
			continue
		}

		leftData, err := readArtifact(left.dir, leftRel)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: left: %v", key, err))
			continue
		}
		rightData, err := readArtifact(right.dir, rightRel)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: right: %v", key, err))
			continue
		}

		switch {
		case strings.HasPrefix(key, rankedCSVPrefix):
			issues = append(issues, compare.RankedCSV(key, leftData, rightData)...)
		case strings.HasPrefix(key, rankedFamilyPrefix):
			issues = append(issues, familyIssues(key, leftData, rightData, allowRunIDDrift)...)
		default:
			issues = append(issues, rankedJSONIssues(key, leftData, rightData, allowRunIDDrift)...)
		}
	}
	return issues
}

func unionRankedKeys(left, right map[string]string) []string {
	set := make(map[string]struct{})
	for key := range left {
		if isRankedKey(key) {
			set[key] = struct{}{}
		}
	}
	for key := range right {
		if isRankedKey(key) {
			set[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isRankedKey(key string) bool {
	return strings.HasPrefix(key, rankedJSONPrefix) ||
		strings.HasPrefix(key, rankedCSVPrefix) ||
		strings.HasPrefix(key, rankedFamilyPrefix)
}

func readArtifact(dir, relative string) ([]byte, error) {
	path, err := pathsafe.Resolve(dir, relative)
	if err != nil {
		return nil, err
	}
	f, err := pathsafe.OpenRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func rankedJSONIssues(key string, leftData, rightData []byte, allowRunIDDrift bool) []string {
	left, err := canonical.Decode(leftData)
	if err != nil {
		return []string{fmt.Sprintf("%s: left: %v", key, err)}
	}
	right, err := canonical.Decode(rightData)
	if err != nil {
		return []string{fmt.Sprintf("%s: right: %v", key, err)}
	}
	return compare.RankedJSON(key, left, right, allowRunIDDrift)
}

// familyIssues applies normalized whole-document equality only; family
// documents carry no ordering semantics.
func familyIssues(key string, leftData, rightData []byte, allowRunIDDrift bool) []string {
	left, err := canonical.Decode(leftData)
	if err != nil {
		return []string{fmt.Sprintf("%s: left: %v", key, err)}
	}
	right, err := canonical.Decode(rightData)
	if err != nil {
		return []string{fmt.Sprintf("%s: right: %v", key, err)}
	}
	equal, err := compare.NormalizedEqual(left, right, allowRunIDDrift)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", key, err)}
	}
	if !equal {
		return []string{fmt.Sprintf("%s differs after normalization", key)}
	}
	return nil
}

// Ensure CompareService implements the primary port
var _ primary.CompareService = (*CompareService)(nil)
