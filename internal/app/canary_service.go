package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/example/runvault/internal/adapters/filesystem"
	"github.com/example/runvault/internal/core/canonical"
	"github.com/example/runvault/internal/core/compare"
	"github.com/example/runvault/internal/core/pathsafe"
	"github.com/example/runvault/internal/models"
	"github.com/example/runvault/internal/ports/primary"
)

// Canary receipt statuses.
const (
	CanaryStatusPass = "pass"
	CanaryStatusFail = "fail"
)

const (
	defaultStateRootEnv   = "RUNVAULT_STATE_ROOT"
	defaultFrozenInputEnv = "RUNVAULT_FROZEN_INPUT_DIR"

	canaryReceiptFile = "canary_receipt.json"
	identityDiffKey   = "identity_diff"
)

// CanaryConfig is the YAML scenario document the canary executes.
type CanaryConfig struct {
	Candidate string   `yaml:"candidate"`
	Command   []string `yaml:"command"`

	// Env entries are appended to the child pipeline's environment.
	Env map[string]string `yaml:"env"`

	// StateRootEnv names the environment variable that carries the isolated
	// state root into the child pipeline.
	StateRootEnv string `yaml:"state_root_env"`

	// FrozenInputEnv names the environment variable that carries the frozen
	// input directory into the child pipeline.
	FrozenInputEnv string `yaml:"frozen_input_env"`

	// WorkDir hosts the two isolated state roots. Empty means a fresh
	// temporary directory.
	WorkDir string `yaml:"work_dir"`

	FrozenInputDir string `yaml:"frozen_input_dir"`
}

// CanaryService proves run determinism: it executes the external pipeline
// twice against identical frozen inputs in isolated state roots and asserts
// the two runs drift in nothing but run identity.
type CanaryService struct {
	compare *CompareService
}

// NewCanaryService creates a canary service over the given comparator.
func NewCanaryService(compareSvc *CompareService) *CanaryService {
	return &CanaryService{compare: compareSvc}
}

// Run executes the scenario. Execution problems (bad config, pipeline
// failure, no run produced) return an error; drift findings land in the
// receipt's issue list with status fail.
func (s *CanaryService) Run(ctx context.Context, req primary.CanaryRequest) (*primary.CanaryResult, error) {
	cfg, err := loadCanaryConfig(req.ConfigPath)
	if err != nil {
		return nil, err
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "runvault-canary-")
		if err != nil {
			return nil, fmt.Errorf("failed to create canary work dir: %w", err)
		}
	}

	leftRoot := filepath.Join(workDir, "left")
	rightRoot := filepath.Join(workDir, "right")

	left, err := s.executeOnce(ctx, cfg, leftRoot)
	if err != nil {
		return nil, fmt.Errorf("left execution: %w", err)
	}
	right, err := s.executeOnce(ctx, cfg, rightRoot)
	if err != nil {
		return nil, fmt.Errorf("right execution: %w", err)
	}

	issues := []string{}
	issues = append(issues, diffHashManifests(left, right)...)
	issues = append(issues, identityDiffIssues(left, right)...)
	issues = append(issues, availabilityIssues(left, right)...)

	compared, err := s.compare.Compare(ctx, primary.CompareRequest{
		LeftDir:         left.row.RunDir,
		RightDir:        right.row.RunDir,
		AllowRunIDDrift: true,
	})
	if err != nil {
		issues = append(issues, fmt.Sprintf("comparator: %v", err))
	} else {
		issues = append(issues, compared.Issues...)
	}

	result := &primary.CanaryResult{
		Status:      CanaryStatusPass,
		Issues:      issues,
		LeftRunDir:  left.row.RunDir,
		RightRunDir: right.row.RunDir,
	}
	if len(issues) > 0 {
		result.Status = CanaryStatusFail
	}

	if _, err := left.store.WriteJSON(cfg.Candidate, left.row.RunID, canaryReceiptFile, result); err != nil {
		return nil, fmt.Errorf("failed to persist canary receipt: %w", err)
	}
	if req.ReceiptPath != "" {
		if err := writeReceiptFile(req.ReceiptPath, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func loadCanaryConfig(path string) (*CanaryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read canary config: %w", err)
	}
	var cfg CanaryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse canary config: %w", err)
	}
	if err := filesystem.ValidateCandidate(cfg.Candidate); err != nil {
		return nil, err
	}
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("canary config has no command")
	}
	if cfg.StateRootEnv == "" {
		cfg.StateRootEnv = defaultStateRootEnv
	}
	if cfg.FrozenInputEnv == "" {
		cfg.FrozenInputEnv = defaultFrozenInputEnv
	}
	return &cfg, nil
}

// canaryRun is one completed pipeline execution: its isolated store and the
// newest run it produced.
type canaryRun struct {
	store *filesystem.RunStore
	row   *models.RunRow
	index models.RunIndexDoc
}

// executeOnce runs the pipeline into an isolated state root and locates the
// run it produced.
func (s *CanaryService) executeOnce(ctx context.Context, cfg *CanaryConfig, stateRoot string) (*canaryRun, error) {
	if err := os.MkdirAll(stateRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state root: %w", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = stateRoot
	cmd.Env = append(os.Environ(), cfg.StateRootEnv+"="+stateRoot)
	if cfg.FrozenInputDir != "" {
		cmd.Env = append(cmd.Env, cfg.FrozenInputEnv+"="+cfg.FrozenInputDir)
	}
	for key, value := range cfg.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pipeline failed: %w: %s", err, tail(output))
	}

	store, err := filesystem.NewRunStore(stateRoot)
	if err != nil {
		return nil, err
	}
	rows, err := store.ScanRuns(cfg.Candidate)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("pipeline produced no runs under %s", stateRoot)
	}

	run := &canaryRun{store: store, row: rows[0]}
	if err := json.Unmarshal([]byte(run.row.PayloadJSON), &run.index); err != nil {
		return nil, fmt.Errorf("failed to parse run index document: %w", err)
	}
	return run, nil
}

// hashManifest digests a run's health, availability, and ranked artifacts,
// keyed "<logical_key>.sha256".
func hashManifest(run *canaryRun) (map[string]string, []string) {
	manifest := make(map[string]string)
	var issues []string

	digest := func(key, relative string) {
		path, err := pathsafe.Resolve(run.row.RunDir, relative)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", key, err))
			return
		}
		sum, err := canonical.SHA256File(path)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", key, err))
			return
		}
		manifest[key+".sha256"] = sum
	}

	digest("run_health", models.RunHealthFile)
	digest("provider_availability", models.ProviderAvailabilityFile)
	for key, relative := range run.index.Artifacts {
		if isRankedKey(key) {
			digest(key, relative)
		}
	}
	return manifest, issues
}

func diffHashManifests(left, right *canaryRun) []string {
	leftManifest, issues := hashManifest(left)
	rightManifest, rightIssues := hashManifest(right)
	issues = append(issues, rightIssues...)

	keys := make(map[string]struct{})
	for key := range leftManifest {
		keys[key] = struct{}{}
	}
	for key := range rightManifest {
		keys[key] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		lv, lok := leftManifest[key]
		rv, rok := rightManifest[key]
		switch {
		case !lok:
			issues = append(issues, fmt.Sprintf("hash manifest: %s missing on left", key))
		case !rok:
			issues = append(issues, fmt.Sprintf("hash manifest: %s missing on right", key))
		case lv != rv:
			issues = append(issues, fmt.Sprintf("hash manifest: %s differs: left=%s right=%s", key, lv, rv))
		}
	}
	return issues
}

// identityDiffIssues normalizes and compares the identity-diff artifact when
// both runs declare one. A single-sided artifact is drift.
func identityDiffIssues(left, right *canaryRun) []string {
	leftRel, leftOK := left.index.Artifacts[identityDiffKey]
	rightRel, rightOK := right.index.Artifacts[identityDiffKey]
	if !leftOK && !rightOK {
		return nil
	}
	if leftOK != rightOK {
		return []string{fmt.Sprintf("%s: present on one side only", identityDiffKey)}
	}
	return normalizedFileIssues(identityDiffKey, left.row.RunDir, leftRel, right.row.RunDir, rightRel)
}

func availabilityIssues(left, right *canaryRun) []string {
	return normalizedFileIssues("provider_availability",
		left.row.RunDir, models.ProviderAvailabilityFile,
		right.row.RunDir, models.ProviderAvailabilityFile)
}

func normalizedFileIssues(label, leftDir, leftRel, rightDir, rightRel string) []string {
	leftDoc, err := readNormalizable(leftDir, leftRel)
	if err != nil {
		return []string{fmt.Sprintf("%s: left: %v", label, err)}
	}
	rightDoc, err := readNormalizable(rightDir, rightRel)
	if err != nil {
		return []string{fmt.Sprintf("%s: right: %v", label, err)}
	}
	equal, err := compare.NormalizedEqual(leftDoc, rightDoc, true)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", label, err)}
	}
	if !equal {
		return []string{fmt.Sprintf("%s differs after normalization", label)}
	}
	return nil
}

func readNormalizable(dir, relative string) (any, error) {
	path, err := pathsafe.Resolve(dir, relative)
	if err != nil {
		return nil, err
	}
	return canonical.DecodeFile(path)
}

func writeReceiptFile(path string, result *primary.CanaryResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal canary receipt: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create receipt directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write canary receipt: %w", err)
	}
	return nil
}

// tail trims pipeline output to a short diagnostic suffix.
func tail(output []byte) string {
	const max = 512
	if len(output) > max {
		output = output[len(output)-max:]
	}
	return string(output)
}

// Ensure CanaryService implements the primary port
var _ primary.CanaryService = (*CanaryService)(nil)
