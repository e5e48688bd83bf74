// Package models contains the data structures shared across the run store,
// index, verifier, and comparator.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Well-known file names inside a run directory.
const (
	RunIndexFile             = "index.json"
	RunSummaryFile           = "run_summary.v1.json"
	RunHealthFile            = "run_health.v1.json"
	ProviderAvailabilityFile = "provider_availability.v1.json"
	RunReportFile            = "run_report.json"
)

// RunRow is the denormalized run index row. It is derived from the
// filesystem and always rebuildable; the run directory stays authoritative.
type RunRow struct {
	Candidate   string `json:"candidate"`
	RunID       string `json:"run_id"`
	Timestamp   string `json:"timestamp"`
	RunDir      string `json:"run_dir"`
	IndexPath   string `json:"index_path"`
	PayloadJSON string `json:"payload_json"`
}

// RunIndexDoc mirrors a run's own index.json, written by the external
// pipeline when the run completes.
type RunIndexDoc struct {
	RunID     string                   `json:"run_id"`
	Timestamp string                   `json:"timestamp"`
	Providers map[string]ProviderEntry `json:"providers"`
	Artifacts map[string]string        `json:"artifacts"`
}

// ProviderEntry holds the per-provider section of a run's index document.
type ProviderEntry struct {
	Profiles map[string]json.RawMessage `json:"profiles"`
}

// HasProfile reports whether any provider in the run carries the profile.
func (d *RunIndexDoc) HasProfile(profile string) bool {
	for _, entry := range d.Providers {
		if _, ok := entry.Profiles[profile]; ok {
			return true
		}
	}
	return false
}

// ManifestEntry is a run's own claim about one artifact it wrote. The
// sha256 is immutable once written; verification only ever compares it.
type ManifestEntry struct {
	Path     string `json:"path"`
	SHA256   string `json:"sha256"`
	HashAlgo string `json:"hash_algo"`
}

// RunReport is the run's self-declared verification manifest
// (run_report.json). VerifiableArtifacts maps logical keys such as
// "ranked_json:openai:cs" to manifest entries.
type RunReport struct {
	RunID               string                   `json:"run_id"`
	Candidate           string                   `json:"candidate,omitempty"`
	VerifiableArtifacts map[string]ManifestEntry `json:"verifiable_artifacts"`
}

// Validate returns every contract violation in the report. An empty slice
// means the report is well formed.
func (r *RunReport) Validate() []string {
	var errs []string
	if r.RunID == "" {
		errs = append(errs, "run_report: run_id is required")
	}
	keys := make([]string, 0, len(r.VerifiableArtifacts))
	for key := range r.VerifiableArtifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := r.VerifiableArtifacts[key]
		if entry.Path == "" {
			errs = append(errs, fmt.Sprintf("run_report: %s: path is required", key))
		}
		if entry.SHA256 == "" {
			errs = append(errs, fmt.Sprintf("run_report: %s: sha256 is required", key))
		}
		if entry.HashAlgo != "" && entry.HashAlgo != "sha256" {
			errs = append(errs, fmt.Sprintf("run_report: %s: unsupported hash_algo %s", key, entry.HashAlgo))
		}
	}
	return errs
}
