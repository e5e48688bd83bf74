package models

import "fmt"

// Expected schema versions for the tagged artifact documents. The comparator
// asserts these on both runs before any semantic comparison.
const (
	RunSummarySchemaVersion           = 1
	RunHealthSchemaVersion            = 1
	ProviderAvailabilitySchemaVersion = 1
)

// ArtifactRef is a (path, digest) pointer to a supporting input, such as the
// snapshot manifest or the scoring configuration a run was executed with.
type ArtifactRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// RunSummary is the run_summary.v1.json document.
type RunSummary struct {
	SchemaVersion          int         `json:"schema_version"`
	Candidate              string      `json:"candidate"`
	RunID                  string      `json:"run_id"`
	RunStartedAt           string      `json:"run_started_at,omitempty"`
	EndedAt                string      `json:"ended_at,omitempty"`
	DurationSec            float64     `json:"duration_sec,omitempty"`
	SnapshotManifest       ArtifactRef `json:"snapshot_manifest"`
	ScoringConfig          ArtifactRef `json:"scoring_config"`
	ProviderRegistrySHA256 string      `json:"provider_registry_sha256"`
	Providers              []string    `json:"providers,omitempty"`
	Profiles               []string    `json:"profiles,omitempty"`
	JobCount               int         `json:"job_count,omitempty"`
}

// Validate returns every contract violation in the document. An empty slice
// means the document is well formed.
func (s *RunSummary) Validate() []string {
	var errs []string
	if s.SchemaVersion != RunSummarySchemaVersion {
		errs = append(errs, fmt.Sprintf("run_summary: schema_version is %d, expected %d", s.SchemaVersion, RunSummarySchemaVersion))
	}
	if s.Candidate == "" {
		errs = append(errs, "run_summary: candidate is required")
	}
	if s.RunID == "" {
		errs = append(errs, "run_summary: run_id is required")
	}
	if s.SnapshotManifest.SHA256 == "" {
		errs = append(errs, "run_summary: snapshot_manifest.sha256 is required")
	}
	if s.ScoringConfig.SHA256 == "" {
		errs = append(errs, "run_summary: scoring_config.sha256 is required")
	}
	return errs
}

// HealthCheck is one named check inside run_health.v1.json.
type HealthCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RunHealth is the run_health.v1.json document.
type RunHealth struct {
	SchemaVersion int           `json:"schema_version"`
	RunID         string        `json:"run_id"`
	GeneratedAt   string        `json:"generated_at,omitempty"`
	Status        string        `json:"status"`
	Checks        []HealthCheck `json:"checks,omitempty"`
}

// Validate returns every contract violation in the document.
func (h *RunHealth) Validate() []string {
	var errs []string
	if h.SchemaVersion != RunHealthSchemaVersion {
		errs = append(errs, fmt.Sprintf("run_health: schema_version is %d, expected %d", h.SchemaVersion, RunHealthSchemaVersion))
	}
	if h.RunID == "" {
		errs = append(errs, "run_health: run_id is required")
	}
	if h.Status == "" {
		errs = append(errs, "run_health: status is required")
	}
	return errs
}

// ProviderStatus is one provider's availability record.
type ProviderStatus struct {
	Available bool   `json:"available"`
	FetchedAt string `json:"fetched_at,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// ProviderAvailability is the provider_availability.v1.json document.
type ProviderAvailability struct {
	SchemaVersion int                       `json:"schema_version"`
	RunID         string                    `json:"run_id"`
	Providers     map[string]ProviderStatus `json:"providers"`
}

// Validate returns every contract violation in the document.
func (a *ProviderAvailability) Validate() []string {
	var errs []string
	if a.SchemaVersion != ProviderAvailabilitySchemaVersion {
		errs = append(errs, fmt.Sprintf("provider_availability: schema_version is %d, expected %d", a.SchemaVersion, ProviderAvailabilitySchemaVersion))
	}
	if a.RunID == "" {
		errs = append(errs, "provider_availability: run_id is required")
	}
	return errs
}
