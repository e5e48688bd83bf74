package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/runvault/internal/core/canonical"
	"github.com/example/runvault/internal/models"
)

// runFixture describes a synthetic run directory for verifier and comparator
// tests. Jobs land in a ranked_json artifact; Timestamp feeds the volatile
// fields so two fixtures can differ only in when they "ran".
type runFixture struct {
	Candidate string
	RunID     string
	Timestamp string
	Jobs      []map[string]any
	CSV       string
	Family    map[string]any
}

// writeRunDir materializes the fixture under dir and returns the artifact
// map that went into index.json.
func writeRunDir(t *testing.T, dir string, fx runFixture) map[string]string {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "artifacts"), 0755); err != nil {
		t.Fatalf("failed to create run dir: %v", err)
	}

	writeDoc := func(name string, doc any) {
		t.Helper()
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			t.Fatalf("failed to marshal %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), data, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	writeDoc(models.RunSummaryFile, map[string]any{
		"schema_version":           models.RunSummarySchemaVersion,
		"candidate":                fx.Candidate,
		"run_id":                   fx.RunID,
		"run_started_at":           fx.Timestamp,
		"snapshot_manifest":        map[string]any{"path": "snapshots/manifest.json", "sha256": "aaa111"},
		"scoring_config":           map[string]any{"path": "config/scoring.json", "sha256": "bbb222"},
		"provider_registry_sha256": "ccc333",
	})
	writeDoc(models.RunHealthFile, map[string]any{
		"schema_version": models.RunHealthSchemaVersion,
		"run_id":         fx.RunID,
		"generated_at":   fx.Timestamp,
		"status":         "ok",
	})
	writeDoc(models.ProviderAvailabilityFile, map[string]any{
		"schema_version": models.ProviderAvailabilitySchemaVersion,
		"run_id":         fx.RunID,
		"providers": map[string]any{
			"openai": map[string]any{"available": true, "fetched_at": fx.Timestamp},
		},
	})

	artifacts := map[string]string{}
	if fx.Jobs != nil {
		writeDoc("artifacts/ranked_openai_cs.json", map[string]any{
			"run_id":       fx.RunID,
			"generated_at": fx.Timestamp,
			"jobs":         fx.Jobs,
		})
		artifacts["ranked_json:openai:cs"] = "artifacts/ranked_openai_cs.json"
	}
	if fx.CSV != "" {
		if err := os.WriteFile(filepath.Join(dir, "artifacts", "ranked_openai_cs.csv"), []byte(fx.CSV), 0644); err != nil {
			t.Fatalf("failed to write csv artifact: %v", err)
		}
		artifacts["ranked_csv:openai:cs"] = "artifacts/ranked_openai_cs.csv"
	}
	if fx.Family != nil {
		writeDoc("artifacts/ranked_family_openai.json", fx.Family)
		artifacts["ranked_family:openai"] = "artifacts/ranked_family_openai.json"
	}

	writeDoc(models.RunIndexFile, map[string]any{
		"run_id":    fx.RunID,
		"timestamp": fx.Timestamp,
		"providers": map[string]any{
			"openai": map[string]any{"profiles": map[string]any{"cs": map[string]any{}}},
		},
		"artifacts": artifacts,
	})

	report := models.RunReport{
		RunID:               fx.RunID,
		Candidate:           fx.Candidate,
		VerifiableArtifacts: map[string]models.ManifestEntry{},
	}
	for key, rel := range artifacts {
		digest, err := canonical.SHA256File(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("failed to hash %s: %v", rel, err)
		}
		report.VerifiableArtifacts[key] = models.ManifestEntry{Path: rel, SHA256: digest, HashAlgo: "sha256"}
	}
	writeDoc(models.RunReportFile, report)

	return artifacts
}

func defaultJobs() []map[string]any {
	return []map[string]any{
		{"apply_url": "https://jobs.example/a", "title": "engineer", "score": 0.91},
		{"apply_url": "https://jobs.example/b", "title": "analyst", "score": 0.84},
	}
}
