package validation

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/example/runvault/internal/core/canonical"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("failed to compile schema: %v", err)
	}
	return v
}

func TestValidRunSummary(t *testing.T) {
	v := newValidator(t)
	doc := `{
		"schema_version": 1,
		"candidate": "alice",
		"run_id": "r1",
		"run_started_at": "2026-01-01T00:00:00Z",
		"snapshot_manifest": {"path": "snapshots/manifest.json", "sha256": "aaa"},
		"scoring_config": {"path": "config/scoring.json", "sha256": "bbb"},
		"provider_registry_sha256": "ccc"
	}`
	if errs := v.RunSummary([]byte(doc)); len(errs) != 0 {
		t.Errorf("expected valid, got %v", errs)
	}
}

func TestRunSummaryViolations(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "wrong schema version",
			doc:  `{"schema_version": 2, "candidate": "alice", "run_id": "r1", "snapshot_manifest": {"path": "p", "sha256": "x"}, "scoring_config": {"path": "p", "sha256": "x"}, "provider_registry_sha256": "x"}`,
			want: "schema_version",
		},
		{
			name: "missing candidate",
			doc:  `{"schema_version": 1, "run_id": "r1", "snapshot_manifest": {"path": "p", "sha256": "x"}, "scoring_config": {"path": "p", "sha256": "x"}, "provider_registry_sha256": "x"}`,
			want: "candidate",
		},
		{
			name: "unknown field",
			doc:  `{"schema_version": 1, "candidate": "alice", "run_id": "r1", "snapshot_manifest": {"path": "p", "sha256": "x"}, "scoring_config": {"path": "p", "sha256": "x"}, "provider_registry_sha256": "x", "surprise": true}`,
			want: "unknown field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.RunSummary([]byte(tt.doc))
			if len(errs) == 0 {
				t.Fatal("expected violations, got none")
			}
			var found bool
			for _, e := range errs {
				if strings.Contains(e, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", errs, tt.want)
			}
		})
	}
}

func TestRunReportHashFormat(t *testing.T) {
	v := newValidator(t)
	doc := `{
		"run_id": "r1",
		"verifiable_artifacts": {
			"ranked_json:openai:cs": {"path": "artifacts/r.json", "sha256": "not-hex", "hash_algo": "sha256"}
		}
	}`
	errs := v.RunReport([]byte(doc))
	if len(errs) == 0 {
		t.Fatal("expected a schema violation for a malformed digest")
	}
}

func TestRunIndexRequiresTimestamp(t *testing.T) {
	v := newValidator(t)
	errs := v.RunIndex([]byte(`{"run_id": "r1", "artifacts": {}}`))
	if len(errs) == 0 {
		t.Fatal("expected a violation for missing timestamp")
	}
}

// Every schema property named like a timestamp or duration must be stripped
// during normalization, or the comparator would flag spurious drift the
// moment such a field is added to an artifact.
func TestTimestampFieldsAreVolatile(t *testing.T) {
	volatilePattern := regexp.MustCompile(`_at$|_at_utc$|^timestamp$|_sec$`)

	var schema map[string]any
	if err := json.Unmarshal(schemaDocument, &schema); err != nil {
		t.Fatalf("embedded schema unparseable: %v", err)
	}

	var names []string
	var walk func(node any)
	walk = func(node any) {
		obj, ok := node.(map[string]any)
		if !ok {
			if list, ok := node.([]any); ok {
				for _, item := range list {
					walk(item)
				}
			}
			return
		}
		if props, ok := obj["properties"].(map[string]any); ok {
			for name := range props {
				names = append(names, name)
			}
		}
		for _, value := range obj {
			walk(value)
		}
	}
	walk(schema)

	if len(names) == 0 {
		t.Fatal("schema walk found no properties")
	}
	for _, name := range names {
		if !volatilePattern.MatchString(name) {
			continue
		}
		if _, ok := canonical.VolatileValueKeys[name]; !ok {
			t.Errorf("schema field %q looks volatile but is not stripped during normalization", name)
		}
	}
}
