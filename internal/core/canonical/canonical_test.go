package canonical

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJSONSortsKeysAndUsesMinimalSeparators(t *testing.T) {
	v, err := Decode([]byte(`{"zeta": 1, "alpha": {"b": 2, "a": [1, 2.5, "x"]}}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got, err := JSON(v)
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	want := `{"alpha":{"a":[1,2.5,"x"],"b":2},"zeta":1}`
	if got != want {
		t.Errorf("canonical = %s, want %s", got, want)
	}
}

func TestJSONKeepsUTF8Unescaped(t *testing.T) {
	v, err := Decode([]byte(`{"city": "Zürich", "cmp": "<&>"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got, err := JSON(v)
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	want := `{"city":"Zürich","cmp":"<&>"}`
	if got != want {
		t.Errorf("canonical = %s, want %s", got, want)
	}
	if strings.Contains(got, `\u003c`) {
		t.Errorf("HTML characters were escaped: %s", got)
	}
}

func TestJSONPreservesNumberLiterals(t *testing.T) {
	v, err := Decode([]byte(`{"score": 0.8500, "count": 12}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got, err := JSON(v)
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	want := `{"count":12,"score":0.8500}`
	if got != want {
		t.Errorf("canonical = %s, want %s", got, want)
	}
}

func TestNormalizeStripsVolatileKeys(t *testing.T) {
	v, err := Decode([]byte(`{
		"run_id": "20260101t120000z",
		"created_at_utc": "2026-01-01T12:00:00Z",
		"duration_sec": 42.5,
		"jobs": [{"id": "a", "scraped_at": "2026-01-01", "score": 1}]
	}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got, err := NormalizedJSON(v, false)
	if err != nil {
		t.Fatalf("NormalizedJSON failed: %v", err)
	}
	want := `{"jobs":[{"id":"a","score":1}],"run_id":"20260101t120000z"}`
	if got != want {
		t.Errorf("normalized = %s, want %s", got, want)
	}

	got, err = NormalizedJSON(v, true)
	if err != nil {
		t.Fatalf("NormalizedJSON failed: %v", err)
	}
	want = `{"jobs":[{"id":"a","score":1}]}`
	if got != want {
		t.Errorf("normalized with run_id dropped = %s, want %s", got, want)
	}
}

func TestNormalizedEqualityAcrossVolatileDrift(t *testing.T) {
	left, err := Decode([]byte(`{"jobs": [{"id": "a"}], "generated_at": "2026-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	right, err := Decode([]byte(`{"generated_at": "2026-02-02T00:00:00Z", "jobs": [{"id": "a"}]}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	l, err := NormalizedJSON(left, false)
	if err != nil {
		t.Fatalf("NormalizedJSON failed: %v", err)
	}
	r, err := NormalizedJSON(right, false)
	if err != nil {
		t.Fatalf("NormalizedJSON failed: %v", err)
	}
	if l != r {
		t.Errorf("documents differing only in volatile keys compare unequal:\nleft  = %s\nright = %s", l, r)
	}
}

func TestSHA256File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json")
	if err := os.WriteFile(path, []byte("hello\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	got, err := SHA256File(path)
	if err != nil {
		t.Fatalf("SHA256File failed: %v", err)
	}
	// sha256 of "hello\n"
	want := "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"
	if got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}
}

func TestSHA256FileMissing(t *testing.T) {
	if _, err := SHA256File(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file, got none")
	}
}
