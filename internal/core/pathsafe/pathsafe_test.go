package pathsafe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRejectsMalformedPaths(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name     string
		relative string
		wantKind Kind
	}{
		{
			name:     "empty path",
			relative: "",
			wantKind: KindInvalid,
		},
		{
			name:     "backslash separator",
			relative: `artifacts\ranked.json`,
			wantKind: KindInvalid,
		},
		{
			name:     "absolute anchor",
			relative: "/etc/passwd",
			wantKind: KindInvalid,
		},
		{
			name:     "dot-dot traversal",
			relative: "../other_run/secret.json",
			wantKind: KindInvalid,
		},
		{
			name:     "buried dot-dot segment",
			relative: "artifacts/../../escape.json",
			wantKind: KindInvalid,
		},
		{
			name:     "only dots",
			relative: "./.",
			wantKind: KindInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(root, tt.relative)
			if err == nil {
				t.Fatalf("expected error for %q, got none", tt.relative)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *pathsafe.Error, got %T: %v", err, err)
			}
			if perr.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", perr.Kind, tt.wantKind)
			}
		})
	}
}

func TestResolveAcceptsSafePaths(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name     string
		relative string
		want     string
	}{
		{
			name:     "plain file",
			relative: "run_summary.v1.json",
			want:     filepath.Join(root, "run_summary.v1.json"),
		},
		{
			name:     "nested artifact",
			relative: "artifacts/ranked_openai_cs.json",
			want:     filepath.Join(root, "artifacts", "ranked_openai_cs.json"),
		},
		{
			name:     "redundant dots and slashes",
			relative: "./artifacts//./ranked.json",
			want:     filepath.Join(root, "artifacts", "ranked.json"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(root, tt.relative)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.relative, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.relative, got, tt.want)
			}
		})
	}
}

func TestResolveRejectsSymlinkedAncestor(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(root, "artifacts")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	// Target does not exist; the symlinked parent must still be rejected.
	_, err := Resolve(root, "artifacts/ranked.json")
	if err == nil {
		t.Fatal("expected symlink error, got none")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pathsafe.Error, got %T: %v", err, err)
	}
	if perr.Kind != KindSymlink {
		t.Errorf("kind = %s, want %s", perr.Kind, KindSymlink)
	}
}

func TestResolveRejectsSymlinkedFinalComponent(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(t.TempDir(), "real.json")
	if err := os.WriteFile(real, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Symlink(real, filepath.Join(root, "link.json")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	_, err := Resolve(root, "link.json")
	if err == nil {
		t.Fatal("expected symlink error, got none")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pathsafe.Error, got %T: %v", err, err)
	}
	if perr.Kind != KindSymlink {
		t.Errorf("kind = %s, want %s", perr.Kind, KindSymlink)
	}
}

func TestOpenReadRefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.json")
	if err := os.WriteFile(real, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	link := filepath.Join(dir, "link.json")
	if err := os.Symlink(real, link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	if _, err := OpenRead(link); err == nil {
		t.Fatal("expected error opening symlink, got none")
	}

	f, err := OpenRead(real)
	if err != nil {
		t.Fatalf("OpenRead(real) failed: %v", err)
	}
	f.Close()
}
