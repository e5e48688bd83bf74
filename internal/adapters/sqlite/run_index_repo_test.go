package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/runvault/internal/adapters/sqlite"
	"github.com/example/runvault/internal/ports/secondary"
)

func TestListRunsOrdering(t *testing.T) {
	// Insertion order must not matter; listing is (timestamp DESC, run_id DESC).
	permutations := [][]struct{ id, ts string }{
		{
			{"r_a", "2026-01-03T00:00:00Z"},
			{"r_b", "2026-01-02T00:00:00Z"},
			{"r_c", "2026-01-02T00:00:00Z"},
		},
		{
			{"r_c", "2026-01-02T00:00:00Z"},
			{"r_a", "2026-01-03T00:00:00Z"},
			{"r_b", "2026-01-02T00:00:00Z"},
		},
		{
			{"r_b", "2026-01-02T00:00:00Z"},
			{"r_c", "2026-01-02T00:00:00Z"},
			{"r_a", "2026-01-03T00:00:00Z"},
		},
	}

	for i, perm := range permutations {
		repo := sqlite.NewRunIndexRepository(setupTestDB(t), "alice")
		for _, run := range perm {
			seedRunRow(t, repo, run.id, run.ts)
		}

		rows, err := repo.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("permutation %d: ListRuns failed: %v", i, err)
		}
		want := []string{"r_a", "r_c", "r_b"}
		if len(rows) != len(want) {
			t.Fatalf("permutation %d: got %d rows, want %d", i, len(rows), len(want))
		}
		for j, id := range want {
			if rows[j].RunID != id {
				t.Errorf("permutation %d: row %d = %s, want %s", i, j, rows[j].RunID, id)
			}
		}
	}
}

func TestListRunsLimit(t *testing.T) {
	repo := sqlite.NewRunIndexRepository(setupTestDB(t), "alice")
	seedRunRow(t, repo, "r1", "2026-01-01T00:00:00Z")
	seedRunRow(t, repo, "r2", "2026-01-02T00:00:00Z")
	seedRunRow(t, repo, "r3", "2026-01-03T00:00:00Z")

	rows, err := repo.ListRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].RunID != "r3" || rows[1].RunID != "r2" {
		t.Errorf("order = [%s %s], want [r3 r2]", rows[0].RunID, rows[1].RunID)
	}
}

func TestGetRun(t *testing.T) {
	repo := sqlite.NewRunIndexRepository(setupTestDB(t), "alice")
	seeded := seedRunRow(t, repo, "r1", "2026-01-01T00:00:00Z")

	row, err := repo.GetRun(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if row.RunID != seeded.RunID || row.Timestamp != seeded.Timestamp || row.RunDir != seeded.RunDir {
		t.Errorf("row = %+v, want %+v", row, seeded)
	}
	if row.Candidate != "alice" {
		t.Errorf("candidate = %s, want alice", row.Candidate)
	}
}

func TestGetRunNotFound(t *testing.T) {
	repo := sqlite.NewRunIndexRepository(setupTestDB(t), "alice")

	_, err := repo.GetRun(context.Background(), "missing")
	if !errors.Is(err, secondary.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestInsertReplacesExistingRow(t *testing.T) {
	repo := sqlite.NewRunIndexRepository(setupTestDB(t), "alice")
	seedRunRow(t, repo, "r1", "2026-01-01T00:00:00Z")
	seedRunRow(t, repo, "r1", "2026-01-05T00:00:00Z")

	rows, err := repo.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Timestamp != "2026-01-05T00:00:00Z" {
		t.Errorf("timestamp = %s, want replacement value", rows[0].Timestamp)
	}
}

func TestListPage(t *testing.T) {
	repo := sqlite.NewRunIndexRepository(setupTestDB(t), "alice")
	for _, run := range []struct{ id, ts string }{
		{"r1", "2026-01-01T00:00:00Z"},
		{"r2", "2026-01-02T00:00:00Z"},
		{"r3", "2026-01-03T00:00:00Z"},
		{"r4", "2026-01-04T00:00:00Z"},
		{"r5", "2026-01-05T00:00:00Z"},
	} {
		seedRunRow(t, repo, run.id, run.ts)
	}

	var got []string
	for offset := 0; ; offset += 2 {
		page, err := repo.ListPage(context.Background(), offset, 2)
		if err != nil {
			t.Fatalf("ListPage failed: %v", err)
		}
		for _, row := range page {
			got = append(got, row.RunID)
		}
		if len(page) < 2 {
			break
		}
	}

	want := []string{"r5", "r4", "r3", "r2", "r1"}
	if len(got) != len(want) {
		t.Fatalf("paged %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paged row %d = %s, want %s", i, got[i], want[i])
		}
	}
}
