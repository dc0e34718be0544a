package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasklanes/internal/issuestorage"
)

func TestDoctorClean(t *testing.T) {
	app, _ := setupTestApp(t)
	createIssue(t, app, "Healthy")

	out := mustRun(t, app, newDoctorCmd)
	if !strings.Contains(out, "No problems found") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestDoctorTempFile(t *testing.T) {
	app, store := setupTestApp(t)
	tmp := filepath.Join(store.Root(), "issues.jsonl.tmp.deadbeef")
	if err := os.WriteFile(tmp, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, app, newDoctorCmd)
	if !strings.Contains(out, "orphaned temp file") {
		t.Errorf("temp file not reported:\n%s", out)
	}
	if _, err := os.Stat(tmp); err != nil {
		t.Error("check-only run removed the temp file")
	}

	mustRun(t, app, newDoctorCmd, "--fix")
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp file survived --fix")
	}
}

func TestDoctorFoldsShards(t *testing.T) {
	app, store := setupTestApp(t)
	ctx := context.Background()
	id := createIssue(t, app, "Original title")

	elsewhere := getIssue(t, app, id).Clone()
	elsewhere.Title.Set("Renamed on laptop", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), "laptop")
	if err := store.WriteShard(ctx, "laptop", []*issuestorage.Issue{elsewhere}); err != nil {
		t.Fatalf("WriteShard: %v", err)
	}

	out := mustRun(t, app, newDoctorCmd)
	if !strings.Contains(out, "1 secondary shard(s)") || !strings.Contains(out, "stored 2 times") {
		t.Errorf("duplicates not reported:\n%s", out)
	}
	if shards, _ := store.Shards(ctx); len(shards) != 1 {
		t.Errorf("check-only run folded shards: %v", shards)
	}

	mustRun(t, app, newDoctorCmd, "--fix")
	if shards, _ := store.Shards(ctx); len(shards) != 0 {
		t.Errorf("shards left after --fix: %v", shards)
	}
	if got := getIssue(t, app, id).Title.Value; got != "Renamed on laptop" {
		t.Errorf("title = %q, want the newer copy", got)
	}
	issues, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 {
		t.Errorf("stored %d records, want 1", len(issues))
	}
}

func TestDoctorDanglingParent(t *testing.T) {
	app, store := setupTestApp(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	orphan := &issuestorage.Issue{
		ID:    "tl-orphan",
		Title: issuestorage.Field("Orphan", at, "seed"),
		ParentIssues: issuestorage.Field([]issuestorage.ParentIssueRef{
			{ParentIssue: "tl-gone", SortOrder: "V"},
		}, at, "seed"),
	}
	if err := store.Append(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, app, newDoctorCmd)
	if !strings.Contains(out, "dangling parent reference: tl-orphan -> tl-gone") {
		t.Errorf("dangling ref not reported:\n%s", out)
	}

	mustRun(t, app, newDoctorCmd, "--fix")
	if getIssue(t, app, "tl-orphan").HasParent("tl-gone") {
		t.Error("dangling ref survived --fix")
	}
}

func TestDoctorReportsCycles(t *testing.T) {
	app, store := setupTestApp(t)
	seedCycle(t, store)

	app.JSON = true
	got := decodeJSON[DoctorResult](t, mustRun(t, app, newDoctorCmd, "--fix"))
	found := false
	for _, p := range got.Problems {
		if strings.HasPrefix(p, "cycle") {
			found = true
		}
	}
	if !found {
		t.Errorf("cycle not reported: %v", got.Problems)
	}
	if !getIssue(t, app, "tl-a").HasParent("tl-b") {
		t.Error("doctor must not break cycles")
	}
}
