package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tasklanes/internal/issuestorage"
)

func TestFilesystemContract(t *testing.T) {
	issuestorage.RunContractTests(t, func() issuestorage.IssueStore {
		return New(filepath.Join(t.TempDir(), ".tasklanes"))
	})
}

func TestInitCreatesPrimaryShard(t *testing.T) {
	_, dir := newInitialized(t)
	if _, err := os.Stat(filepath.Join(dir, PrimaryShard)); err != nil {
		t.Errorf("primary shard missing: %v", err)
	}
}

func TestLoadAllWithoutInit(t *testing.T) {
	fs := New(filepath.Join(t.TempDir(), "missing"))
	if _, err := fs.LoadAll(context.Background()); err == nil {
		t.Error("LoadAll on a missing directory should fail")
	}
}

func TestSaveAllLeavesNoTempFiles(t *testing.T) {
	fs, dir := newInitialized(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := fs.SaveAll(ctx, []*issuestorage.Issue{sample(fmt.Sprintf("tl-%d", i))}); err != nil {
			t.Fatalf("SaveAll failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp.") {
			t.Errorf("leftover temp file %s", entry.Name())
		}
	}
}

func TestShardsIgnoresUnrelatedFiles(t *testing.T) {
	fs, dir := newInitialized(t)
	ctx := context.Background()

	for _, name := range []string{"notes.txt", "issues-.jsonl", "issues-a.b.jsonl", "issues-ok.jsonl.tmp.1234"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := fs.WriteShard(ctx, "ok", nil); err != nil {
		t.Fatalf("WriteShard: %v", err)
	}

	shards, err := fs.Shards(ctx)
	if err != nil {
		t.Fatalf("Shards: %v", err)
	}
	if len(shards) != 1 || shards[0] != "ok" {
		t.Errorf("Shards = %v, want [ok]", shards)
	}
}

func TestConcurrentAppend(t *testing.T) {
	fs, _ := newInitialized(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := fs.Append(ctx, sample(fmt.Sprintf("tl-%02d", i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Append failed: %v", err)
	}

	issues, err := fs.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(issues) != n {
		t.Fatalf("LoadAll returned %d issues, want %d", len(issues), n)
	}
	seen := make(map[string]bool)
	for _, issue := range issues {
		seen[issue.ID] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct ids, got %d", n, len(seen))
	}
}

func TestChangesFileFormat(t *testing.T) {
	fs, dir := newInitialized(t)
	ctx := context.Background()

	change := issuestorage.PropertyChange{PropertyName: "title", OldValue: "a", NewValue: "b"}
	if err := fs.RecordChanges(ctx, "TL-1", []issuestorage.PropertyChange{change, change}); err != nil {
		t.Fatalf("RecordChanges: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ChangesFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], `"issue_id":"tl-1"`) {
		t.Errorf("issue id not normalized: %s", lines[0])
	}
}
