package issueservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasklanes/internal/issuestorage"
)

func TestNextFollowsSeriesOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	epic := mustCreate(t, svc, NewIssue{Title: "epic", Type: issuestorage.TypeEpic})
	first := mustCreate(t, svc, NewIssue{Title: "first", Parent: epic.ID})
	mustCreate(t, svc, NewIssue{Title: "second", Parent: epic.ID})
	loose := mustCreate(t, svc, NewIssue{Title: "loose"})

	next, err := svc.Next(ctx, "")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	got := map[string]bool{}
	for _, issue := range next {
		got[issue.ID] = true
	}
	if len(got) != 2 || !got[first.ID] || !got[loose.ID] {
		t.Errorf("Next = %v, want %s and %s", got, first.ID, loose.ID)
	}

	scoped, err := svc.Next(ctx, epic.ID)
	if err != nil {
		t.Fatalf("Next(scope): %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != first.ID {
		t.Errorf("scoped Next = %v", scoped)
	}

	if _, err := svc.Next(ctx, "tl-none"); !errors.Is(err, issuestorage.ErrNotFound) {
		t.Errorf("unknown scope err = %v", err)
	}
}

func TestTaskGraphMatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	epic := mustCreate(t, svc, NewIssue{Title: "epic", Type: issuestorage.TypeEpic})
	mustCreate(t, svc, NewIssue{Title: "Fix Login", Parent: epic.ID})
	mustCreate(t, svc, NewIssue{Title: "unrelated"})

	full, err := svc.TaskGraph(ctx, "")
	if err != nil {
		t.Fatalf("TaskGraph: %v", err)
	}
	if len(full.Nodes) != 3 {
		t.Errorf("full layout has %d nodes, want 3", len(full.Nodes))
	}

	filtered, err := svc.TaskGraph(ctx, "login")
	if err != nil {
		t.Fatalf("TaskGraph(match): %v", err)
	}
	if len(filtered.Nodes) != 2 {
		t.Fatalf("filtered layout has %d nodes, want 2", len(filtered.Nodes))
	}
	if filtered.Nodes[0].Issue.Title.Value != "Fix Login" || filtered.Nodes[1].Issue.ID != epic.ID {
		t.Errorf("filtered rows: %s, %s", filtered.Nodes[0].Issue.Title.Value, filtered.Nodes[1].Issue.Title.Value)
	}
}

func TestValidateReportsStoredCycle(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	parentOf := func(id string) issuestorage.FieldMeta[[]issuestorage.ParentIssueRef] {
		return issuestorage.Field([]issuestorage.ParentIssueRef{{ParentIssue: id, SortOrder: "V"}}, at, "seed")
	}
	if err := store.SaveAll(ctx, []*issuestorage.Issue{
		{ID: "tl-a", ParentIssues: parentOf("tl-b")},
		{ID: "tl-b", ParentIssues: parentOf("tl-a")},
	}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	result, err := svc.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid || len(result.Cycles) != 1 {
		t.Errorf("Validate = %+v, want one cycle", result)
	}
}

func TestResolveDuplicates(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	issue := mustCreate(t, svc, NewIssue{Title: "original"})

	elsewhere := issue.Clone()
	elsewhere.Title.Set("edited elsewhere", issue.Title.LastUpdate.Add(time.Hour), "laptop")
	if err := store.WriteShard(ctx, "laptop", []*issuestorage.Issue{elsewhere}); err != nil {
		t.Fatalf("WriteShard: %v", err)
	}

	got, err := svc.Get(ctx, issue.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title.Value != "edited elsewhere" {
		t.Errorf("snapshot title = %q, want merged value", got.Title.Value)
	}

	dry, err := svc.ResolveDuplicates(ctx, true)
	if err != nil {
		t.Fatalf("ResolveDuplicates(dry): %v", err)
	}
	if len(dry.Merged) != 1 || dry.ShardsFolded != 1 {
		t.Errorf("dry run report = %+v", dry)
	}
	if shards, _ := store.Shards(ctx); len(shards) != 1 {
		t.Errorf("dry run touched shards: %v", shards)
	}

	report, err := svc.ResolveDuplicates(ctx, false)
	if err != nil {
		t.Fatalf("ResolveDuplicates: %v", err)
	}
	if len(report.Merged) != 1 || report.Merged[0].Copies != 2 {
		t.Fatalf("report = %+v", report)
	}

	shards, err := store.Shards(ctx)
	if err != nil {
		t.Fatalf("Shards: %v", err)
	}
	if len(shards) != 0 {
		t.Errorf("shards after resolve = %v", shards)
	}
	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 1 || records[0].Title.Value != "edited elsewhere" {
		t.Errorf("stored records = %+v", records)
	}

	history, err := svc.History(ctx, issue.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	last := history[len(history)-1]
	if last.MergeResolution != issuestorage.ResolutionB || last.NewValue != "edited elsewhere" {
		t.Errorf("last history entry = %+v", last)
	}

	again, err := svc.ResolveDuplicates(ctx, false)
	if err != nil {
		t.Fatalf("second ResolveDuplicates: %v", err)
	}
	if len(again.Merged) != 0 || again.ShardsFolded != 0 {
		t.Errorf("second report = %+v", again)
	}
}
