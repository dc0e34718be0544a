package issuestorage

import (
	"context"
	"errors"
	"testing"
	"time"
)

// RunContractTests runs the full contract test suite against an IssueStore implementation.
// Each storage engine should call this with its own factory function to ensure
// consistent behavior across all implementations. Sharding and change log
// checks run only when the store implements those interfaces.
func RunContractTests(t *testing.T, factory func() IssueStore) {
	t.Run("InitIdempotent", func(t *testing.T) { testInitIdempotent(t, factory()) })
	t.Run("LoadEmpty", func(t *testing.T) { testLoadEmpty(t, factory()) })
	t.Run("AppendThenLoad", func(t *testing.T) { testAppendThenLoad(t, factory()) })
	t.Run("SaveAllReplaces", func(t *testing.T) { testSaveAllReplaces(t, factory()) })
	t.Run("AppendAfterSave", func(t *testing.T) { testAppendAfterSave(t, factory()) })
	t.Run("CanceledContext", func(t *testing.T) { testCanceledContext(t, factory()) })
	t.Run("Shards", func(t *testing.T) { testShards(t, factory()) })
	t.Run("ChangeLog", func(t *testing.T) { testChangeLog(t, factory()) })
}

var contractTime = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func contractIssue(id, title string) *Issue {
	prio := 1
	return &Issue{
		ID:            id,
		Title:         Field(title, contractTime, "tester"),
		Description:   Field("body of "+title, contractTime, "tester"),
		Status:        Field(StatusOpen, contractTime, "tester"),
		Type:          Field(TypeTask, contractTime, "tester"),
		Priority:      Field(&prio, contractTime, "tester"),
		Tags:          Field([]string{"backend"}, contractTime, "tester"),
		ExecutionMode: Field(ModeParallel, contractTime, "tester"),
		CreatedBy:     "tester",
		CreatedAt:     contractTime,
		LastUpdate:    contractTime,
	}
}

func mustInit(t *testing.T, s IssueStore) context.Context {
	t.Helper()
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return ctx
}

func mustLoad(t *testing.T, ctx context.Context, s IssueStore) []*Issue {
	t.Helper()
	issues, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	return issues
}

func titles(issues []*Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Title.Value
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testInitIdempotent(t *testing.T, s IssueStore) {
	ctx := mustInit(t, s)
	if err := s.Append(ctx, contractIssue("tl-1", "kept")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if got := mustLoad(t, ctx, s); len(got) != 1 {
		t.Errorf("second Init lost data: %d issues", len(got))
	}
}

func testLoadEmpty(t *testing.T, s IssueStore) {
	ctx := mustInit(t, s)
	if got := mustLoad(t, ctx, s); len(got) != 0 {
		t.Errorf("LoadAll on empty store returned %d issues", len(got))
	}
}

func testAppendThenLoad(t *testing.T, s IssueStore) {
	ctx := mustInit(t, s)

	issue := contractIssue("tl-abc", "Append Test")
	issue.ParentIssues = Field([]ParentIssueRef{{ParentIssue: "tl-parent", SortOrder: "V"}}, contractTime, "tester")
	issue.LinkedIssues = Field([]string{"tl-other"}, contractTime, "tester")
	if err := s.Append(ctx, issue); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got := mustLoad(t, ctx, s)
	if len(got) != 1 {
		t.Fatalf("LoadAll returned %d issues, want 1", len(got))
	}
	g := got[0]
	if g.ID != "tl-abc" {
		t.Errorf("ID mismatch: got %q", g.ID)
	}
	if g.Title.Value != "Append Test" || !g.Title.LastUpdate.Equal(contractTime) || g.Title.ModifiedBy != "tester" {
		t.Errorf("Title mismatch: %+v", g.Title)
	}
	if g.PriorityOrMissing() != 1 {
		t.Errorf("Priority mismatch: got %d", g.PriorityOrMissing())
	}
	if g.Mode() != ModeParallel {
		t.Errorf("ExecutionMode mismatch: got %q", g.ExecutionMode.Value)
	}
	ref, ok := g.ParentRef("tl-parent")
	if !ok || ref.SortOrder != "V" {
		t.Errorf("ParentIssues mismatch: %+v", g.ParentIssues.Value)
	}
	if !equalStrings(g.LinkedIssues.Value, []string{"tl-other"}) {
		t.Errorf("LinkedIssues mismatch: %v", g.LinkedIssues.Value)
	}
	if !g.CreatedAt.Equal(contractTime) || g.CreatedBy != "tester" {
		t.Errorf("creation mismatch: %v by %q", g.CreatedAt, g.CreatedBy)
	}
}

func testSaveAllReplaces(t *testing.T, s IssueStore) {
	ctx := mustInit(t, s)

	for _, title := range []string{"one", "two", "three"} {
		if err := s.Append(ctx, contractIssue("tl-"+title, title)); err != nil {
			t.Fatalf("Append %s failed: %v", title, err)
		}
	}

	replacement := []*Issue{contractIssue("tl-b", "beta"), contractIssue("tl-a", "alpha")}
	if err := s.SaveAll(ctx, replacement); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	if got := titles(mustLoad(t, ctx, s)); !equalStrings(got, []string{"beta", "alpha"}) {
		t.Errorf("after SaveAll: %v, want [beta alpha]", got)
	}

	if err := s.SaveAll(ctx, nil); err != nil {
		t.Fatalf("SaveAll(nil) failed: %v", err)
	}
	if got := mustLoad(t, ctx, s); len(got) != 0 {
		t.Errorf("SaveAll(nil) left %d issues", len(got))
	}
}

func testAppendAfterSave(t *testing.T, s IssueStore) {
	ctx := mustInit(t, s)

	if err := s.SaveAll(ctx, []*Issue{contractIssue("tl-1", "first")}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	if err := s.Append(ctx, contractIssue("tl-2", "second")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if got := titles(mustLoad(t, ctx, s)); !equalStrings(got, []string{"first", "second"}) {
		t.Errorf("got %v, want [first second]", got)
	}
}

func testCanceledContext(t *testing.T, s IssueStore) {
	mustInit(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.LoadAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadAll with canceled context: got %v, want context.Canceled", err)
	}
	if err := s.SaveAll(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("SaveAll with canceled context: got %v, want context.Canceled", err)
	}
}

func testShards(t *testing.T, s IssueStore) {
	sharded, ok := s.(ShardedStore)
	if !ok {
		t.Skip("store does not support shards")
	}
	ctx := mustInit(t, s)

	if err := s.Append(ctx, contractIssue("tl-1", "primary copy")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sharded.WriteShard(ctx, "zeta", []*Issue{contractIssue("tl-1", "zeta copy")}); err != nil {
		t.Fatalf("WriteShard zeta failed: %v", err)
	}
	if err := sharded.WriteShard(ctx, "alpha", []*Issue{contractIssue("tl-1", "alpha copy"), contractIssue("tl-2", "alpha only")}); err != nil {
		t.Fatalf("WriteShard alpha failed: %v", err)
	}
	if err := sharded.WriteShard(ctx, "bad/name", nil); !errors.Is(err, ErrInvalidShard) {
		t.Errorf("WriteShard bad name: got %v, want ErrInvalidShard", err)
	}

	shards, err := sharded.Shards(ctx)
	if err != nil {
		t.Fatalf("Shards failed: %v", err)
	}
	if !equalStrings(shards, []string{"alpha", "zeta"}) {
		t.Errorf("Shards = %v, want [alpha zeta]", shards)
	}

	want := []string{"primary copy", "alpha copy", "alpha only", "zeta copy"}
	if got := titles(mustLoad(t, ctx, s)); !equalStrings(got, want) {
		t.Errorf("LoadAll = %v, want %v", got, want)
	}

	if err := s.SaveAll(ctx, []*Issue{contractIssue("tl-1", "merged")}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	shards, err = sharded.Shards(ctx)
	if err != nil {
		t.Fatalf("Shards after SaveAll failed: %v", err)
	}
	if len(shards) != 0 {
		t.Errorf("SaveAll kept shards %v", shards)
	}
	if got := titles(mustLoad(t, ctx, s)); !equalStrings(got, []string{"merged"}) {
		t.Errorf("after SaveAll: %v", got)
	}
}

func testChangeLog(t *testing.T, s IssueStore) {
	log, ok := s.(ChangeLog)
	if !ok {
		t.Skip("store does not keep a change log")
	}
	ctx := mustInit(t, s)

	first := []PropertyChange{
		{PropertyName: "title", OldValue: "a", NewValue: "b", Timestamp: contractTime, ModifiedBy: "tester"},
		{PropertyName: "status", OldValue: "open", NewValue: "review", Timestamp: contractTime, ModifiedBy: "tester"},
	}
	if err := log.RecordChanges(ctx, "TL-1", first); err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}
	if err := log.RecordChanges(ctx, "tl-2", []PropertyChange{{PropertyName: "title", NewValue: "x", Timestamp: contractTime}}); err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}
	later := PropertyChange{PropertyName: "priority", OldValue: "1", NewValue: "0", Timestamp: contractTime.Add(time.Minute), MergeResolution: ResolutionB}
	if err := log.RecordChanges(ctx, "tl-1", []PropertyChange{later}); err != nil {
		t.Fatalf("RecordChanges failed: %v", err)
	}

	got, err := log.Changes(ctx, "tl-1")
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Changes returned %d entries, want 3: %+v", len(got), got)
	}
	if got[0].PropertyName != "title" || got[1].PropertyName != "status" || got[2].PropertyName != "priority" {
		t.Errorf("Changes out of order: %+v", got)
	}
	if got[2].MergeResolution != ResolutionB || !got[2].Timestamp.Equal(later.Timestamp) {
		t.Errorf("Changes lost fields: %+v", got[2])
	}

	none, err := log.Changes(ctx, "tl-unknown")
	if err != nil {
		t.Fatalf("Changes unknown failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Changes for unknown issue = %+v", none)
	}
}
