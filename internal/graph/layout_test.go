package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"tasklanes/internal/issuestorage"
)

type placement struct {
	ID   string
	Lane int
}

func placements(tg *TaskGraph) []placement {
	out := make([]placement, len(tg.Nodes))
	for i, node := range tg.Nodes {
		out[i] = placement{ID: node.Issue.ID, Lane: node.Lane}
	}
	return out
}

func TestLayoutSingleLeaf(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{newIssue("a", "only")}))

	if diff := cmp.Diff([]placement{{"a", 0}}, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if tg.TotalLanes != 1 {
		t.Errorf("TotalLanes = %d, want 1", tg.TotalLanes)
	}
	if !tg.Nodes[0].IsActionable {
		t.Error("leaf should be actionable")
	}
}

func TestLayoutEmpty(t *testing.T) {
	tg := BuildTaskGraph(Build(nil))
	if len(tg.Nodes) != 0 || tg.TotalLanes != 0 {
		t.Errorf("empty layout = %+v", tg)
	}
}

func TestLayoutSeriesTwoLeaves(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("p", "parent", withMode(issuestorage.ModeSeries)),
		newIssue("c1", "first", withParent("p", "aaa")),
		newIssue("c2", "second", withParent("p", "bbb")),
	}))

	want := []placement{{"c1", 0}, {"c2", 1}, {"p", 2}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if tg.TotalLanes != 3 {
		t.Errorf("TotalLanes = %d, want 3", tg.TotalLanes)
	}
	for i, node := range tg.Nodes {
		if node.Row != i {
			t.Errorf("node %s: Row = %d, want %d", node.Issue.ID, node.Row, i)
		}
	}
	if tg.Nodes[0].ParentExecutionMode != issuestorage.ModeSeries {
		t.Errorf("ParentExecutionMode = %q", tg.Nodes[0].ParentExecutionMode)
	}
	if !tg.Nodes[0].IsActionable || tg.Nodes[1].IsActionable {
		t.Errorf("actionable flags = %v, %v", tg.Nodes[0].IsActionable, tg.Nodes[1].IsActionable)
	}
}

func TestLayoutParallelTwoLeaves(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("p", "parent", withMode(issuestorage.ModeParallel)),
		newIssue("c1", "first", withParent("p", "aaa")),
		newIssue("c2", "second", withParent("p", "bbb")),
	}))

	want := []placement{{"c1", 0}, {"c2", 0}, {"p", 1}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if tg.TotalLanes != 2 {
		t.Errorf("TotalLanes = %d, want 2", tg.TotalLanes)
	}
}

func TestLayoutParallelDeepChildPushesCeiling(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("p", "parent", withMode(issuestorage.ModeParallel)),
		newIssue("deep", "deep", withParent("p", "a"), withMode(issuestorage.ModeSeries)),
		newIssue("d1", "d1", withParent("deep", "a")),
		newIssue("d2", "d2", withParent("deep", "b")),
		newIssue("flat", "flat", withParent("p", "b")),
	}))

	want := []placement{{"d1", 0}, {"d2", 1}, {"deep", 2}, {"flat", 0}, {"p", 3}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if tg.TotalLanes != 4 {
		t.Errorf("TotalLanes = %d, want 4", tg.TotalLanes)
	}
}

func TestLayoutPrunesDoneSubtrees(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("p", "parent", withMode(issuestorage.ModeParallel)),
		newIssue("finished", "finished", withParent("p", "a"), withStatus(issuestorage.StatusComplete)),
		newIssue("done-mid", "done mid", withParent("p", "b"), withStatus(issuestorage.StatusComplete)),
		newIssue("live", "live", withParent("done-mid", "a")),
		newIssue("closed-root", "closed root", withStatus(issuestorage.StatusClosed)),
	}))

	want := []placement{{"live", 0}, {"done-mid", 1}, {"p", 2}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
}

func TestLayoutSharedChildEmittedOnce(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("a", "a", withPriority(1)),
		newIssue("b", "b", withPriority(2)),
		newIssue("shared", "shared", withParent("a", "x"), withParent("b", "x")),
	}))

	want := []placement{{"shared", 0}, {"a", 1}, {"b", 1}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
}

func TestLayoutRootOrdering(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("late", "aaa", withPriority(3)),
		newIssue("bare", "bbb", withPriority(1)),
		newIssue("rich", "ccc", withPriority(1)),
		newIssue("rich-child", "child", withParent("rich", "a"), withDescription("how to do it")),
		newIssue("idea", "someday", withType(issuestorage.TypeIdea)),
	}))

	want := []placement{{"rich-child", 0}, {"rich", 1}, {"bare", 0}, {"late", 0}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
}

func TestLayoutIdeaAsChild(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("p", "parent"),
		newIssue("idea", "maybe", withParent("p", "a"), withType(issuestorage.TypeIdea)),
	}))

	want := []placement{{"idea", 0}, {"p", 1}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if tg.Nodes[0].IsActionable {
		t.Error("idea must not be actionable")
	}
}

func TestLayoutTerminatesOnCycle(t *testing.T) {
	tg := BuildTaskGraph(Build([]*issuestorage.Issue{
		newIssue("root", "root"),
		newIssue("x", "x", withParent("root", "a"), withParent("y", "a")),
		newIssue("y", "y", withParent("x", "a")),
	}))

	seen := make(map[string]int)
	for _, node := range tg.Nodes {
		seen[node.Issue.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("%s emitted %d times", id, n)
		}
	}
	if seen["root"] != 1 || seen["x"] != 1 || seen["y"] != 1 {
		t.Errorf("emitted = %v", seen)
	}
}

func TestFilteredLayout(t *testing.T) {
	g := Build([]*issuestorage.Issue{
		newIssue("epic", "epic", withMode(issuestorage.ModeParallel)),
		newIssue("hit", "search hit", withParent("epic", "a")),
		newIssue("miss", "not matched", withParent("epic", "b")),
		newIssue("other", "other root"),
	})

	tg := BuildFilteredTaskGraph(g, []string{"HIT", "unknown"})

	want := []placement{{"hit", 0}, {"epic", 1}}
	if diff := cmp.Diff(want, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if tg.TotalLanes != 2 {
		t.Errorf("TotalLanes = %d, want 2", tg.TotalLanes)
	}
}

func TestFilteredLayoutKeepsDoneMatches(t *testing.T) {
	g := Build([]*issuestorage.Issue{
		newIssue("done", "done", withStatus(issuestorage.StatusComplete)),
	})

	tg := BuildFilteredTaskGraph(g, []string{"done"})
	if diff := cmp.Diff([]placement{{"done", 0}}, placements(tg)); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
}
