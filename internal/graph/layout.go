package graph

import (
	"sort"
	"strings"

	"tasklanes/internal/issuestorage"
)

// TaskGraphNode is one emitted row of a task graph layout.
type TaskGraphNode struct {
	Issue               *issuestorage.Issue
	Row                 int
	Lane                int
	IsActionable        bool
	ParentExecutionMode issuestorage.ExecutionMode
}

// TaskGraph is a bottom-up lane layout: lane 0 holds leaf work and higher
// lanes move toward the roots that wait on it. Nodes are in row order.
type TaskGraph struct {
	Nodes      []TaskGraphNode
	TotalLanes int
}

// pendingLane marks a node whose subtree is still being laid out. Reaching it
// again means the hierarchy loops back on itself.
const pendingLane = -1

// BuildTaskGraph lays out every active issue together with its ancestors.
// A child is only traversed when it is not done itself or still has an
// active descendant, so completed subtrees drop out.
func BuildTaskGraph(g *IssueGraph) *TaskGraph {
	if g == nil {
		return &TaskGraph{}
	}

	var active []string
	for _, id := range g.order {
		if !g.Nodes[id].Issue.IsDone() {
			active = append(active, id)
		}
	}

	hasActiveDescendants := g.ancestors(active)
	display := make(map[string]bool, len(active)+len(hasActiveDescendants))
	for _, id := range active {
		display[id] = true
	}
	for id := range hasActiveDescendants {
		display[id] = true
	}

	return newLayouter(g, display, func(id string) bool {
		return !g.Nodes[id].Issue.IsDone() || hasActiveDescendants[id]
	}).run()
}

// BuildFilteredTaskGraph lays out only the matched issues plus their ancestor
// context. Unknown IDs in matched are ignored.
func BuildFilteredTaskGraph(g *IssueGraph, matched []string) *TaskGraph {
	if g == nil {
		return &TaskGraph{}
	}

	var seeds []string
	for _, id := range matched {
		if node, ok := g.Node(id); ok {
			seeds = append(seeds, node.Issue.ID)
		}
	}

	display := g.ancestors(seeds)
	for _, id := range seeds {
		display[id] = true
	}

	return newLayouter(g, display, func(id string) bool {
		return display[id]
	}).run()
}

type layouter struct {
	g       *IssueGraph
	display map[string]bool
	include func(id string) bool

	lanes   map[string]int
	nodes   []TaskGraphNode
	maxLane int
}

// frame is one in-progress layoutSubtree call.
type frame struct {
	id        string
	children  []string
	next      int
	start     int
	series    bool
	nextStart int
	maxLane   int
}

func newLayouter(g *IssueGraph, display map[string]bool, include func(string) bool) *layouter {
	return &layouter{
		g:       g,
		display: display,
		include: include,
		lanes:   make(map[string]int, len(display)),
		maxLane: -1,
	}
}

func (l *layouter) run() *TaskGraph {
	for _, id := range l.roots() {
		l.layoutSubtree(id, 0)
	}
	return &TaskGraph{Nodes: l.nodes, TotalLanes: l.maxLane + 1}
}

// roots returns display issues with no parent in the display set, excluding
// ideas, ordered by priority, then by whether their first actionable
// descendant is described, then by title.
func (l *layouter) roots() []string {
	type root struct {
		id        string
		issue     *issuestorage.Issue
		described bool
	}

	var roots []root
	for _, id := range l.g.order {
		if !l.display[id] {
			continue
		}
		node := l.g.Nodes[id]
		if node.Issue.Type.Value == issuestorage.TypeIdea {
			continue
		}
		hasDisplayedParent := false
		for _, parentID := range node.ParentIssueIDs {
			if l.display[parentID] {
				hasDisplayedParent = true
				break
			}
		}
		if hasDisplayedParent {
			continue
		}
		roots = append(roots, root{id: id, issue: node.Issue, described: l.firstActionableDescribed(id)})
	}

	sort.SliceStable(roots, func(i, j int) bool {
		a, b := roots[i], roots[j]
		if pa, pb := a.issue.PriorityOrMissing(), b.issue.PriorityOrMissing(); pa != pb {
			return pa < pb
		}
		if a.described != b.described {
			return a.described
		}
		if c := strings.Compare(a.issue.Title.Value, b.issue.Title.Value); c != 0 {
			return c < 0
		}
		return a.id < b.id
	})

	ids := make([]string, len(roots))
	for i, r := range roots {
		ids[i] = r.id
	}
	return ids
}

// firstActionableDescribed walks the subtree under id depth-first in sibling
// order and reports whether the first actionable issue has a description.
func (l *layouter) firstActionableDescribed(id string) bool {
	visited := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		node := l.g.Nodes[current]
		if IsActionable(node) {
			return node.Issue.HasDescription()
		}
		children := l.children(current)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return false
}

// children returns the included children of id in sibling order.
func (l *layouter) children(id string) []string {
	var out []string
	for _, childID := range l.g.Nodes[id].ChildIssueIDs {
		if l.include(childID) {
			out = append(out, childID)
		}
	}
	return out
}

// layoutSubtree places id and everything under it, starting at start, and
// returns the highest lane the subtree used. Nodes are emitted post-order.
func (l *layouter) layoutSubtree(id string, start int) int {
	root, lane := l.enter(id, start)
	if root == nil {
		return lane
	}

	stack := []*frame{root}
	for {
		top := stack[len(stack)-1]

		if top.next == len(top.children) {
			lane := top.maxLane + 1
			l.emit(top.id, lane)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return lane
			}
			stack[len(stack)-1].childDone(lane)
			continue
		}

		childID := top.children[top.next]
		top.next++

		childStart := top.start
		if top.series {
			childStart = top.nextStart
		}
		if f, lane := l.enter(childID, childStart); f != nil {
			stack = append(stack, f)
		} else {
			top.childDone(lane)
		}
	}
}

// enter starts laying out id at start. Nodes that resolve immediately (already
// placed, or leaves) return a nil frame and their lane.
func (l *layouter) enter(id string, start int) (*frame, int) {
	if lane, seen := l.lanes[id]; seen {
		return nil, max(lane, start-1)
	}
	l.lanes[id] = pendingLane

	children := l.children(id)
	if len(children) == 0 {
		l.emit(id, start)
		return nil, start
	}

	return &frame{
		id:        id,
		children:  children,
		start:     start,
		series:    l.g.Nodes[id].Issue.Mode() == issuestorage.ModeSeries,
		nextStart: start,
		maxLane:   start - 1,
	}, 0
}

func (f *frame) childDone(lane int) {
	if f.series {
		f.maxLane = lane
		f.nextStart = lane + 1
		return
	}
	if lane > f.maxLane {
		f.maxLane = lane
	}
}

func (l *layouter) emit(id string, lane int) {
	node := l.g.Nodes[id]
	l.lanes[id] = lane
	l.nodes = append(l.nodes, TaskGraphNode{
		Issue:               node.Issue,
		Row:                 len(l.nodes),
		Lane:                lane,
		IsActionable:        IsActionable(node),
		ParentExecutionMode: node.ParentExecutionMode,
	})
	if lane > l.maxLane {
		l.maxLane = lane
	}
}
