// Package graph interprets a flat issue snapshot as a dependency graph and
// answers scheduling questions about it.
//
// Every function here is pure: it takes an issue slice or an IssueGraph built
// from one, never mutates its input, and keeps no state between calls.
// Callers rebuild the graph from a fresh snapshot for every query.
package graph

import (
	"cmp"
	"sort"
	"strings"

	"tasklanes/internal/issuestorage"
)

// IssueGraphNode holds the resolved edges and derived scheduling flags for one
// issue.
type IssueGraphNode struct {
	Issue *issuestorage.Issue

	// ChildIssueIDs are in canonical sibling order.
	ChildIssueIDs []string
	// ParentIssueIDs only include parents present in the snapshot.
	ParentIssueIDs []string

	// PreviousIssueIDs and NextIssueIDs hold the immediate neighbours under
	// each series-mode parent. They stay empty for parallel siblings and roots.
	PreviousIssueIDs []string
	NextIssueIDs     []string

	HasIncompleteChildren bool
	AllPreviousDone       bool

	// ParentExecutionMode is the mode of the first resolvable parent, empty
	// for roots.
	ParentExecutionMode issuestorage.ExecutionMode
}

// IssueGraph is an id-indexed adjacency structure over an issue snapshot.
// Keys are normalized IDs.
type IssueGraph struct {
	Nodes        map[string]*IssueGraphNode
	RootIssueIDs []string

	order []string
}

// Build indexes issues by ID and resolves parent references into edges.
// Dangling and duplicate parent references are dropped. When two issues share
// an ID the first one wins.
func Build(issues []*issuestorage.Issue) *IssueGraph {
	g := &IssueGraph{
		Nodes: make(map[string]*IssueGraphNode, len(issues)),
		order: make([]string, 0, len(issues)),
	}

	for _, issue := range issues {
		if issue == nil {
			continue
		}
		id := issuestorage.NormalizeID(issue.ID)
		if id == "" {
			continue
		}
		if _, dup := g.Nodes[id]; dup {
			continue
		}
		cp := issue.Clone()
		cp.Normalize()
		g.Nodes[id] = &IssueGraphNode{
			Issue:            cp,
			ChildIssueIDs:    make([]string, 0),
			ParentIssueIDs:   make([]string, 0),
			PreviousIssueIDs: make([]string, 0),
			NextIssueIDs:     make([]string, 0),
		}
		g.order = append(g.order, id)
	}

	for _, id := range g.order {
		node := g.Nodes[id]
		seen := make(map[string]bool, len(node.Issue.ParentIssues.Value))
		for _, ref := range node.Issue.ParentIssues.Value {
			parentID := ref.ParentIssue
			if parentID == id || seen[parentID] {
				continue
			}
			parent, ok := g.Nodes[parentID]
			if !ok {
				continue
			}
			seen[parentID] = true
			node.ParentIssueIDs = append(node.ParentIssueIDs, parentID)
			parent.ChildIssueIDs = append(parent.ChildIssueIDs, id)
		}
		if len(node.ParentIssueIDs) == 0 {
			g.RootIssueIDs = append(g.RootIssueIDs, id)
		} else {
			node.ParentExecutionMode = g.Nodes[node.ParentIssueIDs[0]].Issue.Mode()
		}
	}

	for _, id := range g.order {
		parent := g.Nodes[id]
		g.sortSiblings(id, parent.ChildIssueIDs)

		series := parent.Issue.Mode() == issuestorage.ModeSeries
		children := parent.ChildIssueIDs
		for i, childID := range children {
			child := g.Nodes[childID]
			if !child.Issue.IsDone() {
				parent.HasIncompleteChildren = true
			}
			if !series {
				continue
			}
			if i > 0 {
				child.PreviousIssueIDs = appendUnique(child.PreviousIssueIDs, children[i-1])
			}
			if i < len(children)-1 {
				child.NextIssueIDs = appendUnique(child.NextIssueIDs, children[i+1])
			}
		}
	}

	for _, id := range g.order {
		node := g.Nodes[id]
		node.AllPreviousDone = true
		for _, prevID := range node.PreviousIssueIDs {
			if prev, ok := g.Nodes[prevID]; ok && !prev.Issue.IsDone() {
				node.AllPreviousDone = false
				break
			}
		}
	}

	return g
}

// Node returns the node for id, matching case-insensitively.
func (g *IssueGraph) Node(id string) (*IssueGraphNode, bool) {
	if g == nil {
		return nil, false
	}
	node, ok := g.Nodes[issuestorage.NormalizeID(id)]
	return node, ok
}

// IDs returns every node ID in snapshot order.
func (g *IssueGraph) IDs() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.order...)
}

// Descendants returns the transitive children of id in breadth-first order,
// excluding id itself.
func (g *IssueGraph) Descendants(id string) []string {
	start, ok := g.Node(id)
	if !ok {
		return nil
	}
	rootID := start.Issue.ID
	visited := map[string]bool{rootID: true}
	queue := append([]string(nil), start.ChildIssueIDs...)
	var out []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		out = append(out, current)
		queue = append(queue, g.Nodes[current].ChildIssueIDs...)
	}
	return out
}

// ancestors returns every ID reachable upward from the parents of seeds.
// Seeds are only included when they are ancestors of another seed.
func (g *IssueGraph) ancestors(seeds []string) map[string]bool {
	found := make(map[string]bool)
	var queue []string
	for _, id := range seeds {
		if node, ok := g.Nodes[id]; ok {
			queue = append(queue, node.ParentIssueIDs...)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if found[current] {
			continue
		}
		found[current] = true
		queue = append(queue, g.Nodes[current].ParentIssueIDs...)
	}
	return found
}

// sortSiblings orders ids, all children of parentID, into canonical sibling
// order: SortOrder under that parent, then the work ordering.
func (g *IssueGraph) sortSiblings(parentID string, ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := g.Nodes[ids[i]].Issue, g.Nodes[ids[j]].Issue
		ra, _ := a.ParentRef(parentID)
		rb, _ := b.ParentRef(parentID)
		if ra.SortOrder != rb.SortOrder {
			return ra.SortOrder < rb.SortOrder
		}
		return compareWork(a, b) < 0
	})
}

// compareWork orders issues so that further-along, better-described and more
// urgent work comes first: review before anything else, described before
// undescribed, priority ascending, then title and ID.
func compareWork(a, b *issuestorage.Issue) int {
	aReview := a.Status.Value == issuestorage.StatusReview
	bReview := b.Status.Value == issuestorage.StatusReview
	if aReview != bReview {
		if aReview {
			return -1
		}
		return 1
	}
	if ad, bd := a.HasDescription(), b.HasDescription(); ad != bd {
		if ad {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.PriorityOrMissing(), b.PriorityOrMissing()); c != 0 {
		return c
	}
	if c := strings.Compare(a.Title.Value, b.Title.Value); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
