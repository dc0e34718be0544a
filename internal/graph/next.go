package graph

import (
	"sort"

	"tasklanes/internal/issuestorage"
)

// IsActionable reports whether the issue behind node can be worked on now:
// it is not an idea, its status is open or review, none of its children are
// still incomplete, and every series predecessor is done.
func IsActionable(node *IssueGraphNode) bool {
	if node == nil || node.Issue == nil {
		return false
	}
	issue := node.Issue
	if issue.Type.Value == issuestorage.TypeIdea {
		return false
	}
	switch issue.Status.Value {
	case issuestorage.StatusOpen, issuestorage.StatusReview:
	default:
		return false
	}
	return !node.HasIncompleteChildren && node.AllPreviousDone
}

// NextIssues returns the actionable issues in g. When scope is non-empty only
// the transitive descendants of scope are considered, never scope itself; an
// unknown scope yields nothing.
//
// Results are sorted review first, described first, by priority, then title.
// The returned issues belong to g and must not be modified.
func NextIssues(g *IssueGraph, scope string) []*issuestorage.Issue {
	if g == nil {
		return nil
	}

	candidates := g.order
	if scope != "" {
		candidates = g.Descendants(scope)
	}

	var result []*issuestorage.Issue
	for _, id := range candidates {
		node := g.Nodes[id]
		if IsActionable(node) {
			result = append(result, node.Issue)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return compareWork(result[i], result[j]) < 0
	})
	return result
}
