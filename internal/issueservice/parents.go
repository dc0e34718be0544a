package issueservice

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"tasklanes/internal/graph"
	"tasklanes/internal/issuestorage"
	"tasklanes/internal/lexorank"
	"tasklanes/internal/merge"
)

// Position places a child among its new siblings. At most one of Before and
// After may be set; both empty appends after the last sibling.
type Position struct {
	Before string
	After  string
}

// sibling is one child of a parent together with its key under that parent.
type sibling struct {
	issue     *issuestorage.Issue
	sortOrder string
}

// siblings returns the children of parentID in the order the graph shows
// them, so positions and rebalancing agree with what users see when keys tie.
func siblings(issues []*issuestorage.Issue, parentID string) []sibling {
	node, ok := graph.Build(issues).Node(parentID)
	if !ok {
		return nil
	}
	byID := make(map[string]*issuestorage.Issue, len(issues))
	for _, issue := range issues {
		byID[issuestorage.NormalizeID(issue.ID)] = issue
	}

	out := make([]sibling, 0, len(node.ChildIssueIDs))
	for _, id := range node.ChildIssueIDs {
		issue := byID[id]
		ref, _ := issue.ParentRef(node.Issue.ID)
		out = append(out, sibling{issue: issue, sortOrder: ref.SortOrder})
	}
	return out
}

// AddParent makes parentRef a parent of childRef. Nothing is written unless
// every check passes: both references resolve, the edge is new, and it does
// not close a cycle.
func (s *Service) AddParent(ctx context.Context, childRef, parentRef string, pos Position) error {
	if pos.Before != "" && pos.After != "" {
		return fmt.Errorf("position: only one of before and after may be set")
	}

	issues, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	child, err := Resolve(issues, childRef)
	if err != nil {
		return fmt.Errorf("child: %w", err)
	}
	parent, err := Resolve(issues, parentRef)
	if err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	if child.HasParent(parent.ID) {
		return fmt.Errorf("%w: %s is already a child of %s", issuestorage.ErrAlreadyExists, child.ID, parent.ID)
	}
	if graph.WouldCreateCycle(parent.ID, child.ID, issues) {
		return fmt.Errorf("%w: %s -> %s", issuestorage.ErrCycle, parent.ID, child.ID)
	}

	sibs := siblings(issues, parent.ID)
	at, err := insertIndex(issues, sibs, pos)
	if err != nil {
		return err
	}

	now := s.now()
	changes := make(map[string][]issuestorage.PropertyChange)

	lo, hi := "", ""
	if at > 0 {
		lo = sibs[at-1].sortOrder
	}
	if at < len(sibs) {
		hi = sibs[at].sortOrder
	}
	order, err := lexorank.Between(lo, hi)
	if err != nil {
		// Siblings share a key or carry unreadable ones; spread them out again.
		s.log.Info("rebalancing sibling order", "parent", parent.ID, "reason", err)
		keys := lexorank.Initial(len(sibs) + 1)
		order = keys[at]
		for i, sib := range sibs {
			k := keys[i]
			if i >= at {
				k = keys[i+1]
			}
			if k == sib.sortOrder {
				continue
			}
			old := merge.FormatParents(sib.issue.ParentIssues.Value)
			refs := slices.Clone(sib.issue.ParentIssues.Value)
			for j := range refs {
				if issuestorage.NormalizeID(refs[j].ParentIssue) == parent.ID {
					refs[j].SortOrder = k
				}
			}
			s.setParents(sib.issue, refs, now)
			changes[sib.issue.ID] = append(changes[sib.issue.ID],
				s.change(merge.PropParentIssues, old, merge.FormatParents(refs), now))
		}
	}

	old := merge.FormatParents(child.ParentIssues.Value)
	refs := append(slices.Clone(child.ParentIssues.Value), issuestorage.ParentIssueRef{
		ParentIssue: parent.ID,
		SortOrder:   order,
	})
	s.setParents(child, refs, now)
	changes[child.ID] = append(changes[child.ID], s.change(merge.PropParentIssues, old, merge.FormatParents(refs), now))

	if err := s.store.SaveAll(ctx, issues); err != nil {
		return err
	}
	for _, id := range slices.Sorted(maps.Keys(changes)) {
		if err := s.record(ctx, id, changes[id]); err != nil {
			return err
		}
	}
	s.log.Debug("added parent", "child", child.ID, "parent", parent.ID, "sort_order", order)
	return nil
}

// RemoveParent drops the edge between childRef and parentRef.
func (s *Service) RemoveParent(ctx context.Context, childRef, parentRef string) error {
	issues, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	child, err := Resolve(issues, childRef)
	if err != nil {
		return fmt.Errorf("child: %w", err)
	}

	// The parent may no longer exist; a dangling edge can still be removed.
	parentID := issuestorage.NormalizeID(parentRef)
	if !child.HasParent(parentID) {
		if parent, err := Resolve(issues, parentRef); err == nil {
			parentID = parent.ID
		}
	}
	if !child.HasParent(parentID) {
		return fmt.Errorf("%w: %s is not a child of %s", issuestorage.ErrNotFound, child.ID, parentRef)
	}

	now := s.now()
	old := merge.FormatParents(child.ParentIssues.Value)
	refs := slices.DeleteFunc(slices.Clone(child.ParentIssues.Value), func(ref issuestorage.ParentIssueRef) bool {
		return issuestorage.NormalizeID(ref.ParentIssue) == parentID
	})
	s.setParents(child, refs, now)

	if err := s.store.SaveAll(ctx, issues); err != nil {
		return err
	}
	if err := s.record(ctx, child.ID, []issuestorage.PropertyChange{
		s.change(merge.PropParentIssues, old, merge.FormatParents(refs), now),
	}); err != nil {
		return err
	}
	s.log.Debug("removed parent", "child", child.ID, "parent", parentID)
	return nil
}

func (s *Service) setParents(issue *issuestorage.Issue, refs []issuestorage.ParentIssueRef, at time.Time) {
	issue.ParentIssues.Set(refs, at, s.actor)
	issue.LastUpdate = at
}

// insertIndex returns where in sibs a new child goes for pos.
func insertIndex(issues []*issuestorage.Issue, sibs []sibling, pos Position) (int, error) {
	ref, after := pos.Before, false
	if pos.After != "" {
		ref, after = pos.After, true
	}
	if ref == "" {
		return len(sibs), nil
	}

	anchor, err := Resolve(issues, ref)
	if err != nil {
		return 0, fmt.Errorf("position: %w", err)
	}
	for i, sib := range sibs {
		if sib.issue.ID == anchor.ID {
			if after {
				return i + 1, nil
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("position: %w: %s is not a sibling", issuestorage.ErrNotFound, anchor.ID)
}
