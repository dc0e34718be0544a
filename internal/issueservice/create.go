package issueservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasklanes/internal/idgen"
	"tasklanes/internal/issuestorage"
	"tasklanes/internal/lexorank"
)

// ErrEmptyTitle is returned when creating an issue without a title.
var ErrEmptyTitle = errors.New("title is required")

// NewIssue holds the user-supplied fields of an issue to create.
type NewIssue struct {
	Title         string
	Description   string
	Type          issuestorage.IssueType
	Status        issuestorage.Status
	Priority      *int
	AssignedTo    string
	Tags          []string
	ExecutionMode issuestorage.ExecutionMode
	// Parent, if set, is resolved like any reference and the new issue is
	// placed after its last existing child.
	Parent string
}

// Create assigns an ID to n, stamps every field with the actor and the
// current time, and appends the issue to the store.
func (s *Service) Create(ctx context.Context, n NewIssue) (*issuestorage.Issue, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	issues, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	issue := &issuestorage.Issue{
		CreatedBy:  s.actor,
		CreatedAt:  now,
		LastUpdate: now,
	}

	if n.Parent != "" {
		parent, err := Resolve(issues, n.Parent)
		if err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}
		last := ""
		for _, sib := range siblings(issues, parent.ID) {
			last = max(last, sib.sortOrder)
		}
		order, err := lexorank.Between(last, "")
		if err != nil {
			// Unreadable sibling keys; start a fresh run after them.
			order = lexorank.Default
		}
		issue.ParentIssues.Set([]issuestorage.ParentIssueRef{{ParentIssue: parent.ID, SortOrder: order}}, now, s.actor)
	}

	taken := make(map[string]bool, len(issues))
	for _, existing := range issues {
		taken[existing.ID] = true
	}
	id, err := idgen.Generate(idgen.NormalizePrefix(s.prefix), idgen.Content{
		Title:   title,
		Creator: s.actor,
		Created: now,
	}, s.idLength, len(issues), func(id string) bool { return taken[id] })
	if err != nil {
		return nil, err
	}
	issue.ID = id

	status := n.Status
	if status == "" {
		status = issuestorage.StatusOpen
	}
	typ := n.Type
	if typ == "" {
		typ = issuestorage.TypeTask
	}

	issue.Title.Set(title, now, s.actor)
	issue.Description.Set(n.Description, now, s.actor)
	issue.Status.Set(status, now, s.actor)
	issue.Type.Set(typ, now, s.actor)
	issue.Priority.Set(n.Priority, now, s.actor)
	issue.AssignedTo.Set(n.AssignedTo, now, s.actor)
	issue.Tags.Set(n.Tags, now, s.actor)
	issue.ExecutionMode.Set(n.ExecutionMode, now, s.actor)
	issue.LinkedIssues.Set(nil, now, s.actor)
	issue.WorkingBranchID.Set("", now, s.actor)
	if issue.ParentIssues.LastUpdate.IsZero() {
		issue.ParentIssues.Set(nil, now, s.actor)
	}

	if err := s.store.Append(ctx, issue); err != nil {
		return nil, err
	}
	if err := s.record(ctx, issue.ID, []issuestorage.PropertyChange{s.change("created", "", title, now)}); err != nil {
		return nil, err
	}
	s.log.Debug("created issue", "id", issue.ID, "title", title)
	return issue, nil
}
