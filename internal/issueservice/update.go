package issueservice

import (
	"context"
	"slices"
	"strings"
	"time"

	"tasklanes/internal/issuestorage"
	"tasklanes/internal/merge"
)

// Edit lists field changes for Update. Nil fields are left alone.
type Edit struct {
	Title           *string
	Description     *string
	Status          *issuestorage.Status
	Type            *issuestorage.IssueType
	Priority        *int
	ClearPriority   bool
	AssignedTo      *string
	Tags            *[]string
	ExecutionMode   *issuestorage.ExecutionMode
	WorkingBranchID *string
	AddLinks        []string
	RemoveLinks     []string
}

// Update applies e to the issue ref names and saves the snapshot. Only fields
// whose value actually changes are restamped. The ID never changes.
func (s *Service) Update(ctx context.Context, ref string, e Edit) (*issuestorage.Issue, []issuestorage.PropertyChange, error) {
	issues, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	issue, err := Resolve(issues, ref)
	if err != nil {
		return nil, nil, err
	}

	links, err := s.resolveLinks(issues, issue, e)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	u := &updater{s: s, at: now}

	if e.Title != nil {
		setField(u, &issue.Title, merge.PropTitle, strings.TrimSpace(*e.Title), eqString, fmtString)
	}
	if e.Description != nil {
		setField(u, &issue.Description, merge.PropDescription, *e.Description, eqString, fmtString)
	}
	if e.Status != nil {
		setField(u, &issue.Status, merge.PropStatus, *e.Status,
			func(a, b issuestorage.Status) bool { return a == b },
			func(v issuestorage.Status) string { return string(v) })
	}
	if e.Type != nil {
		setField(u, &issue.Type, merge.PropType, *e.Type,
			func(a, b issuestorage.IssueType) bool { return a == b },
			func(v issuestorage.IssueType) string { return string(v) })
	}
	if e.Priority != nil || e.ClearPriority {
		var p *int
		if !e.ClearPriority {
			v := *e.Priority
			p = &v
		}
		setField(u, &issue.Priority, merge.PropPriority, p, samePriority, merge.FormatPriority)
	}
	if e.AssignedTo != nil {
		setField(u, &issue.AssignedTo, merge.PropAssignedTo, *e.AssignedTo, eqString, fmtString)
	}
	if e.Tags != nil {
		setField(u, &issue.Tags, merge.PropTags, slices.Clone(*e.Tags), sameList, merge.FormatList)
	}
	if e.ExecutionMode != nil {
		setField(u, &issue.ExecutionMode, merge.PropExecutionMode, *e.ExecutionMode,
			func(a, b issuestorage.ExecutionMode) bool { return a.Normalize() == b.Normalize() },
			func(v issuestorage.ExecutionMode) string { return string(v) })
	}
	if e.WorkingBranchID != nil {
		setField(u, &issue.WorkingBranchID, merge.PropWorkingBranchID, *e.WorkingBranchID, eqString, fmtString)
	}
	if links != nil {
		setField(u, &issue.LinkedIssues, merge.PropLinkedIssues, links, sameList, merge.FormatList)
	}

	if len(u.changes) == 0 {
		return issue, nil, nil
	}
	issue.LastUpdate = now

	if err := s.store.SaveAll(ctx, issues); err != nil {
		return nil, nil, err
	}
	if err := s.record(ctx, issue.ID, u.changes); err != nil {
		return nil, nil, err
	}
	s.log.Debug("updated issue", "id", issue.ID, "changes", len(u.changes))
	return issue, u.changes, nil
}

// Close marks the issue ref names as closed.
func (s *Service) Close(ctx context.Context, ref string) (*issuestorage.Issue, error) {
	closed := issuestorage.StatusClosed
	issue, _, err := s.Update(ctx, ref, Edit{Status: &closed})
	return issue, err
}

// resolveLinks returns the new linked issue list, or nil when e does not
// touch links. Added links must resolve to existing issues.
func (s *Service) resolveLinks(issues []*issuestorage.Issue, issue *issuestorage.Issue, e Edit) ([]string, error) {
	if len(e.AddLinks) == 0 && len(e.RemoveLinks) == 0 {
		return nil, nil
	}
	links := slices.Clone(issue.LinkedIssues.Value)
	for _, ref := range e.AddLinks {
		target, err := Resolve(issues, ref)
		if err != nil {
			return nil, err
		}
		if target.ID != issue.ID && !slices.Contains(links, target.ID) {
			links = append(links, target.ID)
		}
	}
	for _, ref := range e.RemoveLinks {
		id := issuestorage.NormalizeID(ref)
		if target, err := Resolve(issues, ref); err == nil {
			id = target.ID
		}
		links = slices.DeleteFunc(links, func(l string) bool { return l == id })
	}
	if links == nil {
		links = []string{}
	}
	return links, nil
}

type updater struct {
	s       *Service
	at      time.Time
	changes []issuestorage.PropertyChange
}

func setField[T any](u *updater, f *issuestorage.FieldMeta[T], name string, value T, equal func(T, T) bool, format func(T) string) {
	if equal(f.Value, value) {
		return
	}
	u.changes = append(u.changes, u.s.change(name, format(f.Value), format(value), u.at))
	f.Set(value, u.at, u.s.actor)
}

func eqString(a, b string) bool { return a == b }

func sameList(a, b []string) bool { return slices.Equal(a, b) }

func fmtString(v string) string { return v }

func samePriority(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
