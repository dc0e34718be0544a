// Package merge reconciles divergent copies of the same issue field by field.
//
// Every mutable field carries its own timestamp, so two copies edited on
// different branches can be combined without losing either side's edits:
// scalars resolve last-writer-wins per field, list fields take the set union.
package merge

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"tasklanes/internal/issuestorage"
)

// ErrIDMismatch is returned when asked to merge two different issues.
var ErrIDMismatch = errors.New("cannot merge issues with different ids")

// Property names used in PropertyChange records.
const (
	PropTitle           = "title"
	PropDescription     = "description"
	PropStatus          = "status"
	PropType            = "type"
	PropPriority        = "priority"
	PropAssignedTo      = "assigned_to"
	PropTags            = "tags"
	PropLinkedIssues    = "linked_issues"
	PropParentIssues    = "parent_issues"
	PropExecutionMode   = "execution_mode"
	PropWorkingBranchID = "working_branch_id"
)

// Merge combines two copies of one issue. Neither input is modified.
//
// For scalar fields with differing values the copy with the later field
// timestamp wins, and a tie goes to a. List fields are unioned. Each field
// that had to be reconciled yields a PropertyChange describing the outcome.
func Merge(a, b *issuestorage.Issue) (*issuestorage.Issue, []issuestorage.PropertyChange, error) {
	if issuestorage.NormalizeID(a.ID) != issuestorage.NormalizeID(b.ID) {
		return nil, nil, fmt.Errorf("%w: %s and %s", ErrIDMismatch, a.ID, b.ID)
	}

	a, b = a.Clone(), b.Clone()
	a.Normalize()
	b.Normalize()

	m := &merger{}
	out := &issuestorage.Issue{ID: a.ID}

	out.Title = scalar(m, PropTitle, a.Title, b.Title, eq[string], str[string])
	out.Description = scalar(m, PropDescription, a.Description, b.Description, eq[string], str[string])
	out.Status = scalar(m, PropStatus, a.Status, b.Status, eq[issuestorage.Status], str[issuestorage.Status])
	out.Type = scalar(m, PropType, a.Type, b.Type, eq[issuestorage.IssueType], str[issuestorage.IssueType])
	out.Priority = scalar(m, PropPriority, a.Priority, b.Priority, priorityEqual, FormatPriority)
	out.AssignedTo = scalar(m, PropAssignedTo, a.AssignedTo, b.AssignedTo, eq[string], str[string])
	out.Tags = scalar(m, PropTags, a.Tags, b.Tags, tagsEqual, FormatList)
	out.ExecutionMode = scalar(m, PropExecutionMode, a.ExecutionMode, b.ExecutionMode, eq[issuestorage.ExecutionMode], str[issuestorage.ExecutionMode])
	out.WorkingBranchID = scalar(m, PropWorkingBranchID, a.WorkingBranchID, b.WorkingBranchID, eq[string], str[string])

	out.LinkedIssues = union(m, PropLinkedIssues, a.LinkedIssues, b.LinkedIssues,
		func(id string) string { return id },
		func(x, y string, _ bool) string { return x },
		FormatList)
	out.ParentIssues = union(m, PropParentIssues, a.ParentIssues, b.ParentIssues,
		func(ref issuestorage.ParentIssueRef) string { return ref.ParentIssue },
		func(x, y issuestorage.ParentIssueRef, bLater bool) issuestorage.ParentIssueRef {
			if bLater {
				return y
			}
			return x
		},
		FormatParents)

	out.CreatedAt, out.CreatedBy = earliestCreation(a, b)
	out.LastUpdate = a.LastUpdate
	if b.LastUpdate.After(a.LastUpdate) {
		out.LastUpdate = b.LastUpdate
	}

	return out, m.changes, nil
}

// All folds copies left to right with Merge and returns the combined issue
// along with every change produced on the way. It returns nil for no copies.
func All(copies []*issuestorage.Issue) (*issuestorage.Issue, []issuestorage.PropertyChange, error) {
	if len(copies) == 0 {
		return nil, nil, nil
	}

	merged := copies[0].Clone()
	merged.Normalize()

	var changes []issuestorage.PropertyChange
	for _, next := range copies[1:] {
		var step []issuestorage.PropertyChange
		var err error
		merged, step, err = Merge(merged, next)
		if err != nil {
			return nil, nil, err
		}
		changes = append(changes, step...)
	}
	return merged, changes, nil
}

type merger struct {
	changes []issuestorage.PropertyChange
}

func (m *merger) record(name, oldValue, newValue string, at time.Time, by string, res issuestorage.MergeResolution) {
	m.changes = append(m.changes, issuestorage.PropertyChange{
		PropertyName:    name,
		OldValue:        oldValue,
		NewValue:        newValue,
		Timestamp:       at,
		ModifiedBy:      by,
		MergeResolution: res,
	})
}

// scalar resolves one single-valued field. Equal values keep the later stamp.
func scalar[T any](m *merger, name string, a, b issuestorage.FieldMeta[T], equal func(T, T) bool, format func(T) string) issuestorage.FieldMeta[T] {
	bLater := b.LastUpdate.After(a.LastUpdate)

	if equal(a.Value, b.Value) {
		if bLater {
			return b
		}
		return a
	}

	if bLater {
		m.record(name, format(a.Value), format(b.Value), b.LastUpdate, b.ModifiedBy, issuestorage.ResolutionB)
		return b
	}
	m.record(name, format(b.Value), format(a.Value), a.LastUpdate, a.ModifiedBy, issuestorage.ResolutionA)
	return a
}

// union resolves a list field as a set keyed by key. a's order is kept and
// b's new entries follow. When both sides hold the same key, pick chooses
// the surviving element.
func union[T any](
	m *merger,
	name string,
	a, b issuestorage.FieldMeta[[]T],
	key func(T) string,
	pick func(x, y T, bLater bool) T,
	format func([]T) string,
) issuestorage.FieldMeta[[]T] {
	bLater := b.LastUpdate.After(a.LastUpdate)

	merged := make([]T, 0, len(a.Value)+len(b.Value))
	index := make(map[string]int, len(a.Value)+len(b.Value))
	for _, side := range [][]T{a.Value, b.Value} {
		for _, item := range side {
			k := key(item)
			if i, ok := index[k]; ok {
				merged[i] = pick(merged[i], item, bLater)
				continue
			}
			index[k] = len(merged)
			merged = append(merged, item)
		}
	}
	if len(merged) == 0 && a.Value == nil && b.Value == nil {
		merged = nil
	}

	stamp := a
	if bLater {
		stamp = b
	}
	out := issuestorage.FieldMeta[[]T]{Value: merged, LastUpdate: stamp.LastUpdate, ModifiedBy: stamp.ModifiedBy}

	if !sameSet(a.Value, b.Value, func(item T) string { return key(item) + "\x00" + format([]T{item}) }) {
		m.record(name, format(a.Value), format(merged), out.LastUpdate, out.ModifiedBy, issuestorage.ResolutionUnion)
	}
	return out
}

func sameSet[T any](a, b []T, key func(T) string) bool {
	as := make(map[string]bool, len(a))
	for _, item := range a {
		as[key(item)] = true
	}
	bs := make(map[string]bool, len(b))
	for _, item := range b {
		k := key(item)
		if !as[k] {
			return false
		}
		bs[k] = true
	}
	return len(as) == len(bs)
}

// earliestCreation returns the creation facts of whichever copy was created
// first. A zero CreatedAt counts as unknown.
func earliestCreation(a, b *issuestorage.Issue) (time.Time, string) {
	first, other := a, b
	switch {
	case a.CreatedAt.IsZero():
		first, other = b, a
	case !b.CreatedAt.IsZero() && b.CreatedAt.Before(a.CreatedAt):
		first, other = b, a
	}
	by := first.CreatedBy
	if by == "" {
		by = other.CreatedBy
	}
	return first.CreatedAt, by
}

func eq[T comparable](a, b T) bool { return a == b }

func tagsEqual(a, b []string) bool { return slices.Equal(a, b) }

func str[T ~string](v T) string { return string(v) }

func priorityEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FormatPriority renders a priority for change records; unset is empty.
func FormatPriority(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// FormatParents renders parent refs as "id@sortorder" pairs.
func FormatParents(refs []issuestorage.ParentIssueRef) string {
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = ref.ParentIssue + "@" + ref.SortOrder
	}
	return strings.Join(parts, ",")
}

// FormatList renders a list field for change records.
func FormatList(values []string) string {
	return strings.Join(values, ",")
}
