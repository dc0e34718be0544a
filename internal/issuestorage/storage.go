// Package issuestorage defines the issue model and the snapshot interface for
// issue persistence in tasklanes. All storage engines (filesystem, SQLite)
// implement IssueStore.
package issuestorage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned by IssueStore implementations and the issue service.
var (
	ErrNotFound      = errors.New("issue not found")
	ErrAmbiguousID   = errors.New("ambiguous issue reference")
	ErrAlreadyExists = errors.New("already exists")
	ErrCycle         = errors.New("operation would create a cycle")
	ErrInvalidShard  = errors.New("invalid shard name")
)

// MissingPriority is the sort weight of an issue without a priority.
const MissingPriority = 99

// FieldMeta wraps one mutable issue field together with the time it was last
// changed and the actor who changed it. The merge engine resolves conflicts
// per field using this metadata; nothing else reads it.
type FieldMeta[T any] struct {
	Value      T         `json:"value"`
	LastUpdate time.Time `json:"last_update"`
	ModifiedBy string    `json:"modified_by,omitempty"`
}

// Field builds a FieldMeta stamped with at and by.
func Field[T any](value T, at time.Time, by string) FieldMeta[T] {
	return FieldMeta[T]{Value: value, LastUpdate: at, ModifiedBy: by}
}

// Set replaces the value and restamps the metadata.
func (f *FieldMeta[T]) Set(value T, at time.Time, by string) {
	f.Value = value
	f.LastUpdate = at
	f.ModifiedBy = by
}

// ParentIssueRef is one parent edge of an issue. SortOrder positions the
// issue among its siblings under that parent.
type ParentIssueRef struct {
	ParentIssue string `json:"parent_issue"`
	SortOrder   string `json:"sort_order"`
}

// Issue represents a unit of trackable work.
type Issue struct {
	// ID is assigned once at creation and never changes.
	ID string `json:"id"`

	Title           FieldMeta[string]           `json:"title"`
	Description     FieldMeta[string]           `json:"description"`
	Status          FieldMeta[Status]           `json:"status"`
	Type            FieldMeta[IssueType]        `json:"type"`
	Priority        FieldMeta[*int]             `json:"priority"`
	AssignedTo      FieldMeta[string]           `json:"assigned_to"`
	Tags            FieldMeta[[]string]         `json:"tags"`
	LinkedIssues    FieldMeta[[]string]         `json:"linked_issues"`
	ParentIssues    FieldMeta[[]ParentIssueRef] `json:"parent_issues"`
	ExecutionMode   FieldMeta[ExecutionMode]    `json:"execution_mode"`
	WorkingBranchID FieldMeta[string]           `json:"working_branch_id"`

	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`
}

// NormalizeID returns the canonical form of an issue ID. IDs are compared
// case-insensitively, so every ingestion boundary lower-cases them once.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Normalize canonicalizes the issue ID and every ID it references in place.
func (issue *Issue) Normalize() {
	issue.ID = NormalizeID(issue.ID)
	for i := range issue.ParentIssues.Value {
		issue.ParentIssues.Value[i].ParentIssue = NormalizeID(issue.ParentIssues.Value[i].ParentIssue)
	}
	for i := range issue.LinkedIssues.Value {
		issue.LinkedIssues.Value[i] = NormalizeID(issue.LinkedIssues.Value[i])
	}
}

// Clone returns a deep copy of the issue.
func (issue *Issue) Clone() *Issue {
	cp := *issue
	cp.Tags.Value = cloneSlice(issue.Tags.Value)
	cp.LinkedIssues.Value = cloneSlice(issue.LinkedIssues.Value)
	cp.ParentIssues.Value = cloneSlice(issue.ParentIssues.Value)
	if issue.Priority.Value != nil {
		p := *issue.Priority.Value
		cp.Priority.Value = &p
	}
	return &cp
}

// ParentIDs returns the IDs of all referenced parents, resolvable or not.
func (issue *Issue) ParentIDs() []string {
	ids := make([]string, 0, len(issue.ParentIssues.Value))
	for _, ref := range issue.ParentIssues.Value {
		ids = append(ids, ref.ParentIssue)
	}
	return ids
}

// ParentRef returns the edge to parentID, if present.
func (issue *Issue) ParentRef(parentID string) (ParentIssueRef, bool) {
	parentID = NormalizeID(parentID)
	for _, ref := range issue.ParentIssues.Value {
		if NormalizeID(ref.ParentIssue) == parentID {
			return ref, true
		}
	}
	return ParentIssueRef{}, false
}

// HasParent reports whether the issue references parentID as a parent.
func (issue *Issue) HasParent(parentID string) bool {
	_, ok := issue.ParentRef(parentID)
	return ok
}

// HasDescription reports whether the description has non-whitespace content.
func (issue *Issue) HasDescription() bool {
	return strings.TrimSpace(issue.Description.Value) != ""
}

// PriorityOrMissing returns the priority, or MissingPriority when unset.
func (issue *Issue) PriorityOrMissing() int {
	if issue.Priority.Value == nil {
		return MissingPriority
	}
	return *issue.Priority.Value
}

// IsDone reports whether the issue is in a terminal status.
func (issue *Issue) IsDone() bool {
	return issue.Status.Value.IsDone()
}

// Mode returns the execution mode governing this issue's children.
func (issue *Issue) Mode() ExecutionMode {
	return issue.ExecutionMode.Value.Normalize()
}

// Status represents the current state of an issue.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusBlocked    Status = "blocked"
	StatusComplete   Status = "complete"
	StatusArchived   Status = "archived"
	StatusClosed     Status = "closed"
	StatusDeleted    Status = "deleted"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDraft, StatusOpen, StatusInProgress, StatusReview, StatusBlocked,
	StatusComplete, StatusArchived, StatusClosed, StatusDeleted,
}

// IsDone reports whether s is terminal.
func (s Status) IsDone() bool {
	switch s {
	case StatusComplete, StatusArchived, StatusClosed, StatusDeleted:
		return true
	}
	return false
}

// ParseStatus converts user input to a Status. Dashes and underscores are
// interchangeable ("in-progress" == "in_progress").
func ParseStatus(s string) (Status, error) {
	norm := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, st := range Statuses {
		if st == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IssueType represents the category of an issue.
type IssueType string

const (
	TypeTask    IssueType = "task"
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeChore   IssueType = "chore"
	TypeEpic    IssueType = "epic"
	// TypeIdea marks a captured thought. Ideas are never actionable.
	TypeIdea IssueType = "idea"
)

// IssueTypes lists every issue type.
var IssueTypes = []IssueType{TypeTask, TypeBug, TypeFeature, TypeChore, TypeEpic, TypeIdea}

// ParseIssueType converts user input to an IssueType.
func ParseIssueType(s string) (IssueType, error) {
	norm := IssueType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range IssueTypes {
		if t == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown issue type %q", s)
}

// ExecutionMode governs how an issue's children are scheduled relative to
// each other.
type ExecutionMode string

const (
	// ModeSeries runs children one after another in sibling order.
	ModeSeries ExecutionMode = "series"
	// ModeParallel lets every child proceed independently.
	ModeParallel ExecutionMode = "parallel"
)

// Normalize maps the empty mode to ModeSeries.
func (m ExecutionMode) Normalize() ExecutionMode {
	if m == ModeParallel {
		return ModeParallel
	}
	return ModeSeries
}

// ParseExecutionMode converts user input to an ExecutionMode.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "series", "serial", "s":
		return ModeSeries, nil
	case "parallel", "p":
		return ModeParallel, nil
	}
	return "", fmt.Errorf("unknown execution mode %q", s)
}

// MergeResolution records how the merge engine settled a field.
type MergeResolution string

const (
	ResolutionNone  MergeResolution = ""
	ResolutionA     MergeResolution = "A"
	ResolutionB     MergeResolution = "B"
	ResolutionUnion MergeResolution = "Union"
)

// PropertyChange is one field's before/after value, produced by edits and by
// the merge engine. It feeds the audit trail.
type PropertyChange struct {
	PropertyName    string          `json:"property"`
	OldValue        string          `json:"old_value"`
	NewValue        string          `json:"new_value"`
	Timestamp       time.Time       `json:"timestamp"`
	ModifiedBy      string          `json:"modified_by,omitempty"`
	MergeResolution MergeResolution `json:"merge_resolution,omitempty"`
}

// IssueStore defines the snapshot interface for issue persistence.
// All storage engines must implement this interface.
type IssueStore interface {
	// Init prepares the backing storage (directories, schema).
	Init(ctx context.Context) error

	// LoadAll returns every stored issue record. Stores that keep several
	// shards may return more than one copy of the same issue; callers
	// reconcile duplicates.
	LoadAll(ctx context.Context) ([]*Issue, error)

	// SaveAll atomically replaces the stored collection with issues.
	SaveAll(ctx context.Context, issues []*Issue) error

	// Append adds a single issue record without rewriting the collection.
	Append(ctx context.Context, issue *Issue) error
}

// ShardedStore is implemented by stores that can hold secondary copies of the
// collection next to the primary one, e.g. files brought in from another
// branch. LoadAll returns the primary shard first, then secondary shards in
// name order. SaveAll folds everything back into the primary shard and
// drops the secondaries.
type ShardedStore interface {
	IssueStore

	// Shards lists secondary shard names in order.
	Shards(ctx context.Context) ([]string, error)

	// WriteShard replaces the content of the named secondary shard.
	WriteShard(ctx context.Context, shard string, issues []*Issue) error
}

// ValidateShardName checks that name can label a secondary shard.
func ValidateShardName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidShard)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidShard, name)
		}
	}
	return nil
}

// ChangeLog persists the audit trail of property changes.
type ChangeLog interface {
	// RecordChanges appends changes made to issueID.
	RecordChanges(ctx context.Context, issueID string, changes []PropertyChange) error

	// Changes returns the recorded changes for issueID, oldest first.
	Changes(ctx context.Context, issueID string) ([]PropertyChange, error)
}

func cloneSlice[T any](values []T) []T {
	if values == nil {
		return nil
	}
	cp := make([]T, len(values))
	copy(cp, values)
	return cp
}
