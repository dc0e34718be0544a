// Package issueservice is the read-modify-write layer between the CLI and an
// IssueStore. Every operation loads a fresh snapshot, folds duplicate copies
// with the merge engine, applies one change, and writes the result back.
//
// Storage backends stay plain snapshot stores; hierarchy rules (cycle
// detection, sibling ordering, duplicate parents) live here.
package issueservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"tasklanes/internal/graph"
	"tasklanes/internal/issuestorage"
	"tasklanes/internal/merge"
)

// Options configures a Service.
type Options struct {
	// Actor is stamped on every field a Service writes.
	Actor string
	// Prefix is prepended to generated IDs, normalized to end in a dash.
	Prefix string
	// IDLength is the minimum hash length of generated IDs.
	IDLength int
	Logger   *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service applies issue operations against a store.
type Service struct {
	store    issuestorage.IssueStore
	log      *slog.Logger
	actor    string
	prefix   string
	idLength int
	now      func() time.Time
}

// New creates a Service over store.
func New(store issuestorage.IssueStore, opts Options) *Service {
	s := &Service{
		store:    store,
		log:      opts.Logger,
		actor:    opts.Actor,
		prefix:   opts.Prefix,
		idLength: opts.IDLength,
		now:      opts.Now,
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() issuestorage.IssueStore {
	return s.store
}

// Actor returns the name stamped on writes.
func (s *Service) Actor() string {
	return s.actor
}

// Snapshot returns every issue once, in first-seen order. Copies of the same
// ID found in several shards are merged in memory; nothing is written.
func (s *Service) Snapshot(ctx context.Context) ([]*issuestorage.Issue, error) {
	groups, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	issues := make([]*issuestorage.Issue, 0, len(groups))
	for _, g := range groups {
		issues = append(issues, g.merged)
	}
	return issues, nil
}

// copyGroup holds every stored copy of one issue and their merge.
type copyGroup struct {
	id      string
	copies  int
	merged  *issuestorage.Issue
	changes []issuestorage.PropertyChange
}

func (s *Service) load(ctx context.Context) ([]*copyGroup, error) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string][]*issuestorage.Issue)
	var order []string
	for _, issue := range records {
		id := issuestorage.NormalizeID(issue.ID)
		if id == "" {
			continue
		}
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = append(byID[id], issue)
	}

	groups := make([]*copyGroup, 0, len(order))
	for _, id := range order {
		copies := byID[id]
		merged, changes, err := merge.All(copies)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", id, err)
		}
		groups = append(groups, &copyGroup{
			id:      id,
			copies:  len(copies),
			merged:  merged,
			changes: changes,
		})
	}
	return groups, nil
}

// Resolve finds the issue ref names: an exact case-insensitive ID match, or
// else the single issue whose ID starts with ref.
func Resolve(issues []*issuestorage.Issue, ref string) (*issuestorage.Issue, error) {
	want := issuestorage.NormalizeID(ref)
	if want == "" {
		return nil, fmt.Errorf("%w: empty reference", issuestorage.ErrNotFound)
	}

	var matches []*issuestorage.Issue
	for _, issue := range issues {
		id := issuestorage.NormalizeID(issue.ID)
		if id == want {
			return issue, nil
		}
		if strings.HasPrefix(id, want) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", issuestorage.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	slices.Sort(ids)
	return nil, fmt.Errorf("%w: %s matches %s", issuestorage.ErrAmbiguousID, ref, strings.Join(ids, ", "))
}

// Get resolves ref against a fresh snapshot.
func (s *Service) Get(ctx context.Context, ref string) (*issuestorage.Issue, error) {
	issues, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Resolve(issues, ref)
}

// Graph builds the dependency graph of the current snapshot.
func (s *Service) Graph(ctx context.Context) (*graph.IssueGraph, error) {
	issues, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Build(issues), nil
}

// Next returns the actionable issues, optionally limited to the descendants
// of scopeRef.
func (s *Service) Next(ctx context.Context, scopeRef string) ([]*issuestorage.Issue, error) {
	issues, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	scope := ""
	if scopeRef != "" {
		issue, err := Resolve(issues, scopeRef)
		if err != nil {
			return nil, err
		}
		scope = issue.ID
	}
	return graph.NextIssues(graph.Build(issues), scope), nil
}

// TaskGraph lays out the active work. A non-empty match restricts the layout
// to issues whose ID or title contains it, plus their ancestors.
func (s *Service) TaskGraph(ctx context.Context, match string) (*graph.TaskGraph, error) {
	issues, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	g := graph.Build(issues)
	if match == "" {
		return graph.BuildTaskGraph(g), nil
	}

	needle := strings.ToLower(match)
	var matched []string
	for _, issue := range issues {
		if strings.Contains(issue.ID, needle) || strings.Contains(strings.ToLower(issue.Title.Value), needle) {
			matched = append(matched, issue.ID)
		}
	}
	return graph.BuildFilteredTaskGraph(g, matched), nil
}

// Validate checks the hierarchy for cycles.
func (s *Service) Validate(ctx context.Context) (graph.ValidationResult, error) {
	issues, err := s.Snapshot(ctx)
	if err != nil {
		return graph.ValidationResult{}, err
	}
	return graph.ValidateCycles(issues), nil
}

// History returns the recorded changes for the issue ref names.
func (s *Service) History(ctx context.Context, ref string) ([]issuestorage.PropertyChange, error) {
	log, ok := s.store.(issuestorage.ChangeLog)
	if !ok {
		return nil, fmt.Errorf("storage backend does not keep history")
	}
	issue, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return log.Changes(ctx, issue.ID)
}

// record appends changes to the audit trail when the store keeps one.
func (s *Service) record(ctx context.Context, id string, changes []issuestorage.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	log, ok := s.store.(issuestorage.ChangeLog)
	if !ok {
		return nil
	}
	if err := log.RecordChanges(ctx, id, changes); err != nil {
		return fmt.Errorf("recording changes for %s: %w", id, err)
	}
	return nil
}

// change builds a PropertyChange stamped by this service.
func (s *Service) change(name, oldValue, newValue string, at time.Time) issuestorage.PropertyChange {
	return issuestorage.PropertyChange{
		PropertyName: name,
		OldValue:     oldValue,
		NewValue:     newValue,
		Timestamp:    at,
		ModifiedBy:   s.actor,
	}
}
