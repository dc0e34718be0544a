package issueservice

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tasklanes/internal/issuestorage"
	"tasklanes/internal/issuestorage/filesystem"
)

func newService(t *testing.T) (*Service, *filesystem.FilesystemStorage) {
	t.Helper()
	store := filesystem.New(filepath.Join(t.TempDir(), ".tasklanes"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := New(store, Options{
		Actor:  "tester",
		Prefix: "tl",
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	return svc, store
}

func mustCreate(t *testing.T, svc *Service, n NewIssue) *issuestorage.Issue {
	t.Helper()
	issue, err := svc.Create(context.Background(), n)
	if err != nil {
		t.Fatalf("Create(%q): %v", n.Title, err)
	}
	return issue
}

func childIDs(t *testing.T, svc *Service, parentID string) []string {
	t.Helper()
	g, err := svc.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	node, ok := g.Node(parentID)
	if !ok {
		t.Fatalf("parent %s missing from graph", parentID)
	}
	return node.ChildIssueIDs
}

func TestCreateAssignsIDAndStamps(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	issue := mustCreate(t, svc, NewIssue{Title: "  Write docs  "})

	if !strings.HasPrefix(issue.ID, "tl-") || len(issue.ID) != len("tl-")+3 {
		t.Errorf("ID = %q, want tl- plus 3 characters", issue.ID)
	}
	if issue.Title.Value != "Write docs" {
		t.Errorf("Title = %q", issue.Title.Value)
	}
	if issue.Status.Value != issuestorage.StatusOpen || issue.Type.Value != issuestorage.TypeTask {
		t.Errorf("defaults: status %q type %q", issue.Status.Value, issue.Type.Value)
	}
	if issue.Title.ModifiedBy != "tester" || issue.Title.LastUpdate.IsZero() {
		t.Errorf("title not stamped: %+v", issue.Title)
	}
	if issue.CreatedBy != "tester" || !issue.CreatedAt.Equal(issue.LastUpdate) {
		t.Errorf("creation facts: by %q at %v last %v", issue.CreatedBy, issue.CreatedAt, issue.LastUpdate)
	}

	got, err := svc.Get(ctx, issue.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(issue, got); diff != "" {
		t.Errorf("stored issue mismatch (-created +stored):\n%s", diff)
	}

	history, err := svc.History(ctx, issue.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].PropertyName != "created" {
		t.Errorf("History = %+v", history)
	}
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Create(context.Background(), NewIssue{Title: "   "}); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("err = %v, want ErrEmptyTitle", err)
	}
}

func TestCreateUnknownParent(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), NewIssue{Title: "child", Parent: "tl-nope"})
	if !errors.Is(err, issuestorage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateAppendsAfterLastSibling(t *testing.T) {
	svc, _ := newService(t)

	parent := mustCreate(t, svc, NewIssue{Title: "epic", Type: issuestorage.TypeEpic})
	first := mustCreate(t, svc, NewIssue{Title: "zz first", Parent: parent.ID})
	second := mustCreate(t, svc, NewIssue{Title: "aa second", Parent: parent.ID})

	r1, _ := first.ParentRef(parent.ID)
	r2, _ := second.ParentRef(parent.ID)
	if r1.SortOrder >= r2.SortOrder {
		t.Errorf("sort orders not increasing: %q then %q", r1.SortOrder, r2.SortOrder)
	}

	want := []string{first.ID, second.ID}
	if diff := cmp.Diff(want, childIDs(t, svc, parent.ID)); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	issues := []*issuestorage.Issue{{ID: "tl-abc"}, {ID: "tl-abd"}, {ID: "tl-x"}}

	tests := []struct {
		ref     string
		want    string
		wantErr error
	}{
		{ref: "tl-abc", want: "tl-abc"},
		{ref: "TL-ABD", want: "tl-abd"},
		{ref: "tl-x", want: "tl-x"},
		{ref: "tl-ab", wantErr: issuestorage.ErrAmbiguousID},
		{ref: "tl-q", wantErr: issuestorage.ErrNotFound},
		{ref: "", wantErr: issuestorage.ErrNotFound},
	}
	for _, tt := range tests {
		got, err := Resolve(issues, tt.ref)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve(%q) err = %v, want %v", tt.ref, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got.ID != tt.want {
			t.Errorf("Resolve(%q) = %v, %v; want %s", tt.ref, got, err, tt.want)
		}
	}
}

func TestResolvePrefixMatch(t *testing.T) {
	issues := []*issuestorage.Issue{{ID: "tl-abc"}, {ID: "tl-x"}}
	got, err := Resolve(issues, "tl-a")
	if err != nil || got.ID != "tl-abc" {
		t.Errorf("Resolve(tl-a) = %v, %v", got, err)
	}
}
