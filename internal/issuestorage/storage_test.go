package issuestorage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"open", StatusOpen, false},
		{"OPEN", StatusOpen, false},
		{"in-progress", StatusInProgress, false},
		{"in_progress", StatusInProgress, false},
		{" review ", StatusReview, false},
		{"deleted", StatusDeleted, false},
		{"finished", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatusIsDone(t *testing.T) {
	done := map[Status]bool{
		StatusComplete: true,
		StatusArchived: true,
		StatusClosed:   true,
		StatusDeleted:  true,
	}
	for _, s := range Statuses {
		if s.IsDone() != done[s] {
			t.Errorf("%s.IsDone() = %v, want %v", s, s.IsDone(), done[s])
		}
	}
}

func TestParseExecutionMode(t *testing.T) {
	for _, in := range []string{"series", "Serial", "s"} {
		if got, err := ParseExecutionMode(in); err != nil || got != ModeSeries {
			t.Errorf("ParseExecutionMode(%q) = %q, %v", in, got, err)
		}
	}
	if got, err := ParseExecutionMode("PARALLEL"); err != nil || got != ModeParallel {
		t.Errorf("ParseExecutionMode(PARALLEL) = %q, %v", got, err)
	}
	if _, err := ParseExecutionMode("sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if ExecutionMode("").Normalize() != ModeSeries {
		t.Error("empty mode should normalize to series")
	}
}

func TestParseIssueType(t *testing.T) {
	if got, err := ParseIssueType("Idea"); err != nil || got != TypeIdea {
		t.Errorf("ParseIssueType(Idea) = %q, %v", got, err)
	}
	if _, err := ParseIssueType("story"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestIssueNormalize(t *testing.T) {
	issue := &Issue{
		ID:           " TL-ABC ",
		LinkedIssues: Field([]string{"TL-X"}, time.Time{}, ""),
		ParentIssues: Field([]ParentIssueRef{{ParentIssue: "TL-P", SortOrder: "V"}}, time.Time{}, ""),
	}
	issue.Normalize()

	if issue.ID != "tl-abc" {
		t.Errorf("ID = %q", issue.ID)
	}
	if issue.LinkedIssues.Value[0] != "tl-x" {
		t.Errorf("linked = %v", issue.LinkedIssues.Value)
	}
	if issue.ParentIssues.Value[0].ParentIssue != "tl-p" || issue.ParentIssues.Value[0].SortOrder != "V" {
		t.Errorf("parents = %v", issue.ParentIssues.Value)
	}
}

func TestIssueCloneIsDeep(t *testing.T) {
	p := 2
	issue := &Issue{
		ID:           "a",
		Priority:     Field(&p, time.Time{}, ""),
		Tags:         Field([]string{"x"}, time.Time{}, ""),
		ParentIssues: Field([]ParentIssueRef{{ParentIssue: "p"}}, time.Time{}, ""),
	}

	cp := issue.Clone()
	*cp.Priority.Value = 5
	cp.Tags.Value[0] = "y"
	cp.ParentIssues.Value[0].ParentIssue = "q"

	if *issue.Priority.Value != 2 || issue.Tags.Value[0] != "x" || issue.ParentIssues.Value[0].ParentIssue != "p" {
		t.Errorf("clone shares state with original: %+v", issue)
	}
}

func TestIssueParentRef(t *testing.T) {
	issue := &Issue{ParentIssues: Field([]ParentIssueRef{
		{ParentIssue: "Parent", SortOrder: "a"},
	}, time.Time{}, "")}

	ref, ok := issue.ParentRef("PARENT")
	if !ok || ref.SortOrder != "a" {
		t.Errorf("ParentRef = %+v, %v", ref, ok)
	}
	if issue.HasParent("other") {
		t.Error("HasParent(other) should be false")
	}
}

func TestPriorityOrMissing(t *testing.T) {
	issue := &Issue{}
	if issue.PriorityOrMissing() != MissingPriority {
		t.Errorf("unset priority = %d", issue.PriorityOrMissing())
	}
	zero := 0
	issue.Priority.Value = &zero
	if issue.PriorityOrMissing() != 0 {
		t.Errorf("priority = %d, want 0", issue.PriorityOrMissing())
	}
}

func TestFieldMetaJSON(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(Field(StatusReview, at, "dana"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"value":"review","last_update":"2025-06-01T12:00:00Z","modified_by":"dana"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestValidateShardName(t *testing.T) {
	for _, ok := range []string{"main", "feature-x", "host_2"} {
		if err := ValidateShardName(ok); err != nil {
			t.Errorf("ValidateShardName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a/b", "x.jsonl", "../up"} {
		if err := ValidateShardName(bad); !errors.Is(err, ErrInvalidShard) {
			t.Errorf("ValidateShardName(%q) = %v, want ErrInvalidShard", bad, err)
		}
	}
}
