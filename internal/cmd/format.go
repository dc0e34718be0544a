package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tasklanes/internal/graph"
	"tasklanes/internal/issuestorage"
)

// IssueJSON is the JSON output format for a single issue.
// Used for create, show, update, list and next.
type IssueJSON struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Status          string          `json:"status"`
	Type            string          `json:"type"`
	Priority        *int            `json:"priority,omitempty"`
	AssignedTo      string          `json:"assigned_to,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	LinkedIssues    []string        `json:"linked_issues,omitempty"`
	Parents         []ParentRefJSON `json:"parents,omitempty"`
	Children        []string        `json:"children,omitempty"`
	ExecutionMode   string          `json:"execution_mode,omitempty"`
	WorkingBranchID string          `json:"working_branch_id,omitempty"`
	Actionable      *bool           `json:"actionable,omitempty"`
	CreatedAt       string          `json:"created_at"`
	CreatedBy       string          `json:"created_by,omitempty"`
	UpdatedAt       string          `json:"updated_at"`
}

// ParentRefJSON is one parent edge in JSON output.
type ParentRefJSON struct {
	ID        string `json:"id"`
	SortOrder string `json:"sort_order"`
}

// ToIssueJSON converts an issue to its JSON output form.
func ToIssueJSON(issue *issuestorage.Issue) IssueJSON {
	out := IssueJSON{
		ID:              issue.ID,
		Title:           issue.Title.Value,
		Description:     issue.Description.Value,
		Status:          string(issue.Status.Value),
		Type:            string(issue.Type.Value),
		Priority:        issue.Priority.Value,
		AssignedTo:      issue.AssignedTo.Value,
		Tags:            issue.Tags.Value,
		LinkedIssues:    issue.LinkedIssues.Value,
		ExecutionMode:   string(issue.ExecutionMode.Value),
		WorkingBranchID: issue.WorkingBranchID.Value,
		CreatedAt:       formatTime(issue.CreatedAt),
		CreatedBy:       issue.CreatedBy,
		UpdatedAt:       formatTime(issue.LastUpdate),
	}
	for _, ref := range issue.ParentIssues.Value {
		out.Parents = append(out.Parents, ParentRefJSON{ID: ref.ParentIssue, SortOrder: ref.SortOrder})
	}
	return out
}

// toNodeJSON adds graph-derived fields to the JSON form.
func toNodeJSON(node *graph.IssueGraphNode) IssueJSON {
	out := ToIssueJSON(node.Issue)
	out.Children = node.ChildIssueIDs
	actionable := graph.IsActionable(node)
	out.Actionable = &actionable
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatPriority renders a priority as P0..Pn, or "-" when unset.
func formatPriority(issue *issuestorage.Issue) string {
	if issue.Priority.Value == nil {
		return "-"
	}
	return "P" + strconv.Itoa(*issue.Priority.Value)
}

// parsePriority accepts "2", "p2" or "P2". An empty string or "-" clears.
func parsePriority(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(s), "p"))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid priority %q: use a non-negative number such as 0 or p2", s)
	}
	return &n, nil
}

// issueLine renders the one-line summary used by list and next.
func issueLine(issue *issuestorage.Issue) string {
	return fmt.Sprintf("%s  [%s] [%s] %s", issue.ID, formatPriority(issue), issue.Status.Value, issue.Title.Value)
}

// writeJSON encodes v to the app's output.
func writeJSON(app *App, v any) error {
	enc := json.NewEncoder(app.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
