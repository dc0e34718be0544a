package cmd

import (
	"errors"
	"fmt"
	"strings"

	"tasklanes/internal/graph"
	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newShowCmd creates the show command.
func newShowCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <issue-id>",
		Short: "Show full details of an issue",
		Long: `Display detailed information about a single issue.

Supports prefix matching on issue IDs. If the prefix matches exactly one issue,
that issue is displayed. If multiple issues match, all matching IDs are listed.

Examples:
  tl show tl-a1b       # Exact ID match
  tl show tl-a         # Prefix match (if unique)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			issues, err := app.Service.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			issue, err := issueservice.Resolve(issues, args[0])
			if err != nil {
				if errors.Is(err, issuestorage.ErrNotFound) {
					return fmt.Errorf("no issue found matching %q", args[0])
				}
				return err
			}
			node, _ := graph.Build(issues).Node(issue.ID)

			if app.JSON {
				return writeJSON(app, toNodeJSON(node))
			}
			printIssue(app, node)
			return nil
		},
	}

	return cmd
}

// printIssue formats and outputs the issue details.
func printIssue(app *App, node *graph.IssueGraphNode) {
	issue := node.Issue
	header := fmt.Sprintf("%s: %s", issue.ID, issue.Title.Value)
	fmt.Fprintln(app.Out, header)
	fmt.Fprintln(app.Out, strings.Repeat("-", len(header)))

	fmt.Fprintf(app.Out, "Status:   %s\n", issue.Status.Value)
	fmt.Fprintf(app.Out, "Priority: %s\n", formatPriority(issue))
	fmt.Fprintf(app.Out, "Type:     %s\n", issue.Type.Value)
	fmt.Fprintf(app.Out, "Mode:     %s\n", issue.Mode())
	if graph.IsActionable(node) {
		fmt.Fprintf(app.Out, "Next:     %s\n", app.SuccessColor("actionable"))
	}

	if issue.AssignedTo.Value != "" {
		fmt.Fprintf(app.Out, "Assignee: %s\n", issue.AssignedTo.Value)
	}
	if len(issue.Tags.Value) > 0 {
		fmt.Fprintf(app.Out, "Tags:     %s\n", strings.Join(issue.Tags.Value, ", "))
	}
	if issue.WorkingBranchID.Value != "" {
		fmt.Fprintf(app.Out, "Branch:   %s\n", issue.WorkingBranchID.Value)
	}

	fmt.Fprintf(app.Out, "Created:  %s", issue.CreatedAt.Format("2006-01-02 15:04:05"))
	if issue.CreatedBy != "" {
		fmt.Fprintf(app.Out, " by %s", issue.CreatedBy)
	}
	fmt.Fprintln(app.Out)
	fmt.Fprintf(app.Out, "Updated:  %s\n", issue.LastUpdate.Format("2006-01-02 15:04:05"))

	if len(issue.ParentIssues.Value) > 0 {
		fmt.Fprintf(app.Out, "\nParents:\n")
		for _, ref := range issue.ParentIssues.Value {
			fmt.Fprintf(app.Out, "  %s\n", ref.ParentIssue)
		}
	}
	if len(node.ChildIssueIDs) > 0 {
		fmt.Fprintf(app.Out, "\nChildren:\n")
		for _, id := range node.ChildIssueIDs {
			fmt.Fprintf(app.Out, "  %s\n", id)
		}
	}
	if len(issue.LinkedIssues.Value) > 0 {
		fmt.Fprintf(app.Out, "\nLinked:\n")
		for _, id := range issue.LinkedIssues.Value {
			fmt.Fprintf(app.Out, "  %s\n", id)
		}
	}

	if issue.Description.Value != "" {
		fmt.Fprintf(app.Out, "\nDescription:\n%s\n", issue.Description.Value)
	}
}
