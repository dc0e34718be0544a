package cmd

import (
	"cmp"
	"fmt"
	"slices"

	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"

	"github.com/spf13/cobra"
)

// listFilter selects issues for the list command.
type listFilter struct {
	status   string
	typ      string
	assignee string
	tag      string
	parent   string
	all      bool
}

// newListCmd creates the list command.
func newListCmd(provider *AppProvider) *cobra.Command {
	var f listFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Long: `List issues, hiding finished ones unless --all or --status is given.

Issues are ordered by priority, then by title.

Examples:
  tl list
  tl list --status review
  tl list --type bug --assignee alice
  tl list --parent tl-a1b --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			issues, err := app.Service.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			matched, err := f.apply(issues)
			if err != nil {
				return err
			}

			if app.JSON {
				out := make([]IssueJSON, 0, len(matched))
				for _, issue := range matched {
					out = append(out, ToIssueJSON(issue))
				}
				return writeJSON(app, out)
			}

			if len(matched) == 0 {
				fmt.Fprintln(app.Out, "No issues found.")
				return nil
			}
			for _, issue := range matched {
				fmt.Fprintln(app.Out, issueLine(issue))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "Filter by type")
	cmd.Flags().StringVarP(&f.assignee, "assignee", "a", "", "Filter by assignee")
	cmd.Flags().StringVarP(&f.tag, "tag", "l", "", "Filter by tag")
	cmd.Flags().StringVar(&f.parent, "parent", "", "Only children of this issue")
	cmd.Flags().BoolVar(&f.all, "all", false, "Include finished issues")

	return cmd
}

func (f listFilter) apply(issues []*issuestorage.Issue) ([]*issuestorage.Issue, error) {
	var (
		status issuestorage.Status
		typ    issuestorage.IssueType
		parent string
		err    error
	)
	if f.status != "" {
		if status, err = issuestorage.ParseStatus(f.status); err != nil {
			return nil, err
		}
	}
	if f.typ != "" {
		if typ, err = issuestorage.ParseIssueType(f.typ); err != nil {
			return nil, err
		}
	}
	if f.parent != "" {
		p, err := issueservice.Resolve(issues, f.parent)
		if err != nil {
			return nil, err
		}
		parent = p.ID
	}

	var out []*issuestorage.Issue
	for _, issue := range issues {
		switch {
		case status != "" && issue.Status.Value != status:
		case status == "" && !f.all && issue.IsDone():
		case typ != "" && issue.Type.Value != typ:
		case f.assignee != "" && issue.AssignedTo.Value != f.assignee:
		case f.tag != "" && !slices.Contains(issue.Tags.Value, f.tag):
		case parent != "" && !issue.HasParent(parent):
		default:
			out = append(out, issue)
		}
	}

	slices.SortStableFunc(out, func(a, b *issuestorage.Issue) int {
		if c := cmp.Compare(a.PriorityOrMissing(), b.PriorityOrMissing()); c != 0 {
			return c
		}
		return cmp.Compare(a.Title.Value, b.Title.Value)
	})
	return out, nil
}
