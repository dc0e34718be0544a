package cmd

import (
	"errors"
	"fmt"

	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newUpdateCmd creates the update command.
func newUpdateCmd(provider *AppProvider) *cobra.Command {
	var (
		title       string
		description string
		status      string
		typeFlag    string
		priority    string
		assignee    string
		tags        []string
		mode        string
		branch      string
		link        []string
		unlink      []string
	)

	cmd := &cobra.Command{
		Use:   "update <issue-id>",
		Short: "Update fields of an issue",
		Long: `Update one or more fields of an issue. Only the flags given are changed,
and only fields whose value actually differs get a new timestamp.

Examples:
  tl update tl-a1b --status in-progress
  tl update tl-a1b --priority 0 --assignee alice
  tl update tl-a1b --priority -        # clear priority
  tl update tl-a1b --mode parallel
  tl update tl-a1b --link tl-c3d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			var e issueservice.Edit
			if flags.Changed("title") {
				e.Title = &title
			}
			if flags.Changed("description") {
				e.Description = &description
			}
			if flags.Changed("status") {
				s, err := issuestorage.ParseStatus(status)
				if err != nil {
					return err
				}
				e.Status = &s
			}
			if flags.Changed("type") {
				t, err := issuestorage.ParseIssueType(typeFlag)
				if err != nil {
					return err
				}
				e.Type = &t
			}
			if flags.Changed("priority") {
				p, err := parsePriority(priority)
				if err != nil {
					return err
				}
				e.Priority, e.ClearPriority = p, p == nil
			}
			if flags.Changed("assignee") {
				e.AssignedTo = &assignee
			}
			if flags.Changed("tag") {
				e.Tags = &tags
			}
			if flags.Changed("mode") {
				m, err := issuestorage.ParseExecutionMode(mode)
				if err != nil {
					return err
				}
				e.ExecutionMode = &m
			}
			if flags.Changed("branch") {
				e.WorkingBranchID = &branch
			}
			e.AddLinks, e.RemoveLinks = link, unlink

			issue, changes, err := app.Service.Update(cmd.Context(), args[0], e)
			if err != nil {
				if errors.Is(err, issuestorage.ErrNotFound) {
					return fmt.Errorf("no issue found matching %q", args[0])
				}
				return err
			}

			if app.JSON {
				return writeJSON(app, ToIssueJSON(issue))
			}
			if len(changes) == 0 {
				fmt.Fprintf(app.Out, "No changes to %s\n", issue.ID)
				return nil
			}
			fmt.Fprintf(app.Out, "%s Updated %s\n", app.SuccessColor("✓"), issue.ID)
			for _, c := range changes {
				fmt.Fprintf(app.Out, "  %s: %q -> %q\n", c.PropertyName, c.OldValue, c.NewValue)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "New type")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority (- to clear)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "New assignee")
	cmd.Flags().StringSliceVarP(&tags, "tag", "l", nil, "Replace tags (can repeat)")
	cmd.Flags().StringVar(&mode, "mode", "", "Execution mode for children (series, parallel)")
	cmd.Flags().StringVar(&branch, "branch", "", "Working branch")
	cmd.Flags().StringSliceVar(&link, "link", nil, "Link a related issue (can repeat)")
	cmd.Flags().StringSliceVar(&unlink, "unlink", nil, "Remove a linked issue (can repeat)")

	return cmd
}
