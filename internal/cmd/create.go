package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newCreateCmd creates the create command.
func newCreateCmd(provider *AppProvider) *cobra.Command {
	var (
		typeFlag    string
		priority    string
		parent      string
		tags        []string
		assignee    string
		description string
		mode        string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new issue",
		Long: `Create a new issue with the specified title.

Examples:
  tl create "Fix login bug"
  tl create "Add OAuth support" --type feature --priority 1
  tl create "Ship v2" --type epic --mode parallel
  tl create "Write tests" --parent tl-a1b
  tl create "Task" --description -   # read description from stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			n := issueservice.NewIssue{
				Title:      args[0],
				Parent:     parent,
				Tags:       tags,
				AssignedTo: assignee,
			}

			if typeFlag != "" {
				if n.Type, err = issuestorage.ParseIssueType(typeFlag); err != nil {
					return err
				}
			}
			if status != "" {
				if n.Status, err = issuestorage.ParseStatus(status); err != nil {
					return err
				}
			}
			if mode != "" {
				if n.ExecutionMode, err = issuestorage.ParseExecutionMode(mode); err != nil {
					return err
				}
			}
			if n.Priority, err = parsePriority(priority); err != nil {
				return err
			}

			n.Description = description
			if description == "-" {
				data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
				if err != nil {
					return fmt.Errorf("reading description from stdin: %w", err)
				}
				n.Description = strings.TrimSpace(string(data))
			}

			issue, err := app.Service.Create(cmd.Context(), n)
			if err != nil {
				return fmt.Errorf("creating issue: %w", err)
			}

			if app.JSON {
				return writeJSON(app, ToIssueJSON(issue))
			}

			fmt.Fprintf(app.Out, "%s Created issue: %s\n", app.SuccessColor("✓"), issue.ID)
			fmt.Fprintf(app.Out, "  Title: %s\n", issue.Title.Value)
			fmt.Fprintf(app.Out, "  Priority: %s\n", formatPriority(issue))
			fmt.Fprintf(app.Out, "  Status: %s\n", issue.Status.Value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Issue type (task, bug, feature, chore, epic, idea)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority, 0 is most urgent")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent issue ID")
	cmd.Flags().StringSliceVarP(&tags, "tag", "l", nil, "Add tag (can repeat)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assign to user")
	cmd.Flags().StringVar(&description, "description", "", "Full description (use - for stdin)")
	cmd.Flags().StringVar(&mode, "mode", "", "Execution mode for children (series, parallel)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Initial status (default open)")

	return cmd
}
