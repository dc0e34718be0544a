package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newNextCmd creates the next command.
func newNextCmd(provider *AppProvider) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "next",
		Short: "List issues that can be worked on now",
		Long: `List actionable issues: open or in review, not an idea, with no
unfinished children, and with every earlier sibling under a series parent done.

Issues in review come first, then described issues, then by priority and title.

Examples:
  tl next
  tl next --scope tl-a1b   # only issues under tl-a1b`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			next, err := app.Service.Next(cmd.Context(), scope)
			if err != nil {
				return err
			}

			if app.JSON {
				out := make([]IssueJSON, 0, len(next))
				for _, issue := range next {
					out = append(out, ToIssueJSON(issue))
				}
				return writeJSON(app, out)
			}

			if len(next) == 0 {
				fmt.Fprintln(app.Out, "Nothing is actionable.")
				return nil
			}
			fmt.Fprintf(app.Out, "Actionable issues (%d):\n\n", len(next))
			for _, issue := range next {
				fmt.Fprintf(app.Out, "  %s\n", issueLine(issue))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Limit to descendants of this issue")

	return cmd
}
