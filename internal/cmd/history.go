package cmd

import (
	"fmt"

	"tasklanes/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newHistoryCmd creates the history command.
func newHistoryCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <issue-id>",
		Short: "Show the change history of an issue",
		Long: `Show every recorded change to an issue, oldest first. Changes made while
merging copies of the issue note which side won.

Examples:
  tl history tl-a1b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			changes, err := app.Service.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if app.JSON {
				if changes == nil {
					changes = []issuestorage.PropertyChange{}
				}
				return writeJSON(app, changes)
			}

			if len(changes) == 0 {
				fmt.Fprintln(app.Out, "No recorded changes.")
				return nil
			}
			for _, c := range changes {
				line := fmt.Sprintf("%s  %-10s %s: %q -> %q",
					c.Timestamp.Format("2006-01-02 15:04:05"), c.ModifiedBy, c.PropertyName, c.OldValue, c.NewValue)
				if c.MergeResolution != issuestorage.ResolutionNone {
					line += fmt.Sprintf(" (merge: %s)", c.MergeResolution)
				}
				fmt.Fprintln(app.Out, line)
			}
			return nil
		},
	}

	return cmd
}
