package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCloseCmd creates the close command.
func newCloseCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <issue-id> [issue-id...]",
		Short: "Close one or more issues",
		Long: `Close one or more issues by setting their status to closed.

Examples:
  tl close tl-a1b
  tl close tl-a1b tl-c3d tl-e5f`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			closed := []string{}
			var errs []error

			for _, ref := range args {
				issue, err := app.Service.Close(ctx, ref)
				if err != nil {
					errs = append(errs, fmt.Errorf("closing %s: %w", ref, err))
					continue
				}
				closed = append(closed, issue.ID)
			}

			if app.JSON {
				result := map[string]any{
					"closed": closed,
				}
				if len(errs) > 0 {
					errStrings := make([]string, len(errs))
					for i, e := range errs {
						errStrings[i] = e.Error()
					}
					result["errors"] = errStrings
				}
				if err := writeJSON(app, result); err != nil {
					return err
				}
			} else {
				for _, id := range closed {
					fmt.Fprintf(app.Out, "Closed %s\n", id)
				}
				for _, e := range errs {
					fmt.Fprintf(app.Err, "Error: %v\n", e)
				}
			}

			if len(errs) > 0 {
				return errs[0]
			}
			return nil
		},
	}

	return cmd
}
