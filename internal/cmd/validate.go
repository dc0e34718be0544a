package cmd

import (
	"fmt"
	"strings"

	"tasklanes/internal/graph"

	"github.com/spf13/cobra"
)

// newValidateCmd creates the validate command.
func newValidateCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the issue hierarchy for cycles",
		Long: `Check that no issue is, directly or indirectly, its own parent.

Exits with an error when a cycle is found. Each cycle is reported once,
starting and ending at the same issue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			result, err := app.Service.Validate(cmd.Context())
			if err != nil {
				return err
			}

			if app.JSON {
				if result.Cycles == nil {
					result.Cycles = []graph.DependencyCycle{}
				}
				if err := writeJSON(app, result); err != nil {
					return err
				}
			} else if result.IsValid {
				fmt.Fprintf(app.Out, "%s No cycles found.\n", app.SuccessColor("✓"))
			} else {
				fmt.Fprintf(app.Out, "%s Found %d cycle(s):\n", app.WarnColor("✗"), len(result.Cycles))
				for _, c := range result.Cycles {
					fmt.Fprintf(app.Out, "  %s\n", strings.Join(c, " -> "))
				}
			}

			if !result.IsValid {
				return fmt.Errorf("hierarchy has %d cycle(s)", len(result.Cycles))
			}
			return nil
		},
	}

	return cmd
}
