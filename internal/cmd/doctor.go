package cmd

import (
	"context"
	"fmt"
	"strings"

	"tasklanes/internal/issuestorage/filesystem"
	"tasklanes/internal/issuestorage/sqlite"

	"github.com/spf13/cobra"
)

// DoctorResult represents the output of the doctor command.
type DoctorResult struct {
	Problems []string `json:"problems"`
	Fixed    bool     `json:"fixed"`
}

// newDoctorCmd creates the doctor command.
func newDoctorCmd(provider *AppProvider) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check for and fix inconsistencies",
		Long: `Check for and fix inconsistencies in the tasklanes storage.

Checks for:
- Orphaned temp files from interrupted writes
- Malformed or id-less records
- Database corruption (sqlite backend)
- Issues stored more than once, e.g. shards brought in from another branch
- Parent references to issues that do not exist
- Cycles in the hierarchy (reported, never fixed automatically)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			problems, err := runDoctor(cmd.Context(), app, fix)
			if err != nil {
				return fmt.Errorf("doctor failed: %w", err)
			}

			if app.JSON {
				if problems == nil {
					problems = []string{}
				}
				return writeJSON(app, DoctorResult{Problems: problems, Fixed: fix})
			}

			if len(problems) == 0 {
				fmt.Fprintln(app.Out, "No problems found.")
				return nil
			}

			if fix {
				fmt.Fprintf(app.Out, "Fixed %d problems:\n", len(problems))
			} else {
				fmt.Fprintf(app.Out, "Found %d problems:\n", len(problems))
			}
			for _, problem := range problems {
				fmt.Fprintf(app.Out, "  - %s\n", problem)
			}
			if !fix {
				fmt.Fprintln(app.Out, "\nRun 'tl doctor --fix' to fix these issues.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Fix problems (default is check only)")

	return cmd
}

func runDoctor(ctx context.Context, app *App, fix bool) ([]string, error) {
	var problems []string

	switch store := app.Storage.(type) {
	case *filesystem.FilesystemStorage:
		found, err := store.Doctor(ctx, fix)
		if err != nil {
			return nil, err
		}
		problems = append(problems, found...)
	case *sqlite.Store:
		found, err := store.IntegrityCheck(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			problems = append(problems, "database: "+p)
		}
		if len(found) > 0 {
			// Nothing above the database can be trusted.
			return problems, nil
		}
	}

	report, err := app.Service.ResolveDuplicates(ctx, !fix)
	if err != nil {
		return nil, err
	}
	if report.ShardsFolded > 0 {
		problems = append(problems, fmt.Sprintf("%d secondary shard(s) to fold into the primary", report.ShardsFolded))
	}
	for _, m := range report.Merged {
		problems = append(problems, fmt.Sprintf("issue %s stored %d times", m.ID, m.Copies))
	}

	issues, err := app.Service.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(issues))
	for _, issue := range issues {
		known[issue.ID] = true
	}
	for _, issue := range issues {
		for _, parentID := range issue.ParentIDs() {
			if known[parentID] {
				continue
			}
			problems = append(problems, fmt.Sprintf("dangling parent reference: %s -> %s", issue.ID, parentID))
			if fix {
				if err := app.Service.RemoveParent(ctx, issue.ID, parentID); err != nil {
					return nil, err
				}
			}
		}
	}

	result, err := app.Service.Validate(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range result.Cycles {
		problems = append(problems, "cycle (fix by hand with 'tl dep remove'): "+strings.Join(c, " -> "))
	}
	return problems, nil
}
