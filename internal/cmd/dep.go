package cmd

import (
	"errors"
	"fmt"

	"tasklanes/internal/graph"
	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newDepCmd creates the dep command with subcommands.
func newDepCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage issue dependencies",
		Long: `Manage dependencies between issues.

A dependency "A depends on B" makes B a child of A: A cannot be worked on
until B is done. A child may have several parents. Under a series parent the
children are worked in sibling order; --before and --after pick the place.

Subcommands:
  add     Create a dependency (A depends on B)
  remove  Remove a dependency
  list    Show dependencies for an issue`,
	}

	cmd.AddCommand(newDepAddCmd(provider))
	cmd.AddCommand(newDepRemoveCmd(provider))
	cmd.AddCommand(newDepListCmd(provider))

	return cmd
}

// newDepAddCmd creates the "dep add" subcommand.
func newDepAddCmd(provider *AppProvider) *cobra.Command {
	var pos issueservice.Position

	cmd := &cobra.Command{
		Use:   "add <issue-id> <dependency-id>",
		Short: "Add a dependency (issue depends on dependency)",
		Long: `Make dependency a child of issue.

The change is rejected, and nothing is written, if either issue is missing,
the dependency already exists, or it would create a cycle.

Examples:
  tl dep add tl-a1b tl-c3d                 # tl-a1b depends on tl-c3d
  tl dep add tl-a1b tl-e5f --before tl-c3d # work tl-e5f before tl-c3d`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			parentRef, childRef := args[0], args[1]
			if err := app.Service.AddParent(cmd.Context(), childRef, parentRef, pos); err != nil {
				switch {
				case errors.Is(err, issuestorage.ErrCycle):
					return fmt.Errorf("cannot add dependency: would create a cycle")
				case errors.Is(err, issuestorage.ErrAlreadyExists):
					return fmt.Errorf("%s already depends on %s", parentRef, childRef)
				}
				return fmt.Errorf("adding dependency: %w", err)
			}

			if app.JSON {
				return writeJSON(app, map[string]string{
					"status":        "added",
					"issue_id":      parentRef,
					"depends_on_id": childRef,
				})
			}
			fmt.Fprintf(app.Out, "%s Added dependency: %s depends on %s\n", app.SuccessColor("✓"), parentRef, childRef)
			return nil
		},
	}

	cmd.Flags().StringVar(&pos.Before, "before", "", "Place the dependency before this sibling")
	cmd.Flags().StringVar(&pos.After, "after", "", "Place the dependency after this sibling")
	cmd.MarkFlagsMutuallyExclusive("before", "after")

	return cmd
}

// newDepRemoveCmd creates the "dep remove" subcommand.
func newDepRemoveCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <issue-id> <dependency-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a dependency",
		Long: `Remove the dependency of issue on dependency.

Examples:
  tl dep remove tl-a1b tl-c3d`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			parentRef, childRef := args[0], args[1]
			if err := app.Service.RemoveParent(cmd.Context(), childRef, parentRef); err != nil {
				return fmt.Errorf("removing dependency: %w", err)
			}

			if app.JSON {
				return writeJSON(app, map[string]string{
					"status":        "removed",
					"issue_id":      parentRef,
					"depends_on_id": childRef,
				})
			}
			fmt.Fprintf(app.Out, "%s Removed dependency: %s no longer depends on %s\n", app.SuccessColor("✓"), parentRef, childRef)
			return nil
		},
	}

	return cmd
}

// DepListJSON is the JSON output of "dep list".
type DepListJSON struct {
	ID         string   `json:"id"`
	DependsOn  []string `json:"depends_on"`
	Dependents []string `json:"dependents"`
	Previous   []string `json:"previous,omitempty"`
	Next       []string `json:"next,omitempty"`
}

// newDepListCmd creates the "dep list" subcommand.
func newDepListCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <issue-id>",
		Short: "Show dependencies for an issue",
		Long: `Show what an issue depends on (its children), what depends on it
(its parents), and its series neighbours.

Examples:
  tl dep list tl-a1b`,
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
				return err
			}
			g := graph.Build(issues)
			node, _ := g.Node(issue.ID)

			out := DepListJSON{
				ID:         issue.ID,
				DependsOn:  nonNil(node.ChildIssueIDs),
				Dependents: nonNil(node.ParentIssueIDs),
				Previous:   node.PreviousIssueIDs,
				Next:       node.NextIssueIDs,
			}
			if app.JSON {
				return writeJSON(app, out)
			}

			printDeps := func(label string, ids []string) {
				if len(ids) == 0 {
					return
				}
				fmt.Fprintf(app.Out, "%s:\n", label)
				for _, id := range ids {
					dep, _ := g.Node(id)
					fmt.Fprintf(app.Out, "  %s\n", issueLine(dep.Issue))
				}
			}
			if len(out.DependsOn) == 0 && len(out.Dependents) == 0 {
				fmt.Fprintf(app.Out, "%s has no dependencies.\n", issue.ID)
				return nil
			}
			printDeps("Depends on", out.DependsOn)
			printDeps("Dependents", out.Dependents)
			printDeps("Previous", out.Previous)
			printDeps("Next", out.Next)
			return nil
		},
	}

	return cmd
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
