package cmd

import (
	"fmt"
	"io"
	"strings"

	"tasklanes/internal/graph"
	"tasklanes/internal/issuestorage"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// TaskGraphJSON is the JSON output of the graph command.
type TaskGraphJSON struct {
	TotalLanes int                 `json:"total_lanes"`
	Nodes      []TaskGraphNodeJSON `json:"nodes"`
}

// TaskGraphNodeJSON is one row of the layout.
type TaskGraphNodeJSON struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Status              string `json:"status"`
	Row                 int    `json:"row"`
	Lane                int    `json:"lane"`
	Actionable          bool   `json:"actionable"`
	ParentExecutionMode string `json:"parent_execution_mode,omitempty"`
}

// newGraphCmd creates the graph command.
func newGraphCmd(provider *AppProvider) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Draw remaining work as lanes",
		Long: `Draw the unfinished work bottom-up. Leaf work sits in lane 0 and each
parent appears after its children in a lane to their right. Children of a
series parent step one lane further per sibling; parallel children share
the parent's starting lane.

  ●  actionable now
  ○  waiting
  ✓  done (shown only as context)

Examples:
  tl graph
  tl graph --match login   # matching issues and their ancestors`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			tg, err := app.Service.TaskGraph(cmd.Context(), match)
			if err != nil {
				return err
			}

			if app.JSON {
				out := TaskGraphJSON{TotalLanes: tg.TotalLanes, Nodes: []TaskGraphNodeJSON{}}
				for _, n := range tg.Nodes {
					out.Nodes = append(out.Nodes, TaskGraphNodeJSON{
						ID:                  n.Issue.ID,
						Title:               n.Issue.Title.Value,
						Status:              string(n.Issue.Status.Value),
						Row:                 n.Row,
						Lane:                n.Lane,
						Actionable:          n.IsActionable,
						ParentExecutionMode: string(n.ParentExecutionMode),
					})
				}
				return writeJSON(app, out)
			}

			if len(tg.Nodes) == 0 {
				fmt.Fprintln(app.Out, "No open work.")
				return nil
			}
			renderTaskGraph(app.Out, tg, isTerminal(app.Out))
			return nil
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "Only issues whose ID or title contains this text, with their ancestors")

	return cmd
}

type graphStyles struct {
	actionable lipgloss.Style
	waiting    lipgloss.Style
	done       lipgloss.Style
	rail       lipgloss.Style
	id         lipgloss.Style
}

func newGraphStyles(color bool) graphStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return graphStyles{plain, plain, plain, plain, plain}
	}
	return graphStyles{
		actionable: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		waiting:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		done:       lipgloss.NewStyle().Faint(true),
		rail:       lipgloss.NewStyle().Faint(true),
		id:         lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

// renderTaskGraph writes one line per row: a gutter of TotalLanes columns
// with the node's marker in its lane, then the issue.
func renderTaskGraph(w io.Writer, tg *graph.TaskGraph, color bool) {
	st := newGraphStyles(color)
	for _, n := range tg.Nodes {
		var gutter strings.Builder
		for lane := 0; lane < tg.TotalLanes; lane++ {
			if lane == n.Lane {
				gutter.WriteString(marker(st, n))
			} else {
				gutter.WriteString(st.rail.Render("·"))
			}
			gutter.WriteString(" ")
		}

		mode := ""
		if n.ParentExecutionMode == issuestorage.ModeParallel {
			mode = " ∥"
		}
		fmt.Fprintf(w, "%s %s %s%s\n", gutter.String(), st.id.Render(n.Issue.ID), n.Issue.Title.Value, mode)
	}
}

func marker(st graphStyles, n graph.TaskGraphNode) string {
	switch {
	case n.IsActionable:
		return st.actionable.Render("●")
	case n.Issue.IsDone():
		return st.done.Render("✓")
	default:
		return st.waiting.Render("○")
	}
}
