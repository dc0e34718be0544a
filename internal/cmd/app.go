// Package cmd implements the tl command-line interface.
package cmd

import (
	"io"
	"log/slog"
	"os"

	"tasklanes/internal/config"
	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// App holds application state shared across commands.
type App struct {
	Service   *issueservice.Service
	Storage   issuestorage.IssueStore
	Config    config.Config
	ConfigDir string // path to .tasklanes directory
	Logger    *slog.Logger
	Out       io.Writer
	Err       io.Writer
	JSON      bool // output in JSON format

	// closeStore releases the storage backend, if it holds resources.
	closeStore func() error
}

// Close releases resources held by the storage backend.
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// SuccessColor returns s in green if stdout is a terminal,
// otherwise returns s unchanged.
func (a *App) SuccessColor(s string) string {
	if isTerminal(a.Out) {
		return successStyle.Render(s)
	}
	return s
}

// WarnColor returns s in orange if stdout is a terminal,
// otherwise returns s unchanged.
func (a *App) WarnColor(s string) string {
	if isTerminal(a.Out) {
		return warnStyle.Render(s)
	}
	return s
}
