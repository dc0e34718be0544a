package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasklanes/internal/config"
	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"
	"tasklanes/internal/issuestorage/filesystem"

	"github.com/spf13/cobra"
)

func setupTestApp(t *testing.T) (*App, *filesystem.FilesystemStorage) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), config.DirName)
	store := filesystem.New(dir)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := issueservice.New(store, issueservice.Options{
		Actor:  "tester",
		Prefix: "tl",
		Logger: slog.New(slog.DiscardHandler),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	return &App{
		Service:   svc,
		Storage:   store,
		Config:    config.Default(),
		ConfigDir: dir,
		Out:       &bytes.Buffer{},
		Err:       &bytes.Buffer{},
	}, store
}

// run executes the command built by newCmd with args and returns stdout.
func run(t *testing.T, app *App, newCmd func(*AppProvider) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := app.Out.(*bytes.Buffer)
	out.Reset()
	cmd := newCmd(NewTestProvider(app))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(app.Err)
	err := cmd.Execute()
	return out.String(), err
}

// mustRun is run that fails the test on error.
func mustRun(t *testing.T, app *App, newCmd func(*AppProvider) *cobra.Command, args ...string) string {
	t.Helper()
	out, err := run(t, app, newCmd, args...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return out
}

// extractCreatedID extracts the issue ID from create command output.
// The output format is:
//
//	✓ Created issue: tl-xxx
//	  Title: ...
func extractCreatedID(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if _, id, ok := strings.Cut(line, "Created issue:"); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// createIssue runs "create" with args and returns the new ID.
func createIssue(t *testing.T, app *App, args ...string) string {
	t.Helper()
	id := extractCreatedID(mustRun(t, app, newCreateCmd, args...))
	if id == "" {
		t.Fatalf("no id in create output for %v", args)
	}
	return id
}

func getIssue(t *testing.T, app *App, id string) *issuestorage.Issue {
	t.Helper()
	issue, err := app.Service.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return issue
}

func decodeJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return v
}
