package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"tasklanes/internal/config"
	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"
	"tasklanes/internal/issuestorage/filesystem"
	"tasklanes/internal/issuestorage/sqlite"

	"github.com/spf13/cobra"
)

// AppProvider lazily initializes the App on first use.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	DirPath    string
	JSONOutput bool
	Out        io.Writer
	Err        io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// Close releases the App if it was initialized.
func (p *AppProvider) Close() error {
	if p.app == nil {
		return nil
	}
	return p.app.Close()
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test App.
func NewTestProvider(app *App) *AppProvider {
	return &AppProvider{
		app: app,
		Out: app.Out,
		Err: app.Err,
	}
}

func (p *AppProvider) init() (*App, error) {
	dir, err := config.FindDir(p.DirPath)
	if err != nil {
		return nil, err
	}

	cfgPath := config.FilePath(dir)
	cfg, err := config.Load(cfgPath)
	if os.IsNotExist(err) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfgPath, err)
	}
	config.ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}
	logger := newLogger(errOut, cfg.Log.Level)

	store, closeStore, err := openStore(cfg, dir)
	if err != nil {
		return nil, err
	}

	return &App{
		Service: issueservice.New(store, issueservice.Options{
			Actor:    cfg.ResolveActor(),
			Prefix:   cfg.ID.Prefix,
			IDLength: cfg.ID.Length,
			Logger:   logger,
		}),
		Storage:    store,
		Config:     cfg,
		ConfigDir:  dir,
		Logger:     logger,
		Out:        out,
		Err:        errOut,
		JSON:       p.JSONOutput,
		closeStore: closeStore,
	}, nil
}

// openStore opens the configured backend inside dir and prepares it.
func openStore(cfg config.Config, dir string) (issuestorage.IssueStore, func() error, error) {
	var (
		store      issuestorage.IssueStore
		closeStore func() error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.StoragePath(dir))
		if err != nil {
			return nil, nil, err
		}
		store, closeStore = db, db.Close
	default:
		store = filesystem.New(dir)
	}
	if err := store.Init(context.Background()); err != nil {
		if closeStore != nil {
			_ = closeStore()
		}
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, closeStore, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Execute runs the CLI.
func Execute() error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}
	defer provider.Close()

	rootCmd := newRootCmd(provider)
	return rootCmd.Execute()
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tl",
		Short: "A file-backed issue tracker that schedules work in lanes",
		Long: `tasklanes keeps issues in .tasklanes/ next to your code.

Issues form a hierarchy: a parent waits on its children, and a parent's
execution mode decides whether the children run one after another (series)
or side by side (parallel). "tl next" lists what can be worked on now and
"tl graph" draws the remaining work as lanes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - these populate the provider config
	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&provider.DirPath, "path", "", "Path to repo or .tasklanes directory (default: search from cwd)")

	rootCmd.AddCommand(newInitCmd(provider))
	rootCmd.AddCommand(newCreateCmd(provider))
	rootCmd.AddCommand(newShowCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newUpdateCmd(provider))
	rootCmd.AddCommand(newCloseCmd(provider))
	rootCmd.AddCommand(newNextCmd(provider))
	rootCmd.AddCommand(newGraphCmd(provider))
	rootCmd.AddCommand(newDepCmd(provider))
	rootCmd.AddCommand(newValidateCmd(provider))
	rootCmd.AddCommand(newDoctorCmd(provider))
	rootCmd.AddCommand(newHistoryCmd(provider))
	rootCmd.AddCommand(newConfigCmd(provider))

	return rootCmd
}
