package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tasklanes/internal/config"
	"tasklanes/internal/idgen"

	"github.com/spf13/cobra"
)

type initOptions struct {
	force   bool
	project string
	prefix  string
	backend string
	format  string
}

// newInitCmd creates the init command.
// Note: init doesn't use the provider's App since it creates the .tasklanes directory.
func newInitCmd(provider *AppProvider) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new tasklanes repository",
		Long: `Initialize a new tasklanes repository in the current directory.

The location can be overridden with --path or the TL_DIR environment variable.

Examples:
  tl init
  tl init --prefix web --backend sqlite
  tl init --format toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := provider.Out
			if out == nil {
				out = os.Stdout
			}
			base := provider.DirPath
			if base == "" {
				base = os.Getenv(config.EnvDir)
			}
			return runInit(out, base, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Force initialization even if .tasklanes exists")
	cmd.Flags().StringVar(&opts.project, "project", "tasks", "Project name")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "tl", "ID prefix for issues (e.g. 'web')")
	cmd.Flags().StringVar(&opts.backend, "backend", config.BackendFilesystem, "Storage backend (filesystem, sqlite)")
	cmd.Flags().StringVar(&opts.format, "format", "yaml", "Config file format (yaml, toml)")

	return cmd
}

func runInit(out io.Writer, base string, opts initOptions) error {
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		base = cwd
	}
	absPath, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	dir := absPath
	if filepath.Base(dir) != config.DirName {
		dir = filepath.Join(absPath, config.DirName)
	}

	if _, err := os.Stat(dir); err == nil {
		if !opts.force {
			return errors.New("tasklanes repository already exists (use --force to reinitialize)")
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %s: %w", dir, err)
	}

	var cfgFile string
	switch opts.format {
	case "yaml", "yml":
		cfgFile = config.YAMLFile
	case "toml":
		cfgFile = config.TOMLFile
	default:
		return fmt.Errorf("invalid format %q: must be yaml or toml", opts.format)
	}

	cfg := config.Default()
	if err := cfg.Set("project.name", opts.project); err != nil {
		return err
	}
	if err := cfg.Set("storage.backend", opts.backend); err != nil {
		return err
	}
	cfg.ID.Prefix = idgen.NormalizePrefix(opts.prefix)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := config.Write(filepath.Join(dir, cfgFile), cfg); err != nil {
		return err
	}

	// Opening the store creates the shard files or the schema.
	_, closeStore, err := openStore(cfg, dir)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	fmt.Fprintf(out, "Initialized tasklanes repository at %s\n", dir)
	return nil
}
