package cmd

import (
	"fmt"
	"os"

	"tasklanes/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCmd creates the config command with subcommands.
func newConfigCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage tasklanes configuration settings.

Keys are dotted paths into the config file (actor, project.name, id.prefix,
id.length, storage.backend, storage.path, log.level). Values shown by get
and list include TL_* environment overrides; set only writes the file.

Subcommands:
  get       Get a configuration value
  set       Set a configuration value
  list      List all configuration values`,
	}

	cmd.AddCommand(newConfigGetCmd(provider))
	cmd.AddCommand(newConfigSetCmd(provider))
	cmd.AddCommand(newConfigListCmd(provider))

	return cmd
}

// newConfigGetCmd creates the "config get" subcommand.
func newConfigGetCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get the effective value of a configuration key.

Examples:
  tl config get actor
  tl config get storage.backend`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			key := args[0]
			value, err := app.Config.Get(key)
			if err != nil {
				return err
			}

			if app.JSON {
				return writeJSON(app, map[string]string{"key": key, "value": value})
			}
			fmt.Fprintln(app.Out, value)
			return nil
		},
	}

	return cmd
}

// newConfigSetCmd creates the "config set" subcommand.
func newConfigSetCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration key to a value and rewrite the config file.

Examples:
  tl config set actor alice
  tl config set log.level debug
  tl config set storage.backend sqlite`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			path := config.FilePath(app.ConfigDir)

			// Start from the file, not app.Config, so env overrides are not persisted.
			cfg, err := config.Load(path)
			if os.IsNotExist(err) {
				cfg, err = config.Default(), nil
			}
			if err != nil {
				return err
			}
			if err := cfg.Set(key, value); err != nil {
				return fmt.Errorf("setting config: %w", err)
			}
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			_ = app.Config.Set(key, value)

			if app.JSON {
				return writeJSON(app, map[string]string{"key": key, "value": value})
			}
			fmt.Fprintf(app.Out, "Set %s = %s\n", key, value)
			return nil
		},
	}

	return cmd
}

// newConfigListCmd creates the "config list" subcommand.
func newConfigListCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration key-value pairs, sorted by key.

Examples:
  tl config list
  tl config list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			all := make(map[string]string)
			for _, key := range config.Keys() {
				all[key], _ = app.Config.Get(key)
			}

			if app.JSON {
				return writeJSON(app, all)
			}
			for _, key := range config.Keys() {
				fmt.Fprintf(app.Out, "%s = %s\n", key, all[key])
			}
			return nil
		},
	}

	return cmd
}
