package config

import "os"

// Environment variable names for tasklanes configuration.
const (
	EnvDir      = "TL_DIR"       // Path to .tasklanes directory
	EnvActor    = "TL_ACTOR"     // Override actor name
	EnvProject  = "TL_PROJECT"   // Override project name
	EnvLogLevel = "TL_LOG_LEVEL" // Override log level
	EnvBackend  = "TL_BACKEND"   // Override storage backend
)

// ApplyEnvOverrides overrides config values from TL_* environment
// variables. These overrides are not persisted to the config file.
func ApplyEnvOverrides(cfg *Config) {
	if actor := os.Getenv(EnvActor); actor != "" {
		cfg.Actor = actor
	}
	if project := os.Getenv(EnvProject); project != "" {
		cfg.Project.Name = project
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if backend := os.Getenv(EnvBackend); backend != "" {
		cfg.Storage.Backend = backend
	}
}
