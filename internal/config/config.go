// Package config handles tasklanes configuration loading and defaults.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File names looked up inside the data directory, in order.
const (
	YAMLFile = "config.yaml"
	TOMLFile = "config.toml"
)

// Storage backends.
const (
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"
)

// Config represents the contents of .tasklanes/config.yaml (or config.toml).
type Config struct {
	Actor   string        `yaml:"actor" toml:"actor"`
	Project ProjectConfig `yaml:"project" toml:"project"`
	ID      IDConfig      `yaml:"id" toml:"id"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

type ProjectConfig struct {
	Name string `yaml:"name" toml:"name"`
}

type IDConfig struct {
	Prefix string `yaml:"prefix" toml:"prefix"`
	// Length is the minimum hash length. Zero lets it grow with the
	// number of issues.
	Length int `yaml:"length" toml:"length"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	// Path is relative to the data directory unless absolute.
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Actor:   "${USER}",
		Project: ProjectConfig{Name: "tasks"},
		ID:      IDConfig{Prefix: "tl-"},
		Storage: StorageConfig{Backend: BackendFilesystem},
		Log:     LogConfig{Level: "warn"},
	}
}

// Load reads the config file at path and applies defaults for missing
// fields. The format follows the file extension.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = Default().Project.Name
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFilesystem
	}
	return cfg, nil
}

// Write writes the provided configuration to path.
func Write(path string, cfg Config) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	return Write(path, Default())
}

// FilePath returns the config file inside dir: config.yaml if present,
// otherwise config.toml if present, otherwise config.yaml.
func FilePath(dir string) string {
	for _, name := range []string{YAMLFile, TOMLFile} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, YAMLFile)
}

// ResolveActor expands environment references such as ${USER}.
func (c Config) ResolveActor() string {
	actor := os.ExpandEnv(c.Actor)
	if actor == "" {
		return "unknown"
	}
	return actor
}

// StoragePath returns the sqlite database location for dataDir.
func (c Config) StoragePath(dataDir string) string {
	p := c.Storage.Path
	if p == "" {
		p = "tasklanes.db"
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
