package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the data directory created by `tl init`.
const DirName = ".tasklanes"

// FindDir locates the .tasklanes directory.
// If path is provided, it is used directly; a path to a directory that
// contains .tasklanes resolves to that child. Otherwise TL_DIR is
// consulted, then the current directory and its parents are searched.
func FindDir(path string) (string, error) {
	if path == "" {
		path = os.Getenv(EnvDir)
	}
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("cannot access tasklanes directory %s: %w", path, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("tasklanes path is not a directory: %s", path)
		}
		if filepath.Base(path) != DirName {
			if child := filepath.Join(path, DirName); isDir(child) {
				return child, nil
			}
		}
		return path, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current directory: %w", err)
	}

	dir := cwd
	for {
		candidate := filepath.Join(dir, DirName)
		if isDir(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found (searched from %s to /)", DirName, cwd)
		}
		dir = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
