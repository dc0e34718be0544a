package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned by Get and Set for keys outside Keys().
var ErrUnknownKey = errors.New("unknown config key")

// validValues maps known keys to their allowed values.
// An empty slice means any string is accepted.
var validValues = map[string][]string{
	"actor":           {},
	"project.name":    {},
	"id.prefix":       {},
	"id.length":       {},
	"storage.backend": {BackendFilesystem, BackendSQLite},
	"storage.path":    {},
	"log.level":       {"debug", "info", "warn", "error"},
}

// Keys returns the known config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(validValues))
	for k := range validValues {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the string form of key.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "actor":
		return c.Actor, nil
	case "project.name":
		return c.Project.Name, nil
	case "id.prefix":
		return c.ID.Prefix, nil
	case "id.length":
		return strconv.Itoa(c.ID.Length), nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.path":
		return c.Storage.Path, nil
	case "log.level":
		return c.Log.Level, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set assigns value to key after checking it against the allowed values.
func (c *Config) Set(key, value string) error {
	if err := checkValue(key, value); err != nil {
		return err
	}
	switch key {
	case "actor":
		c.Actor = value
	case "project.name":
		c.Project.Name = value
	case "id.prefix":
		c.ID.Prefix = value
	case "id.length":
		c.ID.Length, _ = strconv.Atoi(value)
	case "storage.backend":
		c.Storage.Backend = value
	case "storage.path":
		c.Storage.Path = value
	case "log.level":
		c.Log.Level = value
	}
	return nil
}

// Validate checks every known key. It returns an error describing every
// invalid value found, or nil if all values are valid.
func (c Config) Validate() error {
	var errs []string
	for _, key := range Keys() {
		val, _ := c.Get(key)
		if err := checkValue(key, val); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

func checkValue(key, val string) error {
	allowed, ok := validValues[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if len(allowed) > 0 {
		if !slices.Contains(allowed, val) {
			return fmt.Errorf("%s: invalid value %q (allowed: %s)",
				key, val, strings.Join(allowed, ", "))
		}
		return nil
	}

	// Keys with no enumerated values have type-specific checks.
	switch key {
	case "id.length":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 || n > 8 {
			return fmt.Errorf("%s: must be an integer between 0 and 8, got %q", key, val)
		}
	case "project.name":
		if val == "" {
			return fmt.Errorf("%s: must not be empty", key)
		}
	}
	return nil
}
