package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Limits on what the loader accepts. A bridge configuration is a handful of
// NATS settings and a group list, so anything near these is not a config.
const (
	maxConfigSize = 1 << 20 // bytes
	maxNesting    = 16      // tables, arrays and objects inside each other
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

// validateConfigPath rejects empty or oversized paths, unsupported
// extensions, and relative paths that climb out of the working directory.
// Absolute paths are taken as given, as /etc/magicportal/... is the usual
// deployment location.
func validateConfigPath(path string) error {
	switch {
	case path == "":
		return errors.New("empty config path")
	case len(path) > maxPathLen:
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	case !filepath.IsAbs(path) && !filepath.IsLocal(path):
		return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
	}

	_, err := formatForPath(path)
	return err
}

// readConfigFile reads a regular file of at most maxConfigSize bytes. The
// size and type are checked on the opened file, not the path.
func readConfigFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("config file grew past %d bytes while reading", maxConfigSize)
	}
	return data, nil
}

// validateEnvVar bounds MAGICPORTAL_* override values.
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// checkNesting walks a decoded document and fails once containers nest
// deeper than maxNesting. It runs after decoding so JSON, TOML and YAML get
// the same bound.
func checkNesting(doc map[string]any) error {
	return nestingOf(doc, 1)
}

func nestingOf(v any, depth int) error {
	var children []any
	switch node := v.(type) {
	case map[string]any:
		for _, child := range node {
			children = append(children, child)
		}
	case []any:
		children = node
	default:
		return nil
	}

	if depth > maxNesting {
		return fmt.Errorf("config nesting too deep: more than %d levels", maxNesting)
	}
	for _, child := range children {
		if err := nestingOf(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
