// Package remap locates and parses the remap file, a TOML document that
// supplies the target dependencies and source module substitutions for a
// transpilation:
//
//	[dependencies]
//	ndarray = "0.15"
//
//	numpy = "ndarray"
//
// The `dependencies` table is mandatory. Every other top-level key is a
// module remap.
package remap

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/target"
)

const dependenciesKey = "dependencies"

// Config is the parsed content of a remap file
type Config struct {
	// Path is the file the config was loaded from
	Path         string
	Dependencies map[string]string
	Remaps       map[string]string
}

// LocateOptions selects how the remap file is found
type LocateOptions struct {
	// Explicit is a user-supplied path. It wins outright and must exist.
	Explicit string
	// Disabled turns auto-detection off
	Disabled bool
	// FileName is the conventional name searched for, e.g. Remap.toml
	FileName string
}

// Locate returns the remap file to use for t, or "" when none applies.
//
// Search order: the explicit path; then the target's own directory (the
// module root, or the parent directory of a file); then, for modules only,
// the parent of the module directory.
func Locate(fs afero.Fs, opts LocateOptions, t target.Target, logger *slog.Logger) (string, error) {
	if opts.Explicit != "" {
		if _, err := target.RequireFile(fs, opts.Explicit); err != nil {
			return "", fmt.Errorf("remap file: %w", err)
		}
		return opts.Explicit, nil
	}
	if opts.Disabled {
		logger.Debug("remap auto-detection disabled")
		return "", nil
	}

	var dirs []string
	switch t.Kind {
	case target.File:
		dirs = append(dirs, filepath.Dir(t.Path))
	case target.Module:
		dirs = append(dirs, t.Path)
		// "." and other relative roots have no lexical parent
		abs, err := filepath.Abs(t.Path)
		if err != nil {
			return "", clierr.IO("failed to resolve", t.Path, err)
		}
		if parent := filepath.Dir(abs); parent != abs {
			dirs = append(dirs, parent)
		}
	}

	for _, dir := range dirs {
		found, err := detect(fs, opts.FileName, dir)
		if err != nil {
			return "", err
		}
		if found != "" {
			return found, nil
		}
	}
	return "", nil
}

// detect returns the path of lookFor inside dir if it exists
func detect(fs afero.Fs, lookFor, dir string) (string, error) {
	if _, err := target.RequireDir(fs, dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, lookFor)
	ok, err := target.Exists(fs, path)
	if err != nil || !ok {
		return "", err
	}
	return path, nil
}

// Load reads and parses the remap file at path
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, clierr.IO("failed to read remap file", path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses remap file content. path is only used in error messages.
func Parse(path string, data []byte) (*Config, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, clierr.New(clierr.KindConfigContent,
				fmt.Sprintf("malformed TOML at line %d, column %d in", row, col), path, err)
		}
		return nil, clierr.New(clierr.KindConfigContent, "malformed TOML in", path, err)
	}

	rawDeps, ok := doc[dependenciesKey]
	if !ok {
		return nil, clierr.Content(path, dependenciesKey, nil, "table")
	}
	depTable, ok := rawDeps.(map[string]any)
	if !ok {
		return nil, clierr.Content(path, dependenciesKey, rawDeps, "table")
	}

	cfg := &Config{
		Path:         path,
		Dependencies: make(map[string]string, len(depTable)),
		Remaps:       make(map[string]string, len(doc)-1),
	}

	for _, name := range sortedKeys(depTable) {
		version, ok := depTable[name].(string)
		if !ok {
			return nil, clierr.Content(path, dependenciesKey+"."+name, depTable[name], "string")
		}
		cfg.Dependencies[name] = version
	}

	delete(doc, dependenciesKey)
	for _, from := range sortedKeys(doc) {
		to, ok := doc[from].(string)
		if !ok {
			return nil, clierr.Content(path, from, doc[from], "string")
		}
		cfg.Remaps[from] = to
	}

	return cfg, nil
}

// Resolve locates and loads the remap file for t. When no remap file
// applies it returns an empty Config with no Path.
func Resolve(fs afero.Fs, opts LocateOptions, t target.Target, logger *slog.Logger) (*Config, error) {
	path, err := Locate(fs, opts, t, logger)
	if err != nil {
		return nil, err
	}
	if path == "" {
		logger.Info("not using a remap file")
		return &Config{}, nil
	}

	logger.Info("using remap file", "remap_file", path)
	return Load(fs, path)
}

// MergeDependencies returns base overlaid with the remap file's
// dependencies. Entries from the remap file win.
func (c *Config) MergeDependencies(base map[string]string) map[string]string {
	merged := make(map[string]string, len(base))
	for name, version := range base {
		merged[name] = version
	}
	if c == nil {
		return merged
	}
	for name, version := range c.Dependencies {
		merged[name] = version
	}
	return merged
}

// sortedKeys keeps error reporting deterministic
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
