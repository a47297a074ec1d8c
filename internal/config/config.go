package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the Python to Rust transpilation layout
const (
	DefaultCommand         = "serpent-engine"
	DefaultSourceDir       = "src"
	DefaultExtension       = ".rs"
	DefaultSourceExtension = ".py"
	DefaultLibraryEntry    = "lib.rs"
	DefaultBinaryEntry     = "main.rs"
	DefaultManifestName    = "Cargo.toml"
	DefaultAuthor          = "automatically transpiled by serpent"
	DefaultEdition         = "2018"
	DefaultRemapFileName   = "Remap.toml"
	DefaultDriverTimeout   = 2 * time.Minute
)

// Config represents the complete serpent configuration
type Config struct {
	Driver   DriverConfig   `yaml:"driver"`
	Output   OutputConfig   `yaml:"output"`
	Manifest ManifestConfig `yaml:"manifest"`
	Remap    RemapConfig    `yaml:"remap"`
}

// DriverConfig configures the external transpiler engine
type DriverConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// OutputConfig configures the layout of a transpiled module
type OutputConfig struct {
	SourceDir       string `yaml:"source_dir"`
	Extension       string `yaml:"extension"`
	SourceExtension string `yaml:"source_extension"`
	LibraryEntry    string `yaml:"library_entry"`
	BinaryEntry     string `yaml:"binary_entry"`
}

// ManifestConfig configures manifest synthesis
type ManifestConfig struct {
	FileName     string            `yaml:"file_name"`
	Authors      []string          `yaml:"authors"`
	Edition      string            `yaml:"edition"`
	Dependencies map[string]string `yaml:"dependencies"`
}

// RemapConfig configures remap file auto-detection
type RemapConfig struct {
	FileName string `yaml:"file_name"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse parses YAML data into a validated Config
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Driver.Command = os.ExpandEnv(c.Driver.Command)
	for i, arg := range c.Driver.Args {
		c.Driver.Args[i] = os.ExpandEnv(arg)
	}
	c.Output.SourceDir = os.ExpandEnv(c.Output.SourceDir)
	c.Remap.FileName = os.ExpandEnv(c.Remap.FileName)
	c.Manifest.FileName = os.ExpandEnv(c.Manifest.FileName)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Driver.Command == "" {
		c.Driver.Command = DefaultCommand
	}
	if c.Driver.Timeout == 0 {
		c.Driver.Timeout = DefaultDriverTimeout
	}
	if c.Output.SourceDir == "" {
		c.Output.SourceDir = DefaultSourceDir
	}
	if c.Output.Extension == "" {
		c.Output.Extension = DefaultExtension
	}
	if c.Output.SourceExtension == "" {
		c.Output.SourceExtension = DefaultSourceExtension
	}
	if c.Output.LibraryEntry == "" {
		c.Output.LibraryEntry = DefaultLibraryEntry
	}
	if c.Output.BinaryEntry == "" {
		c.Output.BinaryEntry = DefaultBinaryEntry
	}
	if c.Manifest.FileName == "" {
		c.Manifest.FileName = DefaultManifestName
	}
	if len(c.Manifest.Authors) == 0 {
		c.Manifest.Authors = []string{DefaultAuthor}
	}
	if c.Manifest.Edition == "" {
		c.Manifest.Edition = DefaultEdition
	}
	if c.Remap.FileName == "" {
		c.Remap.FileName = DefaultRemapFileName
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Driver.Command) == "" {
		return fmt.Errorf("driver.command is required")
	}
	if c.Driver.Timeout < 0 {
		return fmt.Errorf("driver.timeout must not be negative: %s", c.Driver.Timeout)
	}

	// Validate output layout
	if filepath.IsAbs(c.Output.SourceDir) {
		return fmt.Errorf("output.source_dir must be a relative path: %s", c.Output.SourceDir)
	}
	if clean := filepath.Clean(c.Output.SourceDir); clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output.source_dir must stay inside the output directory: %s", c.Output.SourceDir)
	}
	for name, ext := range map[string]string{
		"output.extension":        c.Output.Extension,
		"output.source_extension": c.Output.SourceExtension,
	} {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%s must start with a dot: %q", name, ext)
		}
	}
	for name, entry := range map[string]string{
		"output.library_entry": c.Output.LibraryEntry,
		"output.binary_entry":  c.Output.BinaryEntry,
	} {
		if filepath.Base(entry) != entry {
			return fmt.Errorf("%s must be a file name, not a path: %s", name, entry)
		}
		if filepath.Ext(entry) != c.Output.Extension {
			return fmt.Errorf("%s must use the %s extension: %s", name, c.Output.Extension, entry)
		}
	}
	if c.Output.LibraryEntry == c.Output.BinaryEntry {
		return fmt.Errorf("output.library_entry and output.binary_entry must differ: %s", c.Output.LibraryEntry)
	}

	// Validate manifest and remap file names
	if filepath.Base(c.Manifest.FileName) != c.Manifest.FileName {
		return fmt.Errorf("manifest.file_name must be a file name, not a path: %s", c.Manifest.FileName)
	}
	if filepath.Base(c.Remap.FileName) != c.Remap.FileName {
		return fmt.Errorf("remap.file_name must be a file name, not a path: %s", c.Remap.FileName)
	}
	for name, version := range c.Manifest.Dependencies {
		if strings.TrimSpace(version) == "" {
			return fmt.Errorf("manifest.dependencies.%s has an empty version", name)
		}
	}

	return nil
}

// DefaultPath returns $HOME/.config/serpent/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "serpent", "config.yaml"), nil
}
