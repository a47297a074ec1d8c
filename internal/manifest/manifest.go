// Package manifest synthesizes the Cargo.toml of a transpiled module.
//
// A manifest is derived entirely from the output directory name, the merged
// dependency table and the entry roles found among the transpiled files:
//   - [package] always carries the authorship stamp and the edition marker
//   - [lib] is present only when a library entry was detected
//   - [[bin]] is present only when a binary entry was detected
//
// An existing manifest is either replaced as a whole or left untouched; it
// is never merged.
package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/layout"
)

const (
	filePerm       = 0o644
	initialVersion = "0.1.0"
)

var packageName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Options configures the fixed parts of a manifest
type Options struct {
	FileName string
	Authors  []string
	Edition  string
}

// Target is a [lib] or [[bin]] entry
type Target struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Package is the [package] table
type Package struct {
	Name    string   `toml:"name"`
	Version string   `toml:"version"`
	Authors []string `toml:"authors"`
	Edition string   `toml:"edition"`
}

// Spec is a synthesized manifest
type Spec struct {
	Package      Package           `toml:"package"`
	Dependencies map[string]string `toml:"dependencies,omitempty"`
	Lib          *Target           `toml:"lib,omitempty"`
	Bin          []Target          `toml:"bin,omitempty"`
}

// Build synthesizes the manifest for the module rooted at root. bin and lib
// are the paths of the detected entry files, or "" when absent.
func Build(root string, deps map[string]string, bin, lib string, opts Options) (*Spec, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, clierr.New(clierr.KindManifest, "cannot resolve manifest root", root, err)
	}

	name := stem(abs)
	if !packageName.MatchString(name) {
		return nil, clierr.New(clierr.KindManifest, fmt.Sprintf("invalid package name %q derived from", name), root, nil)
	}

	spec := &Spec{
		Package: Package{
			Name:    name,
			Version: initialVersion,
			Authors: opts.Authors,
			Edition: opts.Edition,
		},
		Dependencies: deps,
	}

	if lib != "" {
		t, err := newTarget(root, lib)
		if err != nil {
			return nil, err
		}
		spec.Lib = &t
	}
	if bin != "" {
		t, err := newTarget(root, bin)
		if err != nil {
			return nil, err
		}
		spec.Bin = []Target{t}
	}

	return spec, nil
}

func newTarget(root, path string) (Target, error) {
	rel, err := layout.RelativePath(root, path)
	if err != nil {
		return Target{}, clierr.New(clierr.KindManifest, "cannot place target", path, err)
	}
	if strings.HasPrefix(rel, "../") {
		return Target{}, clierr.New(clierr.KindManifest, "target is outside the manifest root:", path, nil)
	}
	return Target{Name: stem(path), Path: rel}, nil
}

// Marshal renders the manifest as TOML. Output is deterministic for equal
// specs.
func (s *Spec) Marshal() ([]byte, error) {
	data, err := toml.Marshal(s)
	if err != nil {
		return nil, clierr.New(clierr.KindManifest, "failed to encode manifest for package", s.Package.Name, err)
	}
	return data, nil
}

// Result tells what Write did
type Result int

const (
	Created Result = iota
	Regenerated
	Skipped
)

func (r Result) String() string {
	switch r {
	case Regenerated:
		return "regenerated"
	case Skipped:
		return "skipped"
	default:
		return "created"
	}
}

// Write writes spec into root. An existing manifest is deleted and
// regenerated when overwrite is set and left as is otherwise.
func Write(fs afero.Fs, root string, spec *Spec, opts Options, overwrite bool, logger *slog.Logger) (Result, error) {
	path := filepath.Join(root, opts.FileName)

	result := Created
	_, err := fs.Stat(path)
	switch {
	case err == nil && !overwrite:
		logger.Info("manifest already exists, skipping because overwrite is off", "path", path)
		return Skipped, nil
	case err == nil:
		logger.Info("manifest already exists, deleting previous", "path", path)
		if err := fs.Remove(path); err != nil {
			return 0, clierr.New(clierr.KindManifest, "failed to delete previous manifest", path, err)
		}
		result = Regenerated
	case !os.IsNotExist(err):
		return 0, clierr.New(clierr.KindManifest, "failed to stat manifest", path, err)
	}

	data, err := spec.Marshal()
	if err != nil {
		return 0, err
	}

	logger.Info("writing manifest", "path", path)
	if err := afero.WriteFile(fs, path, data, filePerm); err != nil {
		return 0, clierr.New(clierr.KindManifest, "failed to write manifest", path, err)
	}
	return result, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
