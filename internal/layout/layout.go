package layout

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/driver"
)

// Options describes the output project layout
type Options struct {
	// SourceDir is the directory inside the output root holding translated files
	SourceDir string
	// SourceExtension is the extension of the input files, e.g. ".py"
	SourceExtension string
	// Extension is the extension of the translated files, e.g. ".rs"
	Extension string
	// LibraryEntry is the canonical library entry file name, e.g. lib.rs
	LibraryEntry string
	// BinaryEntry is the canonical binary entry file name, e.g. main.rs
	BinaryEntry string
}

// Translate maps a source file under sourceRoot to its output path under
// destRoot: the sourceRoot prefix is replaced by destRoot/SourceDir and the
// source extension by the target extension.
//
// For example pkg/sub/a.py from pkg to out becomes out/src/sub/a.rs.
//
// path not being a source file under sourceRoot is a broken invariant of
// the caller, reported as an internal error.
func Translate(path, sourceRoot, destRoot string, opts Options) (string, error) {
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil {
		return "", clierr.Internal(fmt.Sprintf("cannot translate %q from %q", path, sourceRoot), err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", clierr.Internal(fmt.Sprintf("%q is not inside %q", path, sourceRoot), nil)
	}
	if filepath.Ext(rel) != opts.SourceExtension {
		return "", clierr.Internal(fmt.Sprintf("%q is not a %s source file", path, opts.SourceExtension), nil)
	}

	translated := strings.TrimSuffix(rel, opts.SourceExtension) + opts.Extension
	return filepath.Join(destRoot, opts.SourceDir, translated), nil
}

// ApplyRole renames the file name component of path to the canonical entry
// name for kind. Plain files keep their translated name and the directory
// is never changed.
func ApplyRole(path string, kind driver.FileKind, opts Options) string {
	switch kind {
	case driver.LibraryEntry:
		return filepath.Join(filepath.Dir(path), opts.LibraryEntry)
	case driver.BinaryEntry:
		return filepath.Join(filepath.Dir(path), opts.BinaryEntry)
	default:
		return path
	}
}

// RelativePath returns target relative to baseDir using forward slashes, as
// written into the manifest.
func RelativePath(baseDir, target string) (string, error) {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return "", clierr.Internal("failed to compute relative path", err)
	}
	return filepath.ToSlash(rel), nil
}
