// Package driver defines the capability the orchestrator uses to reach the
// transpiler engine. The engine itself is external: the pipeline only sees
// ordered TranspiledFile results tagged with an entry role.
package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// FileKind is the entry role of a transpiled file
type FileKind int

const (
	Plain FileKind = iota
	LibraryEntry
	BinaryEntry
)

func (k FileKind) String() string {
	switch k {
	case LibraryEntry:
		return "lib"
	case BinaryEntry:
		return "bin"
	default:
		return "plain"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k FileKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *FileKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "plain":
		*k = Plain
	case "lib", "library":
		*k = LibraryEntry
	case "bin", "binary", "main":
		*k = BinaryEntry
	default:
		return fmt.Errorf("unknown file kind %q", string(text))
	}
	return nil
}

// Source file names the engine treats as package entry points when it does
// not report a kind explicitly.
const (
	libraryEntrySource = "__init__.py"
	binaryEntrySource  = "__main__.py"
)

// KindFromSourceName infers the entry role of a file directly inside the
// module root from its name. Files in nested packages are always Plain.
// Both paths are compared in absolute form, so a relative root matches the
// absolute source paths an engine may report.
func KindFromSourceName(moduleRoot, path string) FileKind {
	if !sameDir(filepath.Dir(path), moduleRoot) {
		return Plain
	}
	switch filepath.Base(path) {
	case libraryEntrySource:
		return LibraryEntry
	case binaryEntrySource:
		return BinaryEntry
	}
	return Plain
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// TranspiledFile is one result from the engine
type TranspiledFile struct {
	SourcePath string   `json:"source_path"`
	Content    string   `json:"content"`
	Kind       FileKind `json:"kind"`
}

// Options is passed through to the engine on every call
type Options struct {
	// Remaps substitutes source module references
	Remaps map[string]string `json:"remaps,omitempty"`
	// Dependencies are the merged target dependencies, name -> version
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Driver transpiles a single file or a whole module tree
type Driver interface {
	// TranspileFile transpiles one source file
	TranspileFile(ctx context.Context, path string, opts Options) (TranspiledFile, error)
	// TranspileModule transpiles every file under the module directory. The
	// order of the results is the order they are materialized in.
	TranspileModule(ctx context.Context, path string, opts Options) ([]TranspiledFile, error)
}

// Trace holds the intermediate stages for one traced line
type Trace struct {
	Source    string `json:"source"`
	SourceAST any    `json:"source_ast"`
	TargetAST any    `json:"target_ast"`
	Target    string `json:"target"`
}

// Tracer resolves the transpilation steps for a line of a file. A line of 0
// traces the whole file.
type Tracer interface {
	TraceLine(ctx context.Context, path string, line int, opts Options) (Trace, error)
}
