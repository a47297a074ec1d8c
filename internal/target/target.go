package target

import (
	"os"

	"github.com/spf13/afero"

	"github.com/hegza/serpent-cli/internal/clierr"
)

// Kind is the kind of a transpile target
type Kind int

const (
	File Kind = iota
	Module
)

func (k Kind) String() string {
	if k == Module {
		return "module"
	}
	return "file"
}

// Target is a single file or a module directory to transpile, or the
// matching output location.
type Target struct {
	Kind Kind
	Path string
}

// IsDir returns true for module targets
func (t Target) IsDir() bool {
	return t.Kind == Module
}

// Output returns a target at path with the same kind as t. Output files
// do not need to exist yet.
func (t Target) Output(path string) Target {
	return Target{Kind: t.Kind, Path: path}
}

// Classify maps input to an existing file or module target. Existence and
// file system kind are the only criteria.
func Classify(fs afero.Fs, input string) (Target, error) {
	info, err := stat(fs, input)
	if err != nil {
		return Target{}, err
	}

	switch {
	case info.IsDir():
		return Target{Kind: Module, Path: input}, nil
	case info.Mode().IsRegular():
		return Target{Kind: File, Path: input}, nil
	default:
		return Target{}, clierr.New(clierr.KindWrongKind, "neither a file nor a directory:", input, nil)
	}
}

// RequireFile returns input if it names an existing regular file
func RequireFile(fs afero.Fs, input string) (string, error) {
	t, err := Classify(fs, input)
	if err != nil {
		return "", err
	}
	if t.Kind != File {
		return "", clierr.NotAFile(input)
	}
	return input, nil
}

// RequireDir returns input if it names an existing directory
func RequireDir(fs afero.Fs, input string) (string, error) {
	t, err := Classify(fs, input)
	if err != nil {
		return "", err
	}
	if t.Kind != Module {
		return "", clierr.NotADirectory(input)
	}
	return input, nil
}

// Exists returns true if path exists on fs
func Exists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, clierr.IO("failed to stat", path, err)
}

func stat(fs afero.Fs, input string) (os.FileInfo, error) {
	info, err := fs.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, clierr.NotFound(input)
		}
		return nil, clierr.IO("failed to stat", input, err)
	}
	return info, nil
}
