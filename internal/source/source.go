// Package source discovers the source files of a module directory.
package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// cacheDir holds interpreter byte code next to the sources
const cacheDir = "__pycache__"

// IsSourceFile returns true if path has the source extension ext
func IsSourceFile(path, ext string) bool {
	return ext != "" && filepath.Ext(path) == ext
}

// Discover finds all source files below dir in lexical order. Hidden files
// and directories (names starting with ".") and byte code caches are
// skipped.
func Discover(fs afero.Fs, dir, ext string) ([]string, error) {
	var files []string

	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if path != dir && (strings.HasPrefix(info.Name(), ".") || info.Name() == cacheDir) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode().IsRegular() && IsSourceFile(path, ext) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
