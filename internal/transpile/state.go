package transpile

import (
	"github.com/hegza/serpent-cli/internal/driver"
	"github.com/hegza/serpent-cli/internal/manifest"
)

// Plan represents the files to materialize for a module
type Plan struct {
	Files []FileOp
	// Bin and Lib are the destination paths of the entry files, if any
	Bin string
	Lib string
}

// FileOp represents a file write
type FileOp struct {
	SourcePath string          // path reported by the driver
	DestPath   string          // translated and role-renamed output path
	Kind       driver.FileKind // entry role
	Content    string          // generated content, line-numbered if requested
}

// Report summarizes a finished run
type Report struct {
	// RemapFile is the remap file used, or "" when none was
	RemapFile string
	// Previewed is true when nothing was written
	Previewed bool
	// Written lists the files written, in order
	Written []string
	// Manifest is set only when a manifest was requested
	Manifest *manifest.Result
}
