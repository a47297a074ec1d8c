// Package steps prints the intermediate transpilation stages of a line: the
// source text, the source AST, the target AST and the generated target text.
package steps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/driver"
	"github.com/hegza/serpent-cli/internal/source"
	"github.com/hegza/serpent-cli/internal/target"
)

// Stage titles, in output order
const (
	titleSource    = "Python source"
	titleSourceAST = "Python AST"
	titleTargetAST = "Rust AST"
	titleTarget    = "Rust source"
)

// Request selects what to trace
type Request struct {
	Input target.Target
	// File picks a file inside a module input
	File string
	// Line is the 1-based line to trace
	Line int
	// Top traces whole files instead of one line
	Top bool
	// SourceExtension filters module files traced with Top
	SourceExtension string
}

// Validate checks the flag combination
func (r Request) Validate() error {
	switch {
	case r.Top && r.Line != 0:
		return clierr.Redundant("`--line` and `--top` cannot be combined")
	case !r.Top && r.Line <= 0:
		return clierr.Redundant("`--line` must be a positive line number unless `--top` is given")
	case r.Input.Kind == target.File && r.File != "":
		return clierr.Redundant("`--file` only makes sense with a module input")
	case r.Input.Kind == target.Module && r.File == "" && !r.Top:
		return clierr.Redundant("`--line` needs `--file` to pick a file of the module")
	}
	return nil
}

// Tracer prints transpilation stages
type Tracer struct {
	tracer driver.Tracer
	fs     afero.Fs
	out    io.Writer
	logger *slog.Logger
}

// NewTracer creates a Tracer printing to out
func NewTracer(tracer driver.Tracer, fs afero.Fs, out io.Writer, logger *slog.Logger) *Tracer {
	return &Tracer{
		tracer: tracer,
		fs:     fs,
		out:    out,
		logger: logger,
	}
}

// Run traces every file selected by req and prints the stages
func (t *Tracer) Run(ctx context.Context, req Request, opts driver.Options) error {
	if err := req.Validate(); err != nil {
		return err
	}

	files, err := t.resolve(req)
	if err != nil {
		return err
	}

	line := req.Line
	if req.Top {
		line = 0
	}

	for _, path := range files {
		t.logger.Debug("tracing", "file", path, "line", line)
		trace, err := t.tracer.TraceLine(ctx, path, line, opts)
		if err != nil {
			if clierr.KindOf(err) == "" {
				err = clierr.New(clierr.KindDriver, "failed to trace", path, err)
			}
			return err
		}
		if len(files) > 1 {
			_, _ = color.New(color.Bold).Fprintf(t.out, "%s:\n", path)
		}
		Render(t.out, trace)
	}
	return nil
}

// resolve returns the files to trace
func (t *Tracer) resolve(req Request) ([]string, error) {
	if req.Input.Kind == target.File {
		return []string{req.Input.Path}, nil
	}
	if req.File == "" {
		return t.sourceFiles(req.Input.Path, req.SourceExtension)
	}

	// As given first, then relative to the module root
	for _, candidate := range []string{req.File, filepath.Join(req.Input.Path, req.File)} {
		if _, err := target.RequireFile(t.fs, candidate); err == nil {
			return []string{candidate}, nil
		}
	}
	return nil, clierr.NotFound(req.File)
}

// sourceFiles lists the source files of a module in lexical order
func (t *Tracer) sourceFiles(root, ext string) ([]string, error) {
	files, err := source.Discover(t.fs, root, ext)
	if err != nil {
		return nil, clierr.IO("failed to list module", root, err)
	}
	if len(files) == 0 {
		return nil, clierr.New(clierr.KindNotFound, "no source files in module", root, nil)
	}
	return files, nil
}

// Render writes the four stages of trace to w
func Render(w io.Writer, trace driver.Trace) {
	title := color.New(color.Bold, color.FgCyan)
	stage := func(name, body string) {
		_, _ = title.Fprintf(w, "%s:\n", name)
		_, _ = fmt.Fprintf(w, "%s\n\n", strings.TrimRight(body, "\n"))
	}

	stage(titleSource, trace.Source)
	stage(titleSourceAST, spew.Sdump(trace.SourceAST))
	stage(titleTargetAST, spew.Sdump(trace.TargetAST))
	stage(titleTarget, trace.Target)
}
