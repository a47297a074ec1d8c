package transpile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/config"
	"github.com/hegza/serpent-cli/internal/driver"
	"github.com/hegza/serpent-cli/internal/layout"
	"github.com/hegza/serpent-cli/internal/lines"
	"github.com/hegza/serpent-cli/internal/manifest"
	"github.com/hegza/serpent-cli/internal/remap"
	"github.com/hegza/serpent-cli/internal/target"
)

// File permission constants.
const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// ManifestMode selects whether a manifest is synthesized
type ManifestMode int

const (
	// ManifestDefault emits no manifest
	ManifestDefault ManifestMode = iota
	ManifestEmit
	ManifestOmit
)

// Request describes one transpilation run
type Request struct {
	Input target.Target
	// Output is nil for a preview run
	Output      *target.Target
	LineNumbers bool
	Manifest    ManifestMode
	// KeepManifest leaves an existing manifest untouched
	KeepManifest bool
	Remap        remap.LocateOptions
}

// Validate rejects inconsistent flag combinations before anything is read
// or written.
func (r Request) Validate() error {
	if r.Output != nil && r.Output.Kind != r.Input.Kind {
		return clierr.New(clierr.KindWrongKind,
			fmt.Sprintf("output of a %s must also be a %s:", r.Input.Kind, r.Input.Kind), r.Output.Path, nil)
	}

	switch r.Manifest {
	case ManifestEmit:
		if r.Input.Kind != target.Module || r.Output == nil {
			return clierr.Redundant("`emit-manifest` only makes sense when transpiling an input module into an output directory")
		}
	case ManifestOmit:
		if r.Input.Kind != target.Module {
			return clierr.Redundant("`omit-manifest` only makes sense when transpiling an input module")
		}
	}
	return nil
}

// Engine orchestrates the transpile process
type Engine struct {
	cfg     *config.Config
	driver  driver.Driver
	fs      afero.Fs
	preview io.Writer
	logger  *slog.Logger
}

// NewEngine creates a new transpile engine. Preview output goes to preview.
func NewEngine(cfg *config.Config, drv driver.Driver, fs afero.Fs, preview io.Writer, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		driver:  drv,
		fs:      fs,
		preview: preview,
		logger:  logger,
	}
}

// Run executes the complete pipeline for req. The first error stops the
// run; files written before it are left in place.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e.logger.Debug("resolved input", "input", req.Input.Path, "kind", req.Input.Kind)

	report := &Report{}
	opts, err := e.loadRemap(req, report)
	if err != nil {
		return nil, err
	}

	switch req.Input.Kind {
	case target.File:
		err = e.runFile(ctx, req, opts, report)
	case target.Module:
		err = e.runModule(ctx, req, opts, report)
	default:
		err = clierr.Internal(fmt.Sprintf("unknown target kind %d", req.Input.Kind), nil)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("transpilation done", "input", req.Input.Path, "written", len(report.Written))
	return report, nil
}

// loadRemap finds and loads the remap file and merges its dependencies over
// the configured defaults.
func (e *Engine) loadRemap(req Request, report *Report) (driver.Options, error) {
	locate := req.Remap
	if locate.FileName == "" {
		locate.FileName = e.cfg.Remap.FileName
	}

	rc, err := remap.Resolve(e.fs, locate, req.Input, e.logger)
	if err != nil {
		return driver.Options{}, err
	}
	report.RemapFile = rc.Path

	return driver.Options{
		Remaps:       rc.Remaps,
		Dependencies: rc.MergeDependencies(e.cfg.Manifest.Dependencies),
	}, nil
}

func (e *Engine) runFile(ctx context.Context, req Request, opts driver.Options, report *Report) error {
	out, err := e.driver.TranspileFile(ctx, req.Input.Path, opts)
	if err != nil {
		return driverError(req.Input.Path, err)
	}
	e.logger.Debug("driven", "input", req.Input.Path)

	content := e.postProcess(out.Content, req.LineNumbers)

	if req.Output == nil {
		e.previewFile(req.Input.Path, "", content)
		report.Previewed = true
		return nil
	}

	if err := e.writeFile(req.Output.Path, content); err != nil {
		return err
	}
	e.logger.Info("transpiled", "source", req.Input.Path, "dest", req.Output.Path)
	report.Written = append(report.Written, req.Output.Path)
	return nil
}

func (e *Engine) runModule(ctx context.Context, req Request, opts driver.Options, report *Report) error {
	files, err := e.driver.TranspileModule(ctx, req.Input.Path, opts)
	if err != nil {
		return driverError(req.Input.Path, err)
	}
	e.logger.Debug("driven", "input", req.Input.Path, "files", len(files))

	for i := range files {
		files[i].Content = e.postProcess(files[i].Content, req.LineNumbers)
	}

	// Output in terminal
	if req.Output == nil {
		for _, f := range files {
			e.previewFile(f.SourcePath, req.Input.Path, f.Content)
		}
		report.Previewed = true
		return nil
	}

	plan, err := e.buildPlan(req.Input.Path, req.Output.Path, files)
	if err != nil {
		return err
	}
	e.logger.Debug("translated", "files", len(plan.Files), "bin", plan.Bin, "lib", plan.Lib)

	if err := e.applyPlan(req.Output.Path, plan, report); err != nil {
		return err
	}

	if req.Manifest != ManifestEmit {
		return nil
	}

	spec, err := manifest.Build(req.Output.Path, opts.Dependencies, plan.Bin, plan.Lib, e.manifestOptions())
	if err != nil {
		return err
	}
	result, err := manifest.Write(e.fs, req.Output.Path, spec, e.manifestOptions(), !req.KeepManifest, e.logger)
	if err != nil {
		return err
	}
	report.Manifest = &result
	return nil
}

// buildPlan translates every source path and applies entry roles. Nothing
// is written, so a rejected plan leaves the destination untouched.
func (e *Engine) buildPlan(sourceRoot, destRoot string, files []driver.TranspiledFile) (*Plan, error) {
	opts := e.layoutOptions()
	plan := &Plan{Files: make([]FileOp, 0, len(files))}

	entrySource := make(map[driver.FileKind]string)
	destSource := make(map[string]string, len(files))

	for _, f := range files {
		root := sourceRoot
		if filepath.IsAbs(f.SourcePath) && !filepath.IsAbs(root) {
			abs, err := filepath.Abs(root)
			if err != nil {
				return nil, clierr.IO("failed to resolve", root, err)
			}
			root = abs
		}

		dest, err := layout.Translate(f.SourcePath, root, destRoot, opts)
		if err != nil {
			return nil, err
		}
		dest = layout.ApplyRole(dest, f.Kind, opts)

		if f.Kind != driver.Plain {
			if prev, dup := entrySource[f.Kind]; dup {
				return nil, clierr.Redundant(fmt.Sprintf("both %q and %q are %s entries of one module", prev, f.SourcePath, f.Kind))
			}
			entrySource[f.Kind] = f.SourcePath
		}
		if prev, dup := destSource[dest]; dup {
			return nil, clierr.Redundant(fmt.Sprintf("%q and %q would both be written to %q", prev, f.SourcePath, dest))
		}
		destSource[dest] = f.SourcePath

		switch f.Kind {
		case driver.LibraryEntry:
			plan.Lib = dest
		case driver.BinaryEntry:
			plan.Bin = dest
		}

		plan.Files = append(plan.Files, FileOp{
			SourcePath: f.SourcePath,
			DestPath:   dest,
			Kind:       f.Kind,
			Content:    f.Content,
		})
	}

	return plan, nil
}

// applyPlan creates the output directories and writes every file
func (e *Engine) applyPlan(destRoot string, plan *Plan, report *Report) error {
	srcDir := filepath.Join(destRoot, e.cfg.Output.SourceDir)
	if err := e.fs.MkdirAll(srcDir, dirPerm); err != nil {
		return clierr.IO("failed to create output directory", srcDir, err)
	}

	for _, op := range plan.Files {
		if dir := filepath.Dir(op.DestPath); dir != srcDir {
			if err := e.fs.MkdirAll(dir, dirPerm); err != nil {
				return clierr.IO("failed to create output directory", dir, err)
			}
		}
		if err := e.writeFile(op.DestPath, op.Content); err != nil {
			return err
		}
		e.logger.Info("transpiled", "source", op.SourcePath, "dest", op.DestPath, "kind", op.Kind)
		report.Written = append(report.Written, op.DestPath)
	}

	return nil
}

// writeFile creates or truncates path and writes content
func (e *Engine) writeFile(path, content string) error {
	f, err := e.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return clierr.IO("failed to create", path, err)
	}

	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		return clierr.IO("failed to write", path, err)
	}
	if err := f.Close(); err != nil {
		return clierr.IO("failed to close", path, err)
	}
	return nil
}

func (e *Engine) postProcess(content string, lineNumbers bool) string {
	if lineNumbers {
		return lines.Number(content)
	}
	return content
}

// previewFile prints one transpiled file instead of writing it
func (e *Engine) previewFile(source, module, content string) {
	heading := color.New(color.Bold)
	if module == "" {
		_, _ = heading.Fprintf(e.preview, "Transpile result for %q:\n", source)
	} else {
		_, _ = heading.Fprintf(e.preview, "Transpile result for %q in %q:\n", module, source)
	}
	_, _ = fmt.Fprintf(e.preview, "```\n%s\n```\n", content)
}

func (e *Engine) layoutOptions() layout.Options {
	return layout.Options{
		SourceDir:       e.cfg.Output.SourceDir,
		SourceExtension: e.cfg.Output.SourceExtension,
		Extension:       e.cfg.Output.Extension,
		LibraryEntry:    e.cfg.Output.LibraryEntry,
		BinaryEntry:     e.cfg.Output.BinaryEntry,
	}
}

func (e *Engine) manifestOptions() manifest.Options {
	return manifest.Options{
		FileName: e.cfg.Manifest.FileName,
		Authors:  e.cfg.Manifest.Authors,
		Edition:  e.cfg.Manifest.Edition,
	}
}

// driverError classifies an unclassified driver failure
func driverError(path string, err error) error {
	if clierr.KindOf(err) != "" {
		return err
	}
	return clierr.New(clierr.KindDriver, "transpiler failed for", path, err)
}
