package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hegza/serpent-cli/internal/clierr"
)

// ShellDriver implements Driver and Tracer by running an external engine
// command. Options are written to its stdin as JSON and results are read
// from its stdout as JSON.
//
//	<command> [args...] file <path>
//	<command> [args...] module <path>
//	<command> [args...] trace <path> --line <n>
type ShellDriver struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewShellDriver creates a driver that shells out to command
func NewShellDriver(command string, args []string, timeout time.Duration, logger *slog.Logger) *ShellDriver {
	return &ShellDriver{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger,
	}
}

// engineFile is a file as reported by the engine. Kind is nil when the
// engine left it out, which is the only case its entry role is inferred.
type engineFile struct {
	SourcePath string    `json:"source_path"`
	Content    string    `json:"content"`
	Kind       *FileKind `json:"kind"`
}

type moduleOutput struct {
	Files []engineFile `json:"files"`
}

// TranspileFile runs `<command> file <path>`
func (d *ShellDriver) TranspileFile(ctx context.Context, path string, opts Options) (TranspiledFile, error) {
	var out TranspiledFile
	if err := d.run(ctx, opts, &out, "file", path); err != nil {
		return TranspiledFile{}, err
	}
	if out.SourcePath == "" {
		out.SourcePath = path
	}
	return out, nil
}

// TranspileModule runs `<command> module <path>`
func (d *ShellDriver) TranspileModule(ctx context.Context, path string, opts Options) ([]TranspiledFile, error) {
	var out moduleOutput
	if err := d.run(ctx, opts, &out, "module", path); err != nil {
		return nil, err
	}

	files := make([]TranspiledFile, 0, len(out.Files))
	for i, f := range out.Files {
		if f.SourcePath == "" {
			return nil, clierr.New(clierr.KindDriver, fmt.Sprintf("engine returned file #%d without source_path for module", i), path, nil)
		}
		kind := KindFromSourceName(path, f.SourcePath)
		if f.Kind != nil {
			kind = *f.Kind
		}
		files = append(files, TranspiledFile{
			SourcePath: f.SourcePath,
			Content:    f.Content,
			Kind:       kind,
		})
	}
	return files, nil
}

// TraceLine runs `<command> trace <path> --line <n>`
func (d *ShellDriver) TraceLine(ctx context.Context, path string, line int, opts Options) (Trace, error) {
	var out Trace
	if err := d.run(ctx, opts, &out, "trace", path, "--line", strconv.Itoa(line)); err != nil {
		return Trace{}, err
	}
	return out, nil
}

func (d *ShellDriver) run(ctx context.Context, opts Options, out any, sub ...string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	input, err := json.Marshal(opts)
	if err != nil {
		return clierr.Internal("failed to encode driver options", err)
	}

	args := make([]string, 0, len(d.args)+len(sub))
	args = append(args, d.args...)
	args = append(args, sub...)

	cmd := exec.CommandContext(ctx, d.command, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.logger.Debug("running transpiler engine", "command", d.command, "args", args)
	if err := cmd.Run(); err != nil {
		return clierr.New(clierr.KindDriver,
			fmt.Sprintf("%s %s failed: %s", d.command, sub[0], strings.TrimSpace(stderr.String())),
			sub[1], err)
	}

	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return clierr.New(clierr.KindDriver, fmt.Sprintf("failed to decode %s output from %s", sub[0], d.command), sub[1], err)
	}
	return nil
}
