package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/config"
	"github.com/hegza/serpent-cli/internal/driver"
	"github.com/hegza/serpent-cli/internal/remap"
	"github.com/hegza/serpent-cli/internal/steps"
	"github.com/hegza/serpent-cli/internal/target"
	"github.com/hegza/serpent-cli/internal/transpile"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	quiet     int
	verbose   int

	// Transpile command flags
	lineNumbers  bool
	outputPath   string
	omitManifest bool
	emitManifest bool
	keepManifest bool
	remapFile    string
	noRemap      bool

	// Steps command flags
	stepsFile string
	stepsLine int
	stepsTop  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "serpent",
		Short: "Transpile Python files and modules into Rust",
		Long: `serpent drives a Python to Rust transpiler engine over a single file or a
whole module directory.

Transpiled modules are laid out as a Rust project: translated files go under
src/, package entry points become lib.rs and main.rs, and a Cargo.toml can be
synthesized from the dependencies declared in a Remap.toml next to the module.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadDotenv,
	}

	transpileCmd := &cobra.Command{
		Use:     "transpile <INPUT>",
		Aliases: []string{"tp"},
		Short:   "Transpile a file or a module",
		Long: `Transpile INPUT, which is a Python file or a module directory.

Without --output the result is printed to standard output and nothing is
written. With --output a file is written to the given path, or a module is
materialized into the given directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runTranspile,
	}

	stepsCmd := &cobra.Command{
		Use:   "steps <INPUT>",
		Short: "Show the transpilation steps for a line",
		Long: `Steps shows the intermediate stages of transpiling a line of INPUT: the
Python source, the Python AST, the Rust AST and the Rust source.

When INPUT is a module, --file picks the file to trace, either as given or
relative to the module root.`,
		Args: cobra.ExactArgs(1),
		RunE: runSteps,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "serpent %s\n", version)
			_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
			_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/serpent/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().CountVarP(&quiet, "quiet", "q", "only log errors, twice to silence logging")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "log debug output")

	// Transpile command flags
	transpileCmd.Flags().BoolVarP(&lineNumbers, "lines", "l", false, "prefix every output line with its line number")
	transpileCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the result to this file or directory")
	transpileCmd.Flags().BoolVar(&omitManifest, "omit-manifest", false, "do not create a Cargo.toml for a module")
	transpileCmd.Flags().BoolVar(&emitManifest, "emit-manifest", false, "create a Cargo.toml in the output directory")
	transpileCmd.Flags().BoolVar(&keepManifest, "keep-manifest", false, "leave an existing Cargo.toml untouched")
	transpileCmd.Flags().StringVarP(&remapFile, "remap-file", "m", "", "use this remap file instead of detecting Remap.toml")
	transpileCmd.Flags().BoolVar(&noRemap, "no-remap", false, "do not detect a remap file")
	transpileCmd.MarkFlagsMutuallyExclusive("omit-manifest", "emit-manifest")
	transpileCmd.MarkFlagsMutuallyExclusive("remap-file", "no-remap")

	// Steps command flags
	stepsCmd.Flags().StringVarP(&stepsFile, "file", "f", "", "file of the INPUT module to trace")
	stepsCmd.Flags().IntVarP(&stepsLine, "line", "l", 0, "show steps for this line")
	stepsCmd.Flags().BoolVar(&stepsTop, "top", false, "show steps for whole files")
	stepsCmd.MarkFlagsOneRequired("line", "top")
	stepsCmd.MarkFlagsMutuallyExclusive("line", "top")

	// Add commands
	rootCmd.AddCommand(transpileCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func loadDotenv(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func runTranspile(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger(cmd.ErrOrStderr())

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := afero.NewOsFs()
	input, err := target.Classify(fs, args[0])
	if err != nil {
		return err
	}

	req := transpile.Request{
		Input:        input,
		LineNumbers:  lineNumbers,
		KeepManifest: keepManifest,
		Remap: remap.LocateOptions{
			Explicit: remapFile,
			Disabled: noRemap,
		},
	}
	switch {
	case emitManifest:
		req.Manifest = transpile.ManifestEmit
	case omitManifest:
		req.Manifest = transpile.ManifestOmit
	}
	if outputPath != "" {
		output, err := resolveOutput(fs, input, outputPath)
		if err != nil {
			return err
		}
		req.Output = &output
	}

	drv := driver.NewShellDriver(cfg.Driver.Command, cfg.Driver.Args, cfg.Driver.Timeout, logger)
	engine := transpile.NewEngine(cfg, drv, fs, cmd.OutOrStdout(), logger)

	report, err := engine.Run(ctx, req)
	if err != nil {
		logger.Error("transpile failed", "error", err)
		return err
	}

	if report.Manifest != nil {
		logger.Info("manifest", "result", report.Manifest.String())
	}
	logger.Debug("transpile finished", "written", len(report.Written), "previewed", report.Previewed)
	return nil
}

// resolveOutput rejects an existing output of the wrong kind
func resolveOutput(fs afero.Fs, input target.Target, path string) (target.Target, error) {
	exists, err := target.Exists(fs, path)
	if err != nil {
		return target.Target{}, err
	}
	if exists {
		existing, err := target.Classify(fs, path)
		if err != nil {
			return target.Target{}, err
		}
		if existing.Kind != input.Kind {
			if input.IsDir() {
				return target.Target{}, clierr.NotADirectory(path)
			}
			return target.Target{}, clierr.NotAFile(path)
		}
	}
	return input.Output(path), nil
}

func runSteps(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger(cmd.ErrOrStderr())

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := afero.NewOsFs()
	input, err := target.Classify(fs, args[0])
	if err != nil {
		return err
	}

	rc, err := remap.Resolve(fs, remap.LocateOptions{FileName: cfg.Remap.FileName}, input, logger)
	if err != nil {
		return err
	}
	opts := driver.Options{
		Remaps:       rc.Remaps,
		Dependencies: rc.MergeDependencies(cfg.Manifest.Dependencies),
	}

	drv := driver.NewShellDriver(cfg.Driver.Command, cfg.Driver.Args, cfg.Driver.Timeout, logger)
	tracer := steps.NewTracer(drv, fs, cmd.OutOrStdout(), logger)

	req := steps.Request{
		Input:           input,
		File:            stepsFile,
		Line:            stepsLine,
		Top:             stepsTop,
		SourceExtension: cfg.Output.SourceExtension,
	}
	if err := tracer.Run(ctx, req, opts); err != nil {
		logger.Error("steps failed", "error", err)
		return err
	}
	return nil
}

// silentLevel is above every level the code logs at
const silentLevel = slog.LevelError + 4

func logLevelFromFlags() slog.Level {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if verbose > 0 {
		level = slog.LevelDebug
	}
	switch {
	case quiet == 1:
		level = slog.LevelError
	case quiet > 1:
		level = silentLevel
	}
	return level
}

func setupLogger(w io.Writer) *slog.Logger {
	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: logLevelFromFlags()}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// An explicit config file must exist, the default one is optional
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		logger.Debug("loading configuration", "path", cfgFile)
		cfg, err = config.Load(cfgFile)
	} else {
		var configPath string
		configPath, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
		logger.Debug("loading configuration", "path", configPath)
		cfg, err = config.LoadOrDefault(configPath)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"driver", cfg.Driver.Command,
		"source_dir", cfg.Output.SourceDir,
		"manifest", cfg.Manifest.FileName,
		"remap", cfg.Remap.FileName)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go watchSignals(ctx, cancel, sigCh)

	return ctx, cancel
}

// watchSignals cancels ctx on the first signal. It returns, and stops
// delivery to sigCh, as soon as ctx is done either way.
func watchSignals(ctx context.Context, cancel context.CancelFunc, sigCh chan os.Signal) {
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
		cancel()
	case <-ctx.Done():
	}
}
