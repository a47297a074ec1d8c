//go:build integration

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Harness builds the serpent binary once and runs it against a fake
// transpiler engine in a scratch directory.
type Harness struct {
	t      *testing.T
	binary string
	dir    string
	config string
}

// NewHarness builds the binary and prepares the scratch directory
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("get project root: %v", err)
	}

	dir := t.TempDir()
	binary := filepath.Join(dir, "serpent")

	cmd := exec.CommandContext(ctx, "go", "build", "-o", binary, "./cmd/serpent")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: t, prefix: "[build] "}
	if err := cmd.Run(); err != nil {
		t.Fatalf("go build: %v", err)
	}

	h := &Harness{t: t, binary: binary, dir: dir}
	h.config = h.writeEngine()
	return h
}

// Path returns rel inside the scratch directory
func (h *Harness) Path(rel string) string {
	return filepath.Join(h.dir, filepath.FromSlash(rel))
}

// WriteFile writes content to rel inside the scratch directory
func (h *Harness) WriteFile(rel, content string) {
	h.t.Helper()
	path := h.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		h.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		h.t.Fatal(err)
	}
}

// ReadFile returns the content of rel or fails the test
func (h *Harness) ReadFile(rel string) string {
	h.t.Helper()
	data, err := os.ReadFile(h.Path(rel))
	if err != nil {
		h.t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// Run executes serpent with args and returns stdout, stderr and the exit code
func (h *Harness) Run(args ...string) (string, string, int) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	full := append([]string{"--config", h.config}, args...)
	cmd := exec.CommandContext(ctx, h.binary, full...)
	cmd.Dir = h.dir
	cmd.Env = append(os.Environ(), "HOME="+h.dir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		h.t.Fatalf("run serpent: %v", err)
	}

	h.t.Logf("serpent %s exited with %d", strings.Join(args, " "), code)
	return stdout.String(), stderr.String(), code
}

// writeEngine installs a fake engine answering from canned JSON and a
// config file pointing at it.
func (h *Harness) writeEngine() string {
	h.t.Helper()
	h.WriteFile("engine.sh", `#!/bin/sh
cat > /dev/null
case "$1" in
file)
  echo '{"content": "fn main() {}"}'
  ;;
module)
  echo '{"files": [{"source_path": "'"$2"'/__init__.py", "content": "pub mod util;"}, {"source_path": "'"$2"'/__main__.py", "content": "fn main() {}"}, {"source_path": "'"$2"'/util.py", "content": "pub fn util() {}"}]}'
  ;;
*)
  echo "unsupported $1" >&2
  exit 2
  ;;
esac
`)
	if err := os.Chmod(h.Path("engine.sh"), 0o755); err != nil {
		h.t.Fatal(err)
	}

	h.WriteFile("config.yaml", "driver:\n  command: \""+h.Path("engine.sh")+"\"\n")
	return h.Path("config.yaml")
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

// findProjectRoot walks up the directory tree from the current file to find go.mod
func findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
