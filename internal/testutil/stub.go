// Package testutil holds test doubles shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hegza/serpent-cli/internal/driver"
)

// StubDriver implements driver.Driver and driver.Tracer with canned
// results. Module results are keyed by their path relative to the module
// root and returned in lexical order.
type StubDriver struct {
	// File is returned by TranspileFile, SourcePath is filled in
	File driver.TranspiledFile
	// Module maps relative source paths to their results
	Module map[string]driver.TranspiledFile
	// Trace is returned by TraceLine
	Trace driver.Trace
	// Err is returned by every call when set
	Err error

	mu    sync.Mutex
	calls []Call
}

// Call records one invocation
type Call struct {
	Op   string
	Path string
	Line int
	Opts driver.Options
}

func (s *StubDriver) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Calls returns the recorded invocations
func (s *StubDriver) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// TranspileFile returns s.File for path
func (s *StubDriver) TranspileFile(_ context.Context, path string, opts driver.Options) (driver.TranspiledFile, error) {
	s.record(Call{Op: "file", Path: path, Opts: opts})
	if s.Err != nil {
		return driver.TranspiledFile{}, s.Err
	}
	out := s.File
	out.SourcePath = path
	return out, nil
}

// TranspileModule returns s.Module rooted at path
func (s *StubDriver) TranspileModule(_ context.Context, path string, opts driver.Options) ([]driver.TranspiledFile, error) {
	s.record(Call{Op: "module", Path: path, Opts: opts})
	if s.Err != nil {
		return nil, s.Err
	}

	rels := make([]string, 0, len(s.Module))
	for rel := range s.Module {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	files := make([]driver.TranspiledFile, 0, len(rels))
	for _, rel := range rels {
		f := s.Module[rel]
		f.SourcePath = filepath.Join(path, filepath.FromSlash(rel))
		files = append(files, f)
	}
	return files, nil
}

// TraceLine returns s.Trace. Line must be positive unless it is 0.
func (s *StubDriver) TraceLine(_ context.Context, path string, line int, opts driver.Options) (driver.Trace, error) {
	s.record(Call{Op: "trace", Path: path, Line: line, Opts: opts})
	if s.Err != nil {
		return driver.Trace{}, s.Err
	}
	if line < 0 {
		return driver.Trace{}, fmt.Errorf("invalid line %d", line)
	}
	return s.Trace, nil
}
