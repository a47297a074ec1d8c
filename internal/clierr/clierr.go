// Package clierr defines the error taxonomy shared by every stage of the
// transpile pipeline. Errors are never recovered locally: each stage wraps
// and returns the first failure, and the CLI prints it at the process
// boundary.
package clierr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error
type Kind string

const (
	KindNotFound           Kind = "not found"
	KindWrongKind          Kind = "wrong kind"
	KindRedundantParameter Kind = "redundant parameter"
	KindConfigContent      Kind = "config content"
	KindDriver             Kind = "driver"
	KindManifest           Kind = "manifest"
	KindIO                 Kind = "io"
	// KindInternal marks a broken invariant inside the pipeline, never bad user input.
	KindInternal Kind = "internal"
)

// Error is a classified pipeline error
type Error struct {
	Kind    Kind
	Message string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a classified error
func New(kind Kind, message, path string, cause error) error {
	return &Error{Kind: kind, Message: message, Path: path, Err: cause}
}

// NotFound reports a path that does not exist
func NotFound(path string) error {
	return New(KindNotFound, "file or directory not found for", path, nil)
}

// NotAFile reports a directory where a regular file was expected
func NotAFile(path string) error {
	return New(KindWrongKind, "not a file:", path, nil)
}

// NotADirectory reports a file where a directory was expected
func NotADirectory(path string) error {
	return New(KindWrongKind, "not a directory:", path, nil)
}

// Redundant reports a logically inconsistent flag combination
func Redundant(message string) error {
	return New(KindRedundantParameter, message, "", nil)
}

// IO wraps a read/write/create failure on path
func IO(message, path string, cause error) error {
	return New(KindIO, message, path, cause)
}

// Internal reports a violated invariant
func Internal(message string, cause error) error {
	return New(KindInternal, message, "", cause)
}

// ContentError describes structured text that parsed but has the wrong
// shape. Value is the offending value, Expected a shape such as "table" or
// "string".
type ContentError struct {
	Key      string
	Value    any
	Expected string
}

func (e *ContentError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("TOML contents are not of expected format: %s = %#v should be '%s'", e.Key, e.Value, e.Expected)
	}
	return fmt.Sprintf("TOML contents are not of expected format: %#v should be '%s'", e.Value, e.Expected)
}

// Content creates a KindConfigContent error for the file at path
func Content(path, key string, value any, expected string) error {
	return New(KindConfigContent, "invalid remap file", path, &ContentError{Key: key, Value: value, Expected: expected})
}

// KindOf returns the Kind of the first Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
