// Package errs defines the error kinds shared across the hashdb packages,
// matching the taxonomy used throughout the database: usage mistakes,
// malformed input lines, invariant violations, and I/O failures are each
// handled differently by callers.
package errs

import "fmt"

// ErrNotFound is returned by point lookups and iterators to mean "no such
// entry", which is a normal outcome, not a failure.
var ErrNotFound = fmt.Errorf("not found")

// ErrAlreadyExists is returned by insert-or-fail operations when the key is
// already present.
var ErrAlreadyExists = fmt.Errorf("already exists")

// UsageError reports a malformed argument or invocation, surfaced to stderr
// with exit code 1.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// FormatError reports a malformed input line (bad hex, malformed JSON,
// malformed tab line, invalid sector index). Callers recover locally, log
// the line, and continue processing the rest of the stream.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func Formatf(line int, format string, args ...any) error {
	return &FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// InvariantViolation marks a condition that should be structurally
// impossible (conflicting non-empty source metadata, settings version
// mismatch, corrupt on-disk layout). Callers of functions that can return
// this are expected to treat it as fatal; some call sites choose to panic
// instead of returning it, per the original tool's assert(0) bailouts.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

func Invariantf(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// Panicf raises a true invariant violation as a panic, for the small set of
// consistency failures that the original tool treats as assert(0) bailouts
// (see calculate_block_label.hpp-adjacent callers, bi_store_t::insert_value).
func Panicf(format string, args ...any) {
	panic(Invariantf(format, args...))
}
