// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package corerr defines the tagged-variant error model used across the
// engine core. Every failure the core produces is a *CoreError carrying one
// of the Kind values below; there is deliberately no other error type that
// crosses a package boundary in this module.
package corerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Kind identifies one of the failure categories the core can produce. The
// set is closed and mirrors the error envelope's kind byte on the wire.
type Kind byte

const (
	// KindOutputBufferOverflow is raised when a Writer runs out of space and
	// has no fallback strategy. Locally recoverable by retrying with a
	// larger buffer.
	KindOutputBufferOverflow Kind = iota + 1
	// KindInvalidMessage is raised when a Reader's bounds check fails.
	KindInvalidMessage
	// KindSchemaMismatch is raised when an incoming table header disagrees
	// with the target schema.
	KindSchemaMismatch
	// KindUniqueConstraint is raised on a duplicate key during a unique
	// index insert.
	KindUniqueConstraint
	// KindSQLException is raised on runtime expression evaluation errors
	// (overflow, bad cast).
	KindSQLException
	// KindUnsupportedOperation is raised when an ordered-only call reaches
	// a hash index, or an equality-only call reaches the covering-cell
	// index. Always a programmer error.
	KindUnsupportedOperation
	// KindReplicatedTableFailure is raised when a peer engine observes a
	// failure sentinel published by the lowest site.
	KindReplicatedTableFailure
	// KindQueryTimedOut is raised when the progress callback signals that
	// the deadline hint has been exceeded.
	KindQueryTimedOut
	// KindFatal marks an invariant violation. Never recoverable; the
	// process that owns the engine is expected to abort.
	KindFatal
)

// String renders the kind the way it is named in spec tables and logs.
func (k Kind) String() string {
	switch k {
	case KindOutputBufferOverflow:
		return "OutputBufferOverflow"
	case KindInvalidMessage:
		return "InvalidMessage"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindUniqueConstraint:
		return "UniqueConstraint"
	case KindSQLException:
		return "SqlException"
	case KindUnsupportedOperation:
		return "UnsupportedOperation"
	case KindReplicatedTableFailure:
		return "ReplicatedTableFailure"
	case KindQueryTimedOut:
		return "QueryTimedOut"
	case KindFatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Recoverable reports whether the caller can continue after this kind of
// failure (by rolling back via an undo token, or by retrying locally).
func (k Kind) Recoverable() bool {
	switch k {
	case KindUniqueConstraint, KindSQLException, KindQueryTimedOut:
		return true
	default:
		return false
	}
}

// CoreError is the sole error type the core returns across package
// boundaries. The Fatal kind is never wrapped by this type's callers; it is
// allowed to propagate to the outermost frame untouched.
type CoreError struct {
	kind Kind
	// conflict holds an owned copy of the conflicting tuple's serialized
	// bytes for KindUniqueConstraint, so the value survives rollback of the
	// table that produced it.
	conflict []byte
	cause    error
}

// Error implements the error interface. Tuple bytes are redacted: they may
// carry user column data that should not leak into logs verbatim.
func (e *CoreError) Error() string {
	if e.conflict != nil {
		return fmt.Sprintf("%s: conflicting tuple (%d bytes): %s", e.kind, len(e.conflict), e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.cause)
}

// Unwrap allows errors.Is / errors.As to see through to the cause.
func (e *CoreError) Unwrap() error { return e.cause }

// Kind reports the error's category.
func (e *CoreError) Kind() Kind { return e.kind }

// ConflictingTuple returns the owned copy of the tuple that collided with a
// unique index, if this error is a KindUniqueConstraint.
func (e *CoreError) ConflictingTuple() []byte { return e.conflict }

// RedactableString implements redact.RedactableStringer so log sinks that
// understand cockroachdb/redact elide the conflicting tuple's bytes by
// default while keeping the kind and message visible.
func (e *CoreError) RedactableString() redact.RedactableString {
	if e.conflict != nil {
		return redact.Sprintf("%s: conflicting tuple (%d bytes): %s", e.kind, len(e.conflict), e.cause)
	}
	return redact.Sprintf("%s: %s", e.kind, e.cause)
}

func newError(kind Kind, cause error) *CoreError {
	return &CoreError{kind: kind, cause: cause}
}

// New builds a CoreError of the given kind wrapping a formatted message.
func New(kind Kind, format string, args ...interface{}) *CoreError {
	return newError(kind, errors.Newf(format, args...))
}

// Wrap builds a CoreError of the given kind wrapping an existing error,
// preserving its stack trace via cockroachdb/errors.
func Wrap(kind Kind, err error, format string, args ...interface{}) *CoreError {
	if err == nil {
		return nil
	}
	return newError(kind, errors.Wrapf(err, format, args...))
}

// UniqueConstraint builds the KindUniqueConstraint error carrying an owned
// copy of the conflicting tuple's serialized bytes.
func UniqueConstraint(conflictingTuple []byte) *CoreError {
	cp := make([]byte, len(conflictingTuple))
	copy(cp, conflictingTuple)
	return &CoreError{
		kind:     KindUniqueConstraint,
		conflict: cp,
		cause:    errors.New("duplicate key violates unique index constraint"),
	}
}

// UnsupportedOperation builds the KindUnsupportedOperation error for a call
// that a particular index flavor does not implement.
func UnsupportedOperation(op, indexKind string) *CoreError {
	return New(KindUnsupportedOperation, "operation %q is not supported by %s indexes", op, indexKind)
}

// Fatal builds the KindFatal error for an invariant violation. Callers
// should let this propagate rather than attempt recovery.
func Fatal(format string, args ...interface{}) *CoreError {
	return newError(KindFatal, errors.AssertionFailedf(format, args...))
}

// Is supports errors.Is(err, corerr.KindX) style checks by comparing kinds
// when the target is itself a *CoreError.
func (e *CoreError) Is(target error) bool {
	other, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

// Sentinel returns a zero-cause CoreError of the given kind, suitable for use
// with errors.Is(err, corerr.Sentinel(KindX)).
func Sentinel(kind Kind) *CoreError {
	return &CoreError{kind: kind, cause: errors.New(kind.String())}
}
