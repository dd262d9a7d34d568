// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package rgerr defines the error taxonomy shared by every
// render-graph package.
//
// Each package still formats its own messages (a "prefix:
// reason" convention), but every error value it returns wraps
// one of the Kind constants so callers can test the failure
// class with errors.Is regardless of which package raised it.
package rgerr

import (
	"errors"
	"fmt"
)

// Kind classifies a render-graph error.
type Kind int

const (
	// InvalidArguments: a null handle or an out-of-range id
	// was passed to an API call.
	InvalidArguments Kind = iota
	// InvalidOperation: a state-machine method was called in
	// the wrong state (e.g. EndSubgraph without BeginSubgraph).
	InvalidOperation
	// InvalidProgram: the program body produced a structurally
	// inconsistent stream (mismatched block markers, array
	// access out of bounds, overlapping semantics).
	InvalidProgram
	// OutOfMemory: an arena or backing allocator could not
	// satisfy a request.
	OutOfMemory
	// IndexOutOfBounds: an array parameter was accessed past
	// its declared size.
	IndexOutOfBounds
	// IntegerOverflow: a span, counter, or id overflowed its
	// representable range.
	IntegerOverflow
	// TypeMismatch: a typed argument accessor was used against
	// an argument of a different size.
	TypeMismatch
	// UnknownNode: a bind-by-name lookup found no matching node
	// declaration.
	UnknownNode
	// UnrecognizedCommand: DisallowUnboundNodes was set and no
	// callback or default recording was found for a node.
	UnrecognizedCommand
	// NotImplemented: the requested backend feature is not
	// implemented yet.
	NotImplemented
	// InternalError: an invariant was broken inside the core.
	InternalError
)

var names = [...]string{
	InvalidArguments:    "InvalidArguments",
	InvalidOperation:    "InvalidOperation",
	InvalidProgram:      "InvalidProgram",
	OutOfMemory:         "OutOfMemory",
	IndexOutOfBounds:    "IndexOutOfBounds",
	IntegerOverflow:     "IntegerOverflow",
	TypeMismatch:        "TypeMismatch",
	UnknownNode:         "UnknownNode",
	UnrecognizedCommand: "UnrecognizedCommand",
	NotImplemented:      "NotImplemented",
	InternalError:       "InternalError",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(names) {
		return "Kind(?)"
	}
	return names[k]
}

// Error is the concrete error type every package returns.
// It satisfies errors.Is against its Kind (compared by value)
// and errors.Unwrap against a wrapped cause, if any.
type Error struct {
	Kind   Kind
	Pkg    string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Pkg, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Pkg, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a Kind sentinel equal to e.Kind,
// which lets callers write
// errors.Is(err, rgerr.InvalidProgram.Sentinel()).
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && k.kind == e.Kind
}

// kindSentinel lets a bare Kind value be used as an errors.Is
// target (e.g. rgerr.InvalidProgram.Sentinel()).
type kindSentinel struct{ kind Kind }

func (s kindSentinel) Error() string { return s.kind.String() }

// Sentinel returns an error value usable as the target of
// errors.Is(err, k.Sentinel()).
func (k Kind) Sentinel() error { return kindSentinel{k} }

// New constructs an *Error for pkg (the short package name used
// as the message prefix, set by a per-package pkgName
// constant).
func New(pkg string, kind Kind, reason string) error {
	return &Error{Kind: kind, Pkg: pkg, Reason: reason}
}

// Wrap is like New but chains a causing error.
func Wrap(pkg string, kind Kind, reason string, cause error) error {
	return &Error{Kind: kind, Pkg: pkg, Reason: reason, Cause: cause}
}

// Is reports whether err's Kind equals k, unwrapping as needed.
func Is(err error, k Kind) bool { return errors.Is(err, k.Sentinel()) }
