// Package halerrors defines the typed error kinds shared by every package in
// this module: IoError, OutOfRange, InvalidArgument, Schema, Invariant,
// NotFound, and Duplicate.
package halerrors

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error into one of the categories a caller can act on
// without parsing the message.
type Kind int

const (
	// Other is the zero value: an error with no specific kind, e.g. one
	// produced by fmt.Errorf deep in a third-party library.
	Other Kind = iota
	// IoError means the underlying store was unreadable or unwritable.
	IoError
	// OutOfRange means an index or coordinate fell outside valid bounds.
	OutOfRange
	// InvalidArgument means a negative length, chunk size of 1, an
	// out-of-order slice, or similar caller mistake.
	InvalidArgument
	// Schema means a record-size mismatch, missing dataset, or
	// incompatible version was found in persisted data.
	Schema
	// Invariant means a consistency check on persisted data failed.
	Invariant
	// NotFound means an unknown genome or sequence name was requested.
	NotFound
	// Duplicate means a duplicate key was detected, e.g. while building a
	// perfect hash table.
	Duplicate
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case OutOfRange:
		return "OutOfRange"
	case InvalidArgument:
		return "InvalidArgument"
	case Schema:
		return "Schema"
	case Invariant:
		return "Invariant"
	case NotFound:
		return "NotFound"
	case Duplicate:
		return "Duplicate"
	default:
		return "Other"
	}
}

// haliError is the concrete error type produced by E. It keeps the kind
// alongside a pkg/errors-wrapped cause so callers can both switch on Kind()
// and print a full stack trace with "%+v".
type haliError struct {
	kind  Kind
	msg   string
	cause error
}

func (e *haliError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *haliError) Cause() error { return e.cause }

func (e *haliError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s: %s", e.kind, e.Error())
			if e.cause != nil {
				fmt.Fprintf(s, "\n%+v", e.cause)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// E builds an error of the given kind. The call convention mirrors the
// idiom this module's teacher uses at its own call sites (e.g.
// "errors.E(err, \"message\", value)"): the first arg may be an existing
// error, which becomes the wrapped cause, and the remaining args are
// space-joined (via fmt.Sprint semantics) into the message.
func E(kind Kind, args ...interface{}) error {
	var cause error
	if len(args) > 0 {
		if c, ok := args[0].(error); ok {
			cause = errors.WithStack(c)
			args = args[1:]
		}
	}
	var buf bytes.Buffer
	for i, a := range args {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprint(&buf, a)
	}
	return &haliError{kind: kind, msg: buf.String(), cause: cause}
}

// GetKind recovers the Kind attached by E, walking the cause chain so a
// wrapped halerrors error retains its classification. Returns Other if err
// is nil or was not produced by E.
func GetKind(err error) Kind {
	for err != nil {
		if he, ok := err.(*haliError); ok {
			return he.kind
		}
		type causer interface{ Cause() error }
		c, ok := err.(causer)
		if !ok {
			return Other
		}
		err = c.Cause()
	}
	return Other
}

// Is reports whether err (or any error in its cause chain) has the given
// Kind.
func Is(kind Kind, err error) bool {
	return GetKind(err) == kind
}
