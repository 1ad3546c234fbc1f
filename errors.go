package upcast

import (
	"errors"
	"fmt"
	"strconv"
)

// Code classifies why a read, write, or upgrade failed. Failures of
// underlying collaborators (sources, sinks, backends, codecs) are never
// wrapped by the core: they pass through unchanged and classify as CodeIO.
type Code uint32

const (
	// CodeUnknownVersion: the header names a version outside the family's
	// registered range.
	CodeUnknownVersion Code = 1

	// CodeMissingStep: a version slot has no decoder or no upgrade step, or
	// a step received a value of the wrong type. A registration bug, not
	// bad data.
	CodeMissingStep Code = 2

	// CodeUnknownKind: the group has no family for the header's kind, or,
	// on the write side, no registration for the value's type.
	CodeUnknownKind Code = 3

	// CodeUnexpectedKind: Expect read a well-formed message of some other
	// family.
	CodeUnexpectedKind Code = 4

	// CodeBadHeader: header bytes were present but not decodable.
	CodeBadHeader Code = 5

	// CodeIO: any error surfaced by an underlying collaborator.
	CodeIO Code = 6
)

func (c Code) String() string {
	switch c {
	case CodeUnknownVersion:
		return "unknown_version"
	case CodeMissingStep:
		return "missing_step"
	case CodeUnknownKind:
		return "unknown_kind"
	case CodeUnexpectedKind:
		return "unexpected_kind"
	case CodeBadHeader:
		return "bad_header"
	case CodeIO:
		return "io"
	}
	return "code_" + strconv.FormatInt(int64(c), 10)
}

// Error is a Code plus an underlying error.
type Error struct {
	code Code
	err  error
}

// NewError annotates err with a code.
func NewError(c Code, err error) *Error {
	return &Error{code: c, err: err}
}

func (e *Error) Error() string {
	text := e.err.Error()
	if text == "" {
		return e.code.String()
	}
	return e.code.String() + ": " + text
}

// Code returns the error's classification.
func (e *Error) Code() Code { return e.code }

// Unwrap lets errors.Is and errors.As reach the underlying error.
func (e *Error) Unwrap() error { return e.err }

// CodeOf returns err's code if err is (or wraps) an *Error, and CodeIO
// otherwise: an error the module cannot classify came from a collaborator.
func CodeOf(err error) Code {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.code
	}
	return CodeIO
}

func errorf(c Code, format string, args ...any) *Error {
	return NewError(c, fmt.Errorf(format, args...))
}
