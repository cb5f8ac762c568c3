// Package errcode defines the error kinds surfaced by pin translation,
// platform identification and GPIO line handling.
package errcode

import "errors"

// Code is a stable error identifier.  It is a string newtype, comparable and
// usable directly as an error value so that callers can test for it with
// errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK Code = "ok"

	// InvalidFormat means a designator does not match the platform syntax.
	InvalidFormat Code = "invalid_format"
	// OutOfRange means a well formed designator resolved to a pin that is
	// not wired on the board.
	OutOfRange Code = "out_of_range"
	// PlatformNotIdentified means no registered platform matched.
	PlatformNotIdentified Code = "platform_not_identified"
	LineNotOpen           Code = "line_not_open"
	LineAlreadyOpen       Code = "line_already_open"
	// BackendUnavailable means the platform was identified but none of its
	// GPIO backends could be loaded.
	BackendUnavailable Code = "backend_unavailable"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation, a message and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

// New returns an *E for op with the formatted message.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap returns an *E for op that keeps err as its cause.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is reports whether target is the Code carried by e.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
