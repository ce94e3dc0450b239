// Package apierr defines the error kinds shared by every RPC interface in
// this module. A *Error is a concrete, gob-registerable type, which is
// how a caller on one side of the wire can tell a not-found from an
// out-of-bounds from an illegal-state failure on the other side, despite
// gob having no way to carry an arbitrary error value across the wire.
package apierr

import (
	"encoding/gob"
	"fmt"
)

// Kind identifies one of the error categories the protocol distinguishes.
type Kind int

const (
	_ Kind = iota
	NotFound
	InvalidArgument
	OutOfBounds
	IllegalState
	NullArgument
	IOError
	RPCError
	Fatal
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case InvalidArgument:
		return "invalid-argument"
	case OutOfBounds:
		return "out-of-bounds"
	case IllegalState:
		return "illegal-state"
	case NullArgument:
		return "null-argument"
	case IOError:
		return "io-error"
	case RPCError:
		return "rpc-error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the wire-transmissible error value. Op names the failing
// operation for diagnostics; it is not part of equality checks done via Is.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func init() {
	gob.Register(&Error{})
}

func newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(op, format string, args ...interface{}) *Error {
	return newf(NotFound, op, format, args...)
}

func InvalidArgumentf(op, format string, args ...interface{}) *Error {
	return newf(InvalidArgument, op, format, args...)
}

func OutOfBoundsf(op, format string, args ...interface{}) *Error {
	return newf(OutOfBounds, op, format, args...)
}

func IllegalStatef(op, format string, args ...interface{}) *Error {
	return newf(IllegalState, op, format, args...)
}

func NullArgumentf(op, format string, args ...interface{}) *Error {
	return newf(NullArgument, op, format, args...)
}

func IOErrorf(op, format string, args ...interface{}) *Error {
	return newf(IOError, op, format, args...)
}

func RPCErrorf(op, format string, args ...interface{}) *Error {
	return newf(RPCError, op, format, args...)
}

func Fatalf(op, format string, args ...interface{}) *Error {
	return newf(Fatal, op, format, args...)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
