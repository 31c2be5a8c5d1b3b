// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"errors"
	"fmt"

	"zombiezen.com/go/luavm/internal/lua54"
)

//go:generate go tool stringer -type=ErrorKind -linecomment -output=errorkind_string.go

// ErrorKind is the category of an [*Error].
type ErrorKind int

const (
	// Syntax means the source text could not be parsed.
	Syntax ErrorKind = 1 + iota // syntax error
	// Compile means the source parsed but is not a valid program,
	// like a duplicate label or an assignment to a constant.
	Compile // compile error
	// Runtime means the code raised an error while running.
	Runtime // runtime error
	// Deserialize means a binary chunk is malformed.
	Deserialize // deserialization error
	// Version means a binary chunk was built for a different runtime version.
	Version // version mismatch
)

func kindOf(res lua54.Result) ErrorKind {
	switch res {
	case lua54.SyntaxErr:
		return Syntax
	case lua54.CompileErr:
		return Compile
	case lua54.RuntimeErr:
		return Runtime
	case lua54.DeserializeErr:
		return Deserialize
	case lua54.VersionErr:
		return Version
	default:
		panic(fmt.Sprintf("luavm: unknown result %d", res))
	}
}

// Error is an error reported by the runtime.
type Error struct {
	Kind ErrorKind
	// Path is the file the error occurred in, if known.
	Path string
	// Line is the 1-based line number of the error
	// or zero if the message has no position.
	Line int
	// Message is the runtime's message,
	// including a traceback for runtime errors.
	Message string

	// raised is true if the error value is on top of the stack.
	raised bool
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "luavm: " + e.Kind.String()
	}
	return e.Message
}

// AsError returns the [*Error] in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func isKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// IsSyntax reports whether err is a [Syntax] error.
func IsSyntax(err error) bool { return isKind(err, Syntax) }

// IsCompile reports whether err is a [Compile] error.
func IsCompile(err error) bool { return isKind(err, Compile) }

// IsRuntime reports whether err is a [Runtime] error.
func IsRuntime(err error) bool { return isKind(err, Runtime) }

// IsDeserialize reports whether err is a [Deserialize] error.
func IsDeserialize(err error) bool { return isKind(err, Deserialize) }

// IsVersion reports whether err is a [Version] error.
func IsVersion(err error) bool { return isKind(err, Version) }
