// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by an [ImportFunc] for a module it does not know.
var ErrNotFound = errors.New("module not found")

// ImportFunc resolves a module requested by the import function.
// The VM is borrowed for the duration of the call.
//
// Returning [ErrNotFound] or a zero [Module] with a nil error
// makes the import fail with "module 'name' not found".
// Any other error makes the import fail with the error's text.
type ImportFunc func(vm *VM, name string) (Module, error)

// ErrorFunc receives syntax, compile, and runtime errors
// as they are reported by the runtime.
type ErrorFunc func(e *Error)

// Module is the code for an imported module.
// The zero value means the module was not found.
type Module struct {
	code    []byte
	path    string
	natives []NativeReg
	found   bool
}

// SourceModule returns a module from Lua source.
// path is used in error messages.
// The natives are installed in the module before its code runs.
// SourceModule panics if src or path contains a NUL byte.
func SourceModule(src, path string, natives ...NativeReg) Module {
	if strings.IndexByte(src, 0) >= 0 {
		panic("luavm: module source contains NUL byte")
	}
	checkName("module path", path)
	return Module{
		code:    []byte(src),
		path:    path,
		natives: natives,
		found:   true,
	}
}

// BinaryModule returns a module from a binary chunk
// like one produced by [VM.Compile].
// BinaryModule panics if path contains a NUL byte.
func BinaryModule(code []byte, path string, natives ...NativeReg) Module {
	checkName("module path", path)
	return Module{
		code:    code,
		path:    path,
		natives: natives,
		found:   true,
	}
}

// Path returns the path given when the module was created.
func (m Module) Path() string {
	return m.path
}

// NativeReg is a native installed in a module when it is imported.
type NativeReg struct {
	// Class is the name of a table in the module to store the function in.
	// If empty, the function is stored as a module global.
	Class string
	Name  string
	Func  Native
}

// Native is a Go function callable from Lua.
// The arguments are in slots 0 through [VM.Top]-1.
// The native's result is the value on top of the stack when it returns,
// or nil if the stack is empty.
//
// Returning an error raises it in Lua.
// An error from a checked getter like [VM.CheckNumber]
// raises the error value the getter pushed.
type Native func(vm *VM) error
