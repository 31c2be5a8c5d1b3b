// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

/*
Package luavm embeds a Lua 5.4 runtime behind a checked API.

A runtime starts out uninitialized. [New] returns a [*NewVM]
that can compile source to bytecode but cannot run it.
[NewVM.InitRuntime] loads the standard library and the module system
and hands back the [*VM] that evaluates code.
Only the [*VM] returned by [NewVM.InitRuntime] owns the runtime:
[VM.Close] on it frees the runtime,
while wrappers handed to natives and import callbacks are borrowed
and must not be retained past the callback.

Every stack access is validated before it reaches the runtime.
Reading an invalid slot, popping more values than the stack holds,
or pushing past the available space panics.

# Modules

Code runs inside a module: a table that falls back to the globals of [CoreModule].
[VM.Eval] runs code in [MainModule].
Scripts load other modules with the import function:

	import "foo.bar"
	bar.hello()

which calls the [ImportFunc] set with [Conf.ImportCallback].

# Natives

A [Native] is a Go function callable from Lua.
Its arguments are the slots 0 through [VM.Top]-1
and its result is the value left on top of the stack.
*/
package luavm
