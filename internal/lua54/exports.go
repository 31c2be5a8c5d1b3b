// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package lua54

import (
	"runtime/cgo"
)

// This file is used to contain Go code exported to C.
// It's kept in a separate file with a minimal C preamble
// to avoid unintentional redefinitions.
// See the caveat in https://pkg.go.dev/cmd/cgo for more details.

// #include <stdint.h>
// #include "vm.h"
import "C"

//export luavm_errortrampoline
func luavm_errortrampoline(vm *C.luavm_VM, res C.luavm_Result, file *C.char, line C.int, msg *C.char) {
	callbacksFor(vm).ReportError(VM{vm}, Result(res), C.GoString(file), int(line), C.GoString(msg))
}

//export luavm_importtrampoline
func luavm_importtrampoline(vm *C.luavm_VM, name *C.char) C.luavm_ImportResult {
	r := callbacksFor(vm).Import(VM{vm}, C.GoString(name))
	if r == nil {
		return C.luavm_ImportResult{}
	}
	return r.export()
}

//export luavm_nativetrampoline
func luavm_nativetrampoline(vm *C.luavm_VM, data C.uint64_t) C.bool {
	return C.bool(callbacksFor(vm).CallNative(VM{vm}, uint64(data)))
}

//export luavm_finalizetrampoline
func luavm_finalizetrampoline(userData C.uintptr_t) {
	h := cgo.Handle(userData)
	allocs := h.Value().(*importAllocs)
	h.Delete()
	allocs.free()
}
