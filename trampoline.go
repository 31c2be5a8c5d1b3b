// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/log"
	"zombiezen.com/go/luavm/internal/lua54"
)

// trampolineState is the host side of a runtime.
// It is shared by the owning [*VM] and every borrowed wrapper,
// and it is reached from C through the runtime's custom data.
type trampolineState struct {
	onError  ErrorFunc
	onImport ImportFunc

	natives      map[uint64]Native
	nextNativeID uint64

	// lastErr is the most recent error reported by the runtime.
	// It is consumed by finish.
	lastErr *Error

	// panicValue is a panic recovered from a callback
	// that must be raised again once control is back in Go.
	panicValue any
	panicking  bool

	// pendingImports is the number of import results
	// that have not been finalized.
	pendingImports int
}

var _ lua54.Callbacks = (*trampolineState)(nil)

func newTrampolineState(conf *Conf) *trampolineState {
	return &trampolineState{
		onError:  conf.errorCallback,
		onImport: conf.importCallback,
		natives:  make(map[uint64]Native),
	}
}

func (st *trampolineState) addNative(f Native) uint64 {
	if f == nil {
		panic("luavm: nil native")
	}
	st.nextNativeID++
	id := st.nextNativeID
	st.natives[id] = f
	return id
}

// recoverPanic stores a panic from a callback.
// Only the first panic is kept.
func (st *trampolineState) recoverPanic(v any) {
	if st.panicking {
		return
	}
	st.panicValue = v
	st.panicking = true
}

// finish converts the result of a call into the runtime to an error.
// If a callback panicked during the call, finish panics with the same value.
func (st *trampolineState) finish(res lua54.Result) error {
	e := st.lastErr
	st.lastErr = nil
	if st.panicking {
		v := st.panicValue
		st.panicValue = nil
		st.panicking = false
		panic(v)
	}
	if res == lua54.Success {
		return nil
	}
	kind := kindOf(res)
	if e == nil || e.Kind != kind {
		e = &Error{Kind: kind}
	}
	return e
}

func (st *trampolineState) ReportError(vm lua54.VM, res lua54.Result, file string, line int, msg string) {
	e := &Error{
		Kind:    kindOf(res),
		Path:    strings.ToValidUTF8(file, "�"),
		Line:    max(line, 0),
		Message: strings.ToValidUTF8(msg, "�"),
	}
	st.lastErr = e
	if st.onError == nil {
		return
	}
	switch e.Kind {
	case Syntax, Compile, Runtime:
		defer func() {
			if v := recover(); v != nil {
				st.recoverPanic(v)
			}
		}()
		st.onError(e)
	}
}

func (st *trampolineState) Import(raw lua54.VM, name string) (result *lua54.ImportResult) {
	if st.onImport == nil {
		return nil
	}
	defer func() {
		if v := recover(); v != nil {
			st.recoverPanic(v)
			result = &lua54.ImportResult{Err: fmt.Sprintf("import callback panicked: %v", v)}
		}
	}()
	ctx := context.TODO()
	name = strings.ToValidUTF8(name, "�")
	mod, err := st.onImport(&VM{raw: raw}, name)
	if errors.Is(err, ErrNotFound) || (err == nil && !mod.found) {
		log.Debugf(ctx, "luavm: module %q not found", name)
		return nil
	}
	if err != nil {
		log.Debugf(ctx, "luavm: import %q: %v", name, err)
		return &lua54.ImportResult{Err: err.Error()}
	}
	log.Debugf(ctx, "luavm: importing %q from %s", name, mod.path)
	code := mod.code
	if code == nil {
		code = []byte{}
	}
	result = &lua54.ImportResult{
		Code: code,
		Path: mod.path,
		Release: func() {
			st.pendingImports--
		},
	}
	for _, reg := range mod.natives {
		result.Natives = append(result.Natives, lua54.NativeReg{
			Class: reg.Class,
			Name:  reg.Name,
			ID:    st.addNative(reg.Func),
		})
	}
	st.pendingImports++
	return result
}

func (st *trampolineState) CallNative(raw lua54.VM, id uint64) (ok bool) {
	f := st.natives[id]
	if f == nil {
		raw.EnsureStack(1)
		raw.Raise("unknown native")
		return false
	}
	defer func() {
		if v := recover(); v != nil {
			st.recoverPanic(v)
			raw.EnsureStack(1)
			raw.Raise(fmt.Sprintf("native panicked: %v", v))
			ok = false
		}
	}()
	err := f(&VM{raw: raw})
	if err == nil {
		return true
	}
	if e, isErr := AsError(err); isErr && e.raised {
		// The error value is already on top of the stack.
		return false
	}
	raw.EnsureStack(1)
	raw.Raise(err.Error())
	return false
}
