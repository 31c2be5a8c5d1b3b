// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unsafe"

	"zombiezen.com/go/luavm/internal/lua54"
)

// Module namespaces present in every initialized runtime.
const (
	// CoreModule holds the standard library and the import function.
	// Every other module falls back to it for names it does not define.
	CoreModule = lua54.CoreModule
	// MainModule is the module [VM.Eval] runs code in.
	MainModule = lua54.MainModule
)

// MinNativeStack is the number of stack slots
// a native or an import callback can push without calling [VM.EnsureStack].
const MinNativeStack = lua54.MinNativeStack

// NewVM is a runtime that has not been initialized.
// It can compile code but not run it.
type NewVM struct {
	raw      lua54.VM
	st       *trampolineState
	consumed bool
}

// New allocates a new runtime.
// A nil conf is the same as [DefaultConf].
// New panics if the runtime cannot be allocated.
func New(conf *Conf) *NewVM {
	if conf == nil {
		conf = DefaultConf()
	}
	st := newTrampolineState(conf)
	raw := lua54.New(conf.raw(), st)
	return &NewVM{raw: raw, st: st}
}

func (n *NewVM) handle() lua54.VM {
	if n.consumed {
		panic("luavm: use of NewVM after InitRuntime")
	}
	if n.raw.IsNil() {
		panic("luavm: use of closed NewVM")
	}
	return n.raw
}

// InitRuntime loads the standard library and the module system.
// The returned [*VM] owns the runtime:
// n must not be used afterward.
func (n *NewVM) InitRuntime() *VM {
	raw := n.handle()
	raw.InitRuntime()
	vm := &VM{raw: raw, owner: n.st}
	n.raw = lua54.VM{}
	n.st = nil
	n.consumed = true
	return vm
}

// Compile compiles Lua source into a binary chunk.
func (n *NewVM) Compile(path string, src string) ([]byte, error) {
	return compile(n.handle(), n.st, path, src)
}

// CompileTo compiles Lua source and writes the binary chunk to w.
func (n *NewVM) CompileTo(w io.Writer, path string, src string) (int64, error) {
	return compileTo(w, n.handle(), n.st, path, src)
}

// Close frees a runtime that was never initialized.
// Close is a no-op after [NewVM.InitRuntime].
func (n *NewVM) Close() error {
	if n.consumed || n.raw.IsNil() {
		return nil
	}
	n.raw.Free()
	n.raw = lua54.VM{}
	n.st = nil
	return nil
}

// VM is an initialized runtime.
//
// A VM is either owned or borrowed.
// The VM returned by [NewVM.InitRuntime] is owned
// and frees the runtime when closed.
// VMs passed to natives and import callbacks,
// as well as those created by [UnsafeFromPointer], are borrowed.
//
// A VM must not be used from multiple goroutines at once.
// [VM.Break] is the only exception.
type VM struct {
	// rawMu guards writes to raw and reads from goroutines
	// other than the one using the VM.
	rawMu sync.Mutex
	raw   lua54.VM
	// owner is non-nil if the VM owns the runtime.
	owner *trampolineState
}

// UnsafeFromPointer returns a borrowed VM for a raw luavm_VM pointer
// created by this package.
// The caller must ensure the runtime outlives the returned VM.
func UnsafeFromPointer(p unsafe.Pointer) *VM {
	if p == nil {
		panic("luavm: UnsafeFromPointer(nil)")
	}
	return &VM{raw: lua54.FromPointer(p)}
}

// Pointer returns the raw luavm_VM pointer.
func (vm *VM) Pointer() unsafe.Pointer {
	return vm.handle().Pointer()
}

// Owned reports whether closing vm frees the runtime.
func (vm *VM) Owned() bool {
	return vm.owner != nil
}

// Close frees the runtime if vm owns it.
// Closing a borrowed VM does nothing.
func (vm *VM) Close() error {
	if vm.owner == nil || vm.raw.IsNil() {
		return nil
	}
	vm.rawMu.Lock()
	raw := vm.raw
	vm.raw = lua54.VM{}
	vm.rawMu.Unlock()
	raw.Free()
	vm.owner = nil
	return nil
}

func (vm *VM) handle() lua54.VM {
	if vm == nil || vm.raw.IsNil() {
		panic("luavm: use of closed VM")
	}
	return vm.raw
}

func (vm *VM) state() *trampolineState {
	if vm.owner != nil {
		return vm.owner
	}
	st, ok := vm.handle().Callbacks().(*trampolineState)
	if !ok {
		panic("luavm: VM was not created by this package")
	}
	return st
}

// Eval runs a text or binary chunk in [MainModule].
// path is used in error messages.
func (vm *VM) Eval(path string, code []byte) error {
	return vm.EvalModule(path, MainModule, code)
}

// EvalModule runs a text or binary chunk in the named module,
// creating the module if it does not exist.
func (vm *VM) EvalModule(path, module string, code []byte) error {
	checkName("path", path)
	checkName("module name", module)
	raw := vm.handle()
	st := vm.state()
	return st.finish(raw.Eval(path, module, code))
}

// EvalString runs Lua source in [MainModule].
// Binary chunks are rejected.
func (vm *VM) EvalString(path string, src string) error {
	return vm.EvalStringModule(path, MainModule, src)
}

// EvalStringModule runs Lua source in the named module.
func (vm *VM) EvalStringModule(path, module string, src string) error {
	checkName("path", path)
	checkName("module name", module)
	raw := vm.handle()
	st := vm.state()
	return st.finish(raw.EvalString(path, module, src))
}

// Call calls the function below the top nargs values.
// The function and its arguments are replaced by the function's first result.
// If the function raises an error, they are replaced by the error value
// and Call returns a [Runtime] error.
func (vm *VM) Call(nargs int) error {
	if nargs < 0 || nargs > 255 {
		panic(fmt.Sprintf("luavm: Call(%d) out of range", nargs))
	}
	raw := vm.handle()
	if raw.Top() < nargs+1 {
		panic("luavm: stack underflow")
	}
	st := vm.state()
	return st.finish(raw.Call(uint8(nargs)))
}

// Compile compiles Lua source into a binary chunk.
func (vm *VM) Compile(path string, src string) ([]byte, error) {
	return compile(vm.handle(), vm.state(), path, src)
}

// CompileTo compiles Lua source and writes the binary chunk to w.
// Errors from w are returned wrapped, not as [*Error].
func (vm *VM) CompileTo(w io.Writer, path string, src string) (int64, error) {
	return compileTo(w, vm.handle(), vm.state(), path, src)
}

func compile(raw lua54.VM, st *trampolineState, path string, src string) ([]byte, error) {
	checkName("path", path)
	chunk, res := raw.Compile(path, src)
	if err := st.finish(res); err != nil {
		return nil, err
	}
	return chunk, nil
}

func compileTo(w io.Writer, raw lua54.VM, st *trampolineState, path string, src string) (int64, error) {
	chunk, err := compile(raw, st, path, src)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(chunk)
	if err != nil {
		return int64(n), fmt.Errorf("luavm: write %s: %w", path, err)
	}
	return int64(n), nil
}

// GetGlobal pushes the value of a global in the named module.
// Names not defined in the module are looked up in [CoreModule].
// If the name is not defined, GetGlobal pushes an error value
// and returns a [Runtime] error.
func (vm *VM) GetGlobal(module, name string) error {
	checkName("module name", module)
	checkName("global name", name)
	raw := vm.checkPush()
	if !raw.GetGlobal(module, name) {
		return raisedError(raw)
	}
	return nil
}

// SetGlobal pops a value and stores it as a global in the named module.
func (vm *VM) SetGlobal(module, name string) error {
	checkName("module name", module)
	checkName("global name", name)
	raw := vm.handle()
	if raw.Top() < 1 {
		panic("luavm: stack underflow")
	}
	if !raw.SetGlobal(module, name) {
		return &Error{Kind: Runtime, Message: fmt.Sprintf("module '%s' not found", module)}
	}
	return nil
}

// RegisterNative stores f as a global function in the named module.
func (vm *VM) RegisterNative(module, name string, f Native) error {
	checkName("module name", module)
	checkName("native name", name)
	raw := vm.handle()
	st := vm.state()
	id := st.addNative(f)
	if !raw.RegisterNative(module, name, id) {
		delete(st.natives, id)
		return &Error{Kind: Runtime, Message: fmt.Sprintf("module '%s' not found", module)}
	}
	return nil
}

// Break asks the running evaluation to stop
// with a [Runtime] error at its next instruction.
// If nothing is running, the next evaluation stops instead.
// Break is safe to call from any goroutine.
// Calling Break on a closed VM does nothing.
func (vm *VM) Break() {
	vm.rawMu.Lock()
	defer vm.rawMu.Unlock()
	if !vm.raw.IsNil() {
		vm.raw.Break()
	}
}

// BreakOn arranges for [VM.Break] to be called when ctx is done.
// Calling stop stops the association.
func (vm *VM) BreakOn(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, vm.Break)
}

func checkName(what, s string) {
	if strings.IndexByte(s, 0) >= 0 {
		panic(fmt.Sprintf("luavm: %s %q contains NUL byte", what, s))
	}
}
