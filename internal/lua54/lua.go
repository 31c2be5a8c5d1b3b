// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

// Package lua54 is the raw binding to the Lua 5.4 runtime shim.
// Nothing in this package validates its arguments:
// callers must check slots and stack space first.
package lua54

import (
	"fmt"
	"runtime/cgo"
	"unsafe"
)

// #cgo pkg-config: lua5.4
// #include <stdlib.h>
// #include <stddef.h>
// #include <stdint.h>
// #include "lua.h"
// #include "vm.h"
//
// bool luavm_nativetrampoline(luavm_VM *vm, uint64_t data);
// void luavm_errortrampoline(luavm_VM *vm, luavm_Result res, const char *file, int line, const char *error);
// luavm_ImportResult luavm_importtrampoline(luavm_VM *vm, const char *module_name);
// void luavm_finalizetrampoline(uintptr_t user_data);
//
// static luavm_Result evalgostring(luavm_VM *vm, const char *path, const char *module, _GoString_ src) {
//   return luavm_evalstringmodule(vm, path, module, _GoStringPtr(src), _GoStringLen(src));
// }
//
// static luavm_Result compilegostring(luavm_VM *vm, const char *path, _GoString_ src, luavm_Buffer *out) {
//   return luavm_compile(vm, path, _GoStringPtr(src), _GoStringLen(src), out);
// }
//
// static void pushgostring(luavm_VM *vm, _GoString_ s) {
//   luavm_pushstringsz(vm, _GoStringPtr(s), _GoStringLen(s));
// }
//
// static void raisegostring(luavm_VM *vm, _GoString_ s) {
//   luavm_raise(vm, _GoStringPtr(s), _GoStringLen(s));
// }
//
// static void setcallbacks(luavm_Conf *conf, uintptr_t data) {
//   conf->error_callback = luavm_errortrampoline;
//   conf->import_callback = luavm_importtrampoline;
//   conf->custom_data = data;
// }
//
// static bool registergonative(luavm_VM *vm, const char *module, const char *name, uint64_t id) {
//   return luavm_registernative(vm, module, name, luavm_nativetrampoline, id);
// }
//
// static void pushgonative(luavm_VM *vm, uint64_t id) {
//   luavm_pushnative(vm, luavm_nativetrampoline, id);
// }
//
// static void setgonative(luavm_NativeReg *reg, size_t i, const char *cls, const char *name, uint64_t id) {
//   reg[i].cls = cls;
//   reg[i].name = name;
//   reg[i].fn = luavm_nativetrampoline;
//   reg[i].data = id;
// }
//
// static void setfinalizer(luavm_ImportResult *res, uintptr_t data) {
//   res->finalize = luavm_finalizetrampoline;
//   res->user_data = data;
// }
import "C"

// Module names always present in an initialized runtime.
const (
	CoreModule = C.LUAVM_CORE_MODULE
	MainModule = C.LUAVM_MAIN_MODULE
)

// MinNativeStack is the number of free slots
// guaranteed at entry to a native or an import callback.
const MinNativeStack = C.LUAVM_MIN_NATIVE_STACK_SZ

// VersionNum is the runtime's version number (major*100 + minor).
const VersionNum = C.LUA_VERSION_NUM

// Result is a status code from evaluation, calls, and compilation.
type Result C.luavm_Result

const (
	Success        Result = C.LUAVM_SUCCESS
	SyntaxErr      Result = C.LUAVM_SYNTAX_ERR
	CompileErr     Result = C.LUAVM_COMPILE_ERR
	RuntimeErr     Result = C.LUAVM_RUNTIME_ERR
	DeserializeErr Result = C.LUAVM_DESERIALIZE_ERR
	VersionErr     Result = C.LUAVM_VERSION_ERR
)

type Type C.int

const (
	TypeNone          Type = C.LUA_TNONE
	TypeNil           Type = C.LUA_TNIL
	TypeBoolean       Type = C.LUA_TBOOLEAN
	TypeLightUserdata Type = C.LUA_TLIGHTUSERDATA
	TypeNumber        Type = C.LUA_TNUMBER
	TypeString        Type = C.LUA_TSTRING
	TypeTable         Type = C.LUA_TTABLE
	TypeFunction      Type = C.LUA_TFUNCTION
	TypeUserdata      Type = C.LUA_TUSERDATA
	TypeThread        Type = C.LUA_TTHREAD
)

func (tp Type) String() string {
	switch tp {
	case TypeNone:
		return "no value"
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeLightUserdata, TypeUserdata:
		return "userdata"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeThread:
		return "thread"
	default:
		return fmt.Sprintf("lua.Type(%d)", C.int(tp))
	}
}

// Callbacks receives the calls the runtime makes into the host.
// Implementations must not panic:
// a panic cannot unwind through the runtime's C frames.
type Callbacks interface {
	// ReportError is called once for every failed evaluation, call, or compilation.
	// line is zero or negative if the message carries no position.
	ReportError(vm VM, res Result, file string, line int, msg string)
	// Import resolves a module requested by a script.
	// A nil result means the module was not found.
	Import(vm VM, name string) *ImportResult
	// CallNative runs the native registered with the given ID.
	// It returns true with the result on top of the stack
	// or false with an exception on top of the stack.
	CallNative(vm VM, id uint64) bool
}

// Conf holds the scalar configuration of a new runtime.
type Conf struct {
	StartingStackSize      int
	FirstGCCollectionPoint int
	HeapGrowRate           int
}

// DefaultConf returns the shim's default configuration.
func DefaultConf() Conf {
	c := C.luavm_getconf()
	return Conf{
		StartingStackSize:      int(c.starting_stack_sz),
		FirstGCCollectionPoint: int(c.first_gc_collection_point),
		HeapGrowRate:           int(c.heap_grow_rate),
	}
}

// VM is a handle to a runtime instance.
// The zero value is a nil handle.
type VM struct {
	ptr *C.luavm_VM
}

// New allocates a runtime without initializing its standard library.
// The callbacks are reachable from the runtime's custom data
// until [VM.Free] is called.
// New panics if the runtime could not be allocated.
func New(conf Conf, cb Callbacks) VM {
	c := C.luavm_getconf()
	c.starting_stack_sz = C.size_t(max(conf.StartingStackSize, 0))
	c.first_gc_collection_point = C.size_t(max(conf.FirstGCCollectionPoint, 0))
	c.heap_grow_rate = C.int(conf.HeapGrowRate)
	data := cgo.NewHandle(cb)
	C.setcallbacks(&c, C.uintptr_t(data))
	ptr := C.luavm_new(&c)
	if ptr == nil {
		data.Delete()
		panic("luavm: could not allocate memory for new runtime")
	}
	return VM{ptr}
}

// FromPointer returns the handle for a raw luavm_VM pointer.
func FromPointer(p unsafe.Pointer) VM {
	return VM{(*C.luavm_VM)(p)}
}

// Pointer returns the raw luavm_VM pointer.
func (vm VM) Pointer() unsafe.Pointer {
	return unsafe.Pointer(vm.ptr)
}

func (vm VM) IsNil() bool {
	return vm.ptr == nil
}

// Callbacks returns the callbacks given to [New].
func (vm VM) Callbacks() Callbacks {
	return callbacksFor(vm.ptr)
}

func callbacksFor(ptr *C.luavm_VM) Callbacks {
	return cgo.Handle(C.luavm_getcustomdata(ptr)).Value().(Callbacks)
}

// InitRuntime loads the standard library and the module system.
func (vm VM) InitRuntime() {
	C.luavm_initruntime(vm.ptr)
}

// Free releases the runtime and then the callbacks handle.
func (vm VM) Free() {
	data := cgo.Handle(C.luavm_getcustomdata(vm.ptr))
	C.luavm_free(vm.ptr)
	data.Delete()
}

// Break requests that the running evaluation stop at its next safe point.
// It is safe to call from any goroutine.
func (vm VM) Break() {
	C.luavm_evalbreak(vm.ptr)
}

// Eval evaluates a text or binary chunk in the named module.
// An empty module name evaluates in the main module.
func (vm VM) Eval(path, module string, code []byte) Result {
	pathC := C.CString(path)
	defer C.free(unsafe.Pointer(pathC))
	moduleC := cStringOrNil(module)
	defer C.free(unsafe.Pointer(moduleC))
	codeC := (*C.char)(unsafe.Pointer(unsafe.SliceData(code)))
	return Result(C.luavm_evalmodule(vm.ptr, pathC, moduleC, codeC, C.size_t(len(code))))
}

// EvalString evaluates a text chunk in the named module.
func (vm VM) EvalString(path, module string, src string) Result {
	pathC := C.CString(path)
	defer C.free(unsafe.Pointer(pathC))
	moduleC := cStringOrNil(module)
	defer C.free(unsafe.Pointer(moduleC))
	return Result(C.evalgostring(vm.ptr, pathC, moduleC, src))
}

// cStringOrNil returns a C copy of s, or nil if s is empty.
func cStringOrNil(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}

// Call calls the value below the top argc values.
func (vm VM) Call(argc uint8) Result {
	return Result(C.luavm_call(vm.ptr, C.uint8_t(argc)))
}

// Compile compiles the source text into a binary chunk.
func (vm VM) Compile(path string, src string) ([]byte, Result) {
	pathC := C.CString(path)
	defer C.free(unsafe.Pointer(pathC))
	var buf C.luavm_Buffer
	res := Result(C.compilegostring(vm.ptr, pathC, src, &buf))
	if res != Success {
		return nil, res
	}
	defer C.luavm_bufferfree(&buf)
	return C.GoBytes(unsafe.Pointer(buf.data), C.int(buf.size)), Success
}

// GetGlobal pushes the named global of a module.
// If it is not defined, GetGlobal pushes an exception and returns false.
func (vm VM) GetGlobal(module, name string) bool {
	moduleC := C.CString(module)
	defer C.free(unsafe.Pointer(moduleC))
	nameC := C.CString(name)
	defer C.free(unsafe.Pointer(nameC))
	return bool(C.luavm_getglobal(vm.ptr, moduleC, nameC))
}

// SetGlobal pops the top value and stores it as a global of the module.
// It returns false if the module does not exist.
func (vm VM) SetGlobal(module, name string) bool {
	moduleC := C.CString(module)
	defer C.free(unsafe.Pointer(moduleC))
	nameC := C.CString(name)
	defer C.free(unsafe.Pointer(nameC))
	return bool(C.luavm_setglobal(vm.ptr, moduleC, nameC))
}

// RegisterNative stores a native with the given ID
// as a global of the module.
func (vm VM) RegisterNative(module, name string, id uint64) bool {
	moduleC := C.CString(module)
	defer C.free(unsafe.Pointer(moduleC))
	nameC := C.CString(name)
	defer C.free(unsafe.Pointer(nameC))
	return bool(C.registergonative(vm.ptr, moduleC, nameC, C.uint64_t(id)))
}

// PushNative pushes a function that calls the native with the given ID.
func (vm VM) PushNative(id uint64) {
	C.pushgonative(vm.ptr, C.uint64_t(id))
}

func (vm VM) ValidateSlot(slot int) bool {
	return bool(C.luavm_validateslot(vm.ptr, C.int(slot)))
}

func (vm VM) ValidateStack() bool {
	return bool(C.luavm_validatestack(vm.ptr))
}

func (vm VM) EnsureStack(needed int) bool {
	return bool(C.luavm_ensurestack(vm.ptr, C.size_t(needed)))
}

func (vm VM) Top() int {
	return int(C.luavm_top(vm.ptr))
}

func (vm VM) Pop() {
	C.luavm_pop(vm.ptr)
}

func (vm VM) PopN(n int) {
	C.luavm_popn(vm.ptr, C.int(n))
}

func (vm VM) PushNumber(n float64) {
	C.luavm_pushnumber(vm.ptr, C.double(n))
}

func (vm VM) PushBoolean(b bool) {
	C.luavm_pushboolean(vm.ptr, C.bool(b))
}

func (vm VM) PushString(s string) {
	C.pushgostring(vm.ptr, s)
}

func (vm VM) PushNull() {
	C.luavm_pushnull(vm.ptr)
}

func (vm VM) PushValue(slot int) {
	C.luavm_pushvalue(vm.ptr, C.int(slot))
}

func (vm VM) PushTable() {
	C.luavm_pushtable(vm.ptr)
}

func (vm VM) Type(slot int) Type {
	return Type(C.luavm_type(vm.ptr, C.int(slot)))
}

func (vm VM) IsNumber(slot int) bool {
	return bool(C.luavm_isnumber(vm.ptr, C.int(slot)))
}

func (vm VM) IsString(slot int) bool {
	return bool(C.luavm_isstring(vm.ptr, C.int(slot)))
}

func (vm VM) IsBoolean(slot int) bool {
	return bool(C.luavm_isboolean(vm.ptr, C.int(slot)))
}

func (vm VM) IsNull(slot int) bool {
	return bool(C.luavm_isnull(vm.ptr, C.int(slot)))
}

func (vm VM) IsTable(slot int) bool {
	return bool(C.luavm_istable(vm.ptr, C.int(slot)))
}

func (vm VM) IsFunction(slot int) bool {
	return bool(C.luavm_isfunction(vm.ptr, C.int(slot)))
}

func (vm VM) GetNumber(slot int) float64 {
	return float64(C.luavm_getnumber(vm.ptr, C.int(slot)))
}

func (vm VM) GetBoolean(slot int) bool {
	return bool(C.luavm_getboolean(vm.ptr, C.int(slot)))
}

// GetString returns a pointer to the runtime's copy of the string at slot.
// The pointer is valid as long as the value stays on the stack.
func (vm VM) GetString(slot int) (*byte, int) {
	var n C.size_t
	p := C.luavm_getstring(vm.ptr, C.int(slot), &n)
	return (*byte)(unsafe.Pointer(p)), int(n)
}

// CheckNumber reports whether the value at slot is a number.
// If not, it pushes an exception naming the value.
func (vm VM) CheckNumber(slot int, name string) bool {
	nameC := C.CString(name)
	defer C.free(unsafe.Pointer(nameC))
	return bool(C.luavm_checknumber(vm.ptr, C.int(slot), nameC))
}

func (vm VM) CheckString(slot int, name string) bool {
	nameC := C.CString(name)
	defer C.free(unsafe.Pointer(nameC))
	return bool(C.luavm_checkstring(vm.ptr, C.int(slot), nameC))
}

func (vm VM) CheckBoolean(slot int, name string) bool {
	nameC := C.CString(name)
	defer C.free(unsafe.Pointer(nameC))
	return bool(C.luavm_checkboolean(vm.ptr, C.int(slot), nameC))
}

// Raise pushes an exception with the given message
// prefixed with the current script position.
func (vm VM) Raise(msg string) {
	C.raisegostring(vm.ptr, msg)
}

// NativeReg names a native to install in a module before its code runs.
// An empty Class installs the native as a module global;
// otherwise it is stored in a table of that name.
type NativeReg struct {
	Class string
	Name  string
	ID    uint64
}

// ImportResult is a resolved module returned from [Callbacks.Import].
type ImportResult struct {
	// Code is a text or binary chunk.
	// If Code is nil, the import fails with Err.
	Code    []byte
	Path    string
	Natives []NativeReg
	Err     string
	// Release is called exactly once after the runtime is done with Code,
	// whether or not the module loaded.
	Release func()
}

// importAllocs is the C memory backing a single [ImportResult].
type importAllocs struct {
	ptrs    []unsafe.Pointer
	release func()
}

func (a *importAllocs) cString(s string) *C.char {
	p := C.CString(s)
	a.ptrs = append(a.ptrs, unsafe.Pointer(p))
	return p
}

func (a *importAllocs) free() {
	for _, p := range a.ptrs {
		C.free(p)
	}
	a.ptrs = nil
	if a.release != nil {
		a.release()
		a.release = nil
	}
}

// export copies r into C memory.
// The runtime calls the finalizer when it no longer needs the memory.
func (r *ImportResult) export() C.luavm_ImportResult {
	allocs := &importAllocs{release: r.Release}
	var res C.luavm_ImportResult
	if r.Code == nil {
		if r.Err != "" {
			res.error = allocs.cString(r.Err)
		}
	} else {
		// malloc(0) may return NULL, which would read as "not found".
		code := C.malloc(C.size_t(max(len(r.Code), 1)))
		allocs.ptrs = append(allocs.ptrs, code)
		copy(unsafe.Slice((*byte)(code), len(r.Code)), r.Code)
		res.code = (*C.char)(code)
		res.code_len = C.size_t(len(r.Code))
		if r.Path != "" {
			res.path = allocs.cString(r.Path)
		}
		if len(r.Natives) > 0 {
			reg := (*C.luavm_NativeReg)(C.calloc(C.size_t(len(r.Natives)+1), C.sizeof_luavm_NativeReg))
			allocs.ptrs = append(allocs.ptrs, unsafe.Pointer(reg))
			for i, n := range r.Natives {
				var cls *C.char
				if n.Class != "" {
					cls = allocs.cString(n.Class)
				}
				C.setgonative(reg, C.size_t(i), cls, allocs.cString(n.Name), C.uint64_t(n.ID))
			}
			res.reg = reg
		}
	}
	C.setfinalizer(&res, C.uintptr_t(cgo.NewHandle(allocs)))
	return res
}
