// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"fmt"
	"unsafe"

	"zombiezen.com/go/luavm/internal/lua54"
)

// Type is the type of a value on the stack.
type Type int

// Value types.
const (
	TypeNone          Type = Type(lua54.TypeNone)
	TypeNil           Type = Type(lua54.TypeNil)
	TypeBoolean       Type = Type(lua54.TypeBoolean)
	TypeLightUserdata Type = Type(lua54.TypeLightUserdata)
	TypeNumber        Type = Type(lua54.TypeNumber)
	TypeString        Type = Type(lua54.TypeString)
	TypeTable         Type = Type(lua54.TypeTable)
	TypeFunction      Type = Type(lua54.TypeFunction)
	TypeUserdata      Type = Type(lua54.TypeUserdata)
	TypeThread        Type = Type(lua54.TypeThread)
)

// String returns the name of the type as Lua's type function would.
func (tp Type) String() string {
	return lua54.Type(tp).String()
}

// Top returns the index of the top value on the stack,
// which is also the number of values on the stack.
func (vm *VM) Top() int {
	return vm.handle().Top()
}

// ValidateSlot reports whether slot refers to a value on the stack.
// Non-negative slots count up from the bottom of the current frame:
// 0 is the first value.
// Negative slots count down from the top: -1 is the top value.
func (vm *VM) ValidateSlot(slot int) bool {
	return vm.handle().ValidateSlot(luaIndex(slot))
}

// ValidateStack reports whether there is room to push a value.
func (vm *VM) ValidateStack() bool {
	return vm.handle().ValidateStack()
}

// EnsureStack makes room to push n more values.
// It returns false if the stack cannot grow that large.
func (vm *VM) EnsureStack(n int) bool {
	if n < 0 {
		panic("luavm: EnsureStack with negative size")
	}
	return vm.handle().EnsureStack(n)
}

// Pop removes the top value from the stack.
func (vm *VM) Pop() {
	raw := vm.handle()
	if raw.Top() < 1 {
		panic("luavm: stack underflow")
	}
	raw.Pop()
}

// PopN removes the top n values from the stack.
func (vm *VM) PopN(n int) {
	raw := vm.handle()
	if n < 0 || n > raw.Top() {
		panic("luavm: stack underflow")
	}
	raw.PopN(n)
}

// checkSlot panics if slot is not a valid index.
// It returns the runtime's index for slot.
func (vm *VM) checkSlot(slot int) (lua54.VM, int) {
	raw := vm.handle()
	idx := luaIndex(slot)
	if !raw.ValidateSlot(idx) {
		panic(fmt.Sprintf("luavm: invalid slot %d", slot))
	}
	return raw, idx
}

// luaIndex converts a slot to the runtime's 1-based index.
func luaIndex(slot int) int {
	if slot >= 0 {
		return slot + 1
	}
	return slot
}

// checkPush panics if a value cannot be pushed.
func (vm *VM) checkPush() lua54.VM {
	raw := vm.handle()
	if !raw.ValidateStack() {
		panic("luavm: stack overflow")
	}
	return raw
}

func (vm *VM) PushNumber(n float64) {
	vm.checkPush().PushNumber(n)
}

func (vm *VM) PushBoolean(b bool) {
	vm.checkPush().PushBoolean(b)
}

// PushString pushes a copy of s.
func (vm *VM) PushString(s string) {
	vm.checkPush().PushString(s)
}

// PushBytes pushes a copy of b as a string.
func (vm *VM) PushBytes(b []byte) {
	vm.checkPush().PushString(unsafe.String(unsafe.SliceData(b), len(b)))
}

// PushNull pushes nil.
func (vm *VM) PushNull() {
	vm.checkPush().PushNull()
}

// PushValue pushes a copy of the value at slot.
func (vm *VM) PushValue(slot int) {
	_, idx := vm.checkSlot(slot)
	vm.checkPush().PushValue(idx)
}

// PushTable pushes a new empty table.
func (vm *VM) PushTable() {
	vm.checkPush().PushTable()
}

// PushNative pushes f as a Lua function.
func (vm *VM) PushNative(f Native) {
	raw := vm.checkPush()
	raw.PushNative(vm.state().addNative(f))
}

// Type returns the type of the value at slot.
func (vm *VM) Type(slot int) Type {
	raw, idx := vm.checkSlot(slot)
	return Type(raw.Type(idx))
}

func (vm *VM) IsNumber(slot int) bool {
	raw, idx := vm.checkSlot(slot)
	return raw.IsNumber(idx)
}

func (vm *VM) IsString(slot int) bool {
	raw, idx := vm.checkSlot(slot)
	return raw.IsString(idx)
}

func (vm *VM) IsBoolean(slot int) bool {
	raw, idx := vm.checkSlot(slot)
	return raw.IsBoolean(idx)
}

func (vm *VM) IsNull(slot int) bool {
	raw, idx := vm.checkSlot(slot)
	return raw.IsNull(idx)
}

func (vm *VM) IsTable(slot int) bool {
	raw, idx := vm.checkSlot(slot)
	return raw.IsTable(idx)
}

func (vm *VM) IsFunction(slot int) bool {
	raw, idx := vm.checkSlot(slot)
	return raw.IsFunction(idx)
}

// GetNumber returns the number at slot.
// It returns false if the value is not a number.
// Strings are never converted.
func (vm *VM) GetNumber(slot int) (float64, bool) {
	raw, idx := vm.checkSlot(slot)
	if !raw.IsNumber(idx) {
		return 0, false
	}
	return raw.GetNumber(idx), true
}

// GetBoolean returns the boolean at slot.
// It returns false if the value is not a boolean.
func (vm *VM) GetBoolean(slot int) (b, ok bool) {
	raw, idx := vm.checkSlot(slot)
	if !raw.IsBoolean(idx) {
		return false, false
	}
	return raw.GetBoolean(idx), true
}

// GetString returns a view of the string at slot.
// It returns false if the value is not a string.
func (vm *VM) GetString(slot int) (String, bool) {
	raw, idx := vm.checkSlot(slot)
	if !raw.IsString(idx) {
		return String{}, false
	}
	p, n := raw.GetString(idx)
	return String{p: p, n: n}, true
}

// CheckNumber returns the number at slot.
// If the value is not a number,
// CheckNumber pushes an error value naming the value
// and returns a [Runtime] error.
// A native can return the error as-is to raise the error value.
func (vm *VM) CheckNumber(slot int, name string) (float64, error) {
	checkName("name", name)
	raw, idx := vm.checkSlot(slot)
	raw.EnsureStack(1)
	if !raw.CheckNumber(idx, name) {
		return 0, raisedError(raw)
	}
	return raw.GetNumber(idx), nil
}

// CheckString is like [VM.CheckNumber] for strings.
func (vm *VM) CheckString(slot int, name string) (String, error) {
	checkName("name", name)
	raw, idx := vm.checkSlot(slot)
	raw.EnsureStack(1)
	if !raw.CheckString(idx, name) {
		return String{}, raisedError(raw)
	}
	p, n := raw.GetString(idx)
	return String{p: p, n: n}, nil
}

// CheckBoolean is like [VM.CheckNumber] for booleans.
func (vm *VM) CheckBoolean(slot int, name string) (bool, error) {
	checkName("name", name)
	raw, idx := vm.checkSlot(slot)
	raw.EnsureStack(1)
	if !raw.CheckBoolean(idx, name) {
		return false, raisedError(raw)
	}
	return raw.GetBoolean(idx), nil
}

// raisedError returns the error for the value on top of the stack.
func raisedError(raw lua54.VM) *Error {
	p, n := raw.GetString(-1)
	msg := "(error object is not a string)"
	if p != nil {
		msg = string(unsafe.Slice(p, n))
	}
	return &Error{
		Kind:    Runtime,
		Message: msg,
		raised:  true,
	}
}

// absSlot converts a valid slot to an offset from the bottom of the frame.
func absSlot(raw lua54.VM, slot int) int {
	if slot >= 0 {
		return slot
	}
	return raw.Top() + slot
}
