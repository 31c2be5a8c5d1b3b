// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import "fmt"

// StackRef refers to a slot on a VM's stack.
// It stores the slot counted from the bottom of the frame,
// so it keeps referring to the same value as more values are pushed.
//
// A StackRef is borrowed from the VM:
// it must not be used after its value is popped
// or after the native call it was created in returns.
// [Deref] panics if the slot is no longer on the stack.
type StackRef struct {
	vm   *VM
	slot int
}

// Ref returns a reference to the value at slot.
func (vm *VM) Ref(slot int) StackRef {
	raw, _ := vm.checkSlot(slot)
	return StackRef{vm: vm, slot: absSlot(raw, slot)}
}

// TopRef returns a reference to the top value.
func (vm *VM) TopRef() StackRef {
	return vm.Ref(-1)
}

// PeekRef returns a reference to the nth value from the top.
// PeekRef(1) is the top value.
func (vm *VM) PeekRef(n int) StackRef {
	if n <= 0 {
		panic(fmt.Sprintf("luavm: PeekRef(%d)", n))
	}
	return vm.Ref(-n)
}

// Slot returns the slot the reference refers to,
// counted from the bottom of the frame starting at 0.
func (ref StackRef) Slot() int {
	return ref.slot
}

// Type returns the type of the referenced value.
func (ref StackRef) Type() Type {
	return ref.vm.Type(ref.slot)
}

// Deref converts the referenced value to T as [Get] does.
func Deref[T Value](ref StackRef) (T, bool) {
	if ref.vm == nil {
		panic("luavm: Deref of zero StackRef")
	}
	return Get[T](ref.vm, ref.slot)
}
