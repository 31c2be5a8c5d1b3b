// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"bytes"
	"fmt"
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	vm := newTestVM(t, nil)

	t.Run("Number", func(t *testing.T) {
		for _, n := range []float64{0, 1, -1, 0.5, math.MaxFloat64, math.Inf(-1)} {
			vm.PushNumber(n)
			got, ok := vm.GetNumber(-1)
			vm.Pop()
			if !ok || got != n {
				t.Errorf("round trip of %g = %g, %t", n, got, ok)
			}
		}
	})

	t.Run("Bytes", func(t *testing.T) {
		want := []byte("hello\x00world\xff")
		vm.PushBytes(want)
		defer vm.Pop()
		s, ok := vm.GetString(-1)
		if !ok {
			t.Fatalf("GetString(-1) on %v returned false", vm.Type(-1))
		}
		if !bytes.Equal(s.Bytes(), want) {
			t.Errorf("GetString(-1) = %q; want %q", s.Bytes(), want)
		}
		if s.Len() != len(want) {
			t.Errorf("s.Len() = %d; want %d", s.Len(), len(want))
		}
	})

	t.Run("EmptyString", func(t *testing.T) {
		vm.PushString("")
		defer vm.Pop()
		s, ok := vm.GetString(-1)
		if !ok || s.Len() != 0 || s.String() != "" {
			t.Errorf("GetString(-1) = %q, %t; want \"\", true", s.String(), ok)
		}
	})

	t.Run("Boolean", func(t *testing.T) {
		for _, b := range []bool{false, true} {
			vm.PushBoolean(b)
			got, ok := vm.GetBoolean(-1)
			vm.Pop()
			if !ok || got != b {
				t.Errorf("round trip of %t = %t, %t", b, got, ok)
			}
		}
	})

	t.Run("NoStringConversion", func(t *testing.T) {
		vm.PushString("42")
		defer vm.Pop()
		if n, ok := vm.GetNumber(-1); ok {
			t.Errorf("GetNumber on string = %g, true; want false", n)
		}
	})

	if got := vm.Top(); got != 0 {
		t.Errorf("vm.Top() = %d after subtests; want 0", got)
	}
}

func TestGeneric(t *testing.T) {
	vm := newTestVM(t, nil)

	Push(vm, 42)
	if got, ok := Get[int](vm, -1); !ok || got != 42 {
		t.Errorf("Get[int] = %d, %t; want 42, true", got, ok)
	}
	if got, ok := Get[float32](vm, -1); !ok || got != 42 {
		t.Errorf("Get[float32] = %g, %t; want 42, true", got, ok)
	}
	if _, ok := Get[string](vm, -1); ok {
		t.Error("Get[string] on number returned true")
	}
	vm.Pop()

	Push(vm, 3.75)
	if got, _ := Get[int](vm, -1); got != 3 {
		t.Errorf("Get[int](3.75) = %d; want 3", got)
	}
	vm.Pop()

	type myString string
	Push(vm, myString("abc"))
	if got, ok := Get[myString](vm, -1); !ok || got != "abc" {
		t.Errorf("Get[myString] = %q, %t; want \"abc\", true", got, ok)
	}
	if got, ok := Get[[]byte](vm, -1); !ok || string(got) != "abc" {
		t.Errorf("Get[[]byte] = %q, %t; want \"abc\", true", got, ok)
	}
	s, ok := Get[String](vm, -1)
	if !ok {
		t.Fatal("Get[String] returned false")
	}
	Push(vm, s)
	other, _ := Get[String](vm, -1)
	if !s.Equal(other) {
		t.Errorf("pushed String %q != %q", other, s)
	}
	vm.PopN(2)

	Push(vm, true)
	if got, ok := Get[bool](vm, -1); !ok || !got {
		t.Errorf("Get[bool] = %t, %t; want true, true", got, ok)
	}
	if _, err := CheckGet[string](vm, -1, "flag"); !IsRuntime(err) {
		t.Errorf("CheckGet[string] on boolean = %v; want runtime error", err)
	}
	vm.PopN(2)

	if got := vm.Top(); got != 0 {
		t.Errorf("vm.Top() = %d; want 0", got)
	}
}

func TestStackLimits(t *testing.T) {
	t.Run("Underflow", func(t *testing.T) {
		vm := newTestVM(t, nil)
		vm.PushNull()
		vm.Pop()
		requirePanic(t, "luavm: stack underflow", vm.Pop)
		requirePanic(t, "luavm: stack underflow", func() { vm.PopN(1) })
	})

	t.Run("InvalidSlot", func(t *testing.T) {
		vm := newTestVM(t, nil)
		vm.PushNumber(1)
		if !vm.ValidateSlot(0) || !vm.ValidateSlot(-1) {
			t.Error("slot 0 not valid with one value")
		}
		if got, ok := vm.GetNumber(0); !ok || got != 1 {
			t.Errorf("vm.GetNumber(0) = %g, %t; want 1, true", got, ok)
		}
		for _, slot := range []int{1, 2, -2} {
			if vm.ValidateSlot(slot) {
				t.Errorf("vm.ValidateSlot(%d) = true with one value", slot)
			}
			requirePanic(t, fmt.Sprintf("luavm: invalid slot %d", slot), func() { vm.GetNumber(slot) })
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		vm := newTestVM(t, nil)
		for vm.ValidateStack() {
			vm.PushNull()
		}
		n := vm.Top()
		requirePanic(t, "luavm: stack overflow", vm.PushNull)
		if !vm.EnsureStack(10) {
			t.Fatal("vm.EnsureStack(10) = false")
		}
		for range 10 {
			vm.PushNumber(1)
		}
		if got, want := vm.Top(), n+10; got != want {
			t.Errorf("vm.Top() = %d; want %d", got, want)
		}
	})
}

func TestStackRef(t *testing.T) {
	vm := newTestVM(t, nil)
	vm.PushNumber(1)
	ref := vm.TopRef()
	vm.PushString("x")
	if got := ref.Slot(); got != 0 {
		t.Errorf("ref.Slot() = %d; want 0", got)
	}
	if got := ref.Type(); got != TypeNumber {
		t.Errorf("ref.Type() = %v; want %v", got, TypeNumber)
	}
	if got, ok := Deref[float64](ref); !ok || got != 1 {
		t.Errorf("Deref[float64](ref) = %g, %t; want 1, true", got, ok)
	}
	if got := vm.PeekRef(2).Slot(); got != 0 {
		t.Errorf("vm.PeekRef(2).Slot() = %d; want 0", got)
	}
	if got := vm.Ref(1).Slot(); got != 1 {
		t.Errorf("vm.Ref(1).Slot() = %d; want 1", got)
	}
	if got, _ := Deref[string](vm.PeekRef(1)); got != "x" {
		t.Errorf("Deref[string](vm.PeekRef(1)) = %q; want \"x\"", got)
	}
	vm.PopN(2)
	requirePanic(t, "luavm: invalid slot 0", func() { Deref[float64](ref) })
}

func TestTypes(t *testing.T) {
	vm := newTestVM(t, nil)
	vm.PushNull()
	vm.PushBoolean(false)
	vm.PushNumber(0)
	vm.PushString("")
	vm.PushTable()
	vm.PushNative(func(vm *VM) error { return nil })

	want := []Type{TypeNil, TypeBoolean, TypeNumber, TypeString, TypeTable, TypeFunction}
	for i, tp := range want {
		if got := vm.Type(i); got != tp {
			t.Errorf("vm.Type(%d) = %v; want %v", i, got, tp)
		}
		if got := vm.Type(i - len(want)); got != tp {
			t.Errorf("vm.Type(%d) = %v; want %v", i-len(want), got, tp)
		}
	}
	if !vm.IsNull(0) || !vm.IsBoolean(1) || !vm.IsNumber(2) || !vm.IsString(3) || !vm.IsTable(4) || !vm.IsFunction(5) {
		t.Error("Is* predicates disagree with Type")
	}
	if vm.IsString(2) {
		t.Error("vm.IsString(number) = true")
	}
	if got, want := TypeFunction.String(), "function"; got != want {
		t.Errorf("TypeFunction.String() = %q; want %q", got, want)
	}
}

func requirePanic(tb testing.TB, want string, f func()) {
	tb.Helper()
	defer func() {
		tb.Helper()
		v := recover()
		if v == nil {
			tb.Errorf("did not panic; want panic(%q)", want)
			return
		}
		if got := fmt.Sprint(v); got != want {
			tb.Errorf("panic(%q); want panic(%q)", got, want)
		}
	}()
	f()
}
