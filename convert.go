// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"fmt"
	"reflect"
)

// Number is the set of Go numeric types that convert to and from Lua numbers.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Value is the set of Go types that convert to and from stack values.
type Value interface {
	Number | ~bool | ~string | ~[]byte | String
}

// Push pushes v onto the stack.
// Numbers are converted to float64.
// Strings and byte slices are copied.
func Push[T Value](vm *VM, v T) {
	if s, ok := any(v).(String); ok {
		vm.PushBytes(s.Bytes())
		return
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		vm.PushNumber(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		vm.PushNumber(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		vm.PushNumber(rv.Float())
	case reflect.Bool:
		vm.PushBoolean(rv.Bool())
	case reflect.String:
		vm.PushString(rv.String())
	case reflect.Slice:
		vm.PushBytes(rv.Bytes())
	default:
		panic(fmt.Sprintf("luavm: cannot push %T", v))
	}
}

// Get converts the value at slot to T.
// It returns false if the value does not have a matching type.
// Numbers are converted with Go conversion rules,
// so a fractional or out-of-range number is truncated.
// A String result refers to the runtime's memory;
// other strings and byte slices are copies.
func Get[T Value](vm *VM, slot int) (T, bool) {
	var v T
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := vm.GetNumber(slot)
		if !ok {
			return v, false
		}
		rv.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := vm.GetNumber(slot)
		if !ok {
			return v, false
		}
		rv.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, ok := vm.GetNumber(slot)
		if !ok {
			return v, false
		}
		rv.SetFloat(n)
	case reflect.Bool:
		b, ok := vm.GetBoolean(slot)
		if !ok {
			return v, false
		}
		rv.SetBool(b)
	case reflect.String:
		s, ok := vm.GetString(slot)
		if !ok {
			return v, false
		}
		rv.SetString(s.String())
	case reflect.Slice:
		s, ok := vm.GetString(slot)
		if !ok {
			return v, false
		}
		rv.SetBytes(append([]byte{}, s.Bytes()...))
	case reflect.Struct:
		s, ok := vm.GetString(slot)
		if !ok {
			return v, false
		}
		rv.Set(reflect.ValueOf(s))
	default:
		panic(fmt.Sprintf("luavm: cannot get %T", v))
	}
	return v, true
}

// CheckGet is like [Get], but if the value does not have a matching type,
// it pushes an error value and returns a [Runtime] error
// as [VM.CheckNumber] does.
func CheckGet[T Value](vm *VM, slot int, name string) (T, error) {
	var v T
	var err error
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool:
		_, err = vm.CheckBoolean(slot, name)
	case reflect.String, reflect.Slice, reflect.Struct:
		_, err = vm.CheckString(slot, name)
	default:
		_, err = vm.CheckNumber(slot, name)
	}
	if err != nil {
		return v, err
	}
	v, _ = Get[T](vm, slot)
	return v, nil
}
