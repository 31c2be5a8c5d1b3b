// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"bytes"
	"unsafe"
)

// String is a read-only view of a string on the stack.
// It is only valid while the value stays on the stack and the runtime is open.
type String struct {
	p *byte
	n int
}

// Bytes returns the string's bytes without copying.
// The caller must not modify or retain the slice.
func (s String) Bytes() []byte {
	if s.p == nil {
		return nil
	}
	return unsafe.Slice(s.p, s.n)
}

// String returns a copy of the string.
func (s String) String() string {
	return string(s.Bytes())
}

// Len returns the length of the string in bytes.
func (s String) Len() int {
	return s.n
}

// Equal reports whether s and other hold the same bytes.
func (s String) Equal(other String) bool {
	return bytes.Equal(s.Bytes(), other.Bytes())
}
