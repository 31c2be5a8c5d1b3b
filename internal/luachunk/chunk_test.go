// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	want := &Function{
		Source:       "@test.lua",
		IsVararg:     true,
		MaxStackSize: 2,
		Code: []Instruction{
			abc(OpVarargPrep, 0, 0, 0),
			asbx(OpLoadI, 0, 42),
			abc(OpReturn, 0, 1, 1),
		},
		Constants: []Constant{
			{Kind: ConstantInteger, Integer: 7},
			{Kind: ConstantShortString, Str: "hi"},
		},
		Upvalues:       []Upvalue{{Name: "_ENV", InStack: true}},
		Functions:      []*Function{},
		LineInfo:       []int8{1, 0, 0},
		AbsLineInfo:    []AbsLineInfo{},
		LocalVariables: []LocalVariable{},
	}
	got, err := Decode(encodeChunk(want))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode(...) (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	good := encodeChunk(&Function{
		Source:   "@test.lua",
		IsVararg: true,
		Code:     []Instruction{abc(OpReturn0, 0, 0, 0)},
		LineInfo: []int8{1},
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := Decode(nil); err == nil {
			t.Error("Decode(nil) did not return an error")
		}
	})
	t.Run("Truncated", func(t *testing.T) {
		for n := 0; n < len(good); n++ {
			if _, err := Decode(good[:n]); err == nil {
				t.Errorf("Decode(good[:%d]) did not return an error", n)
			}
		}
	})
	t.Run("TrailingData", func(t *testing.T) {
		data := append(append([]byte(nil), good...), 0)
		if _, err := Decode(data); err == nil {
			t.Error("Decode(...) did not return an error")
		}
	})
	t.Run("Version", func(t *testing.T) {
		data := append([]byte(nil), good...)
		data[len(Signature)] = 0x53
		_, err := Decode(data)
		if !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("Decode(...) = _, %v; want %v", err, ErrVersionMismatch)
		}
	})
	t.Run("Corrupted", func(t *testing.T) {
		data := append([]byte(nil), good...)
		data[len(Signature)+2] ^= 0xff
		_, err := Decode(data)
		if err == nil || errors.Is(err, ErrVersionMismatch) {
			t.Errorf("Decode(...) = _, %v; want format error", err)
		}
	})
}

func TestLine(t *testing.T) {
	f := &Function{
		LineDefined: 10,
		LineInfo:    []int8{1, AbsLineMarker, 2},
		AbsLineInfo: []AbsLineInfo{{PC: 1, Line: 50}},
	}
	tests := []struct {
		pc   int
		want int
	}{
		{0, 11},
		{1, 50},
		{2, 52},
		{3, -1},
	}
	for _, test := range tests {
		if got := f.Line(test.pc); got != test.want {
			t.Errorf("f.Line(%d) = %d; want %d", test.pc, got, test.want)
		}
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		i    Instruction
		want string
	}{
		{abc(OpMove, 1, 2, 0), "MOVE     \t1 2 0"},
		{asbx(OpLoadI, 0, -5), "LOADI    \t0 -5"},
		{abx(OpLoadK, 3, 1), "LOADK    \t3 1"},
		{abc(OpReturn0, 0, 0, 0), "RETURN0  \t0 0 0"},
		{Instruction(OpJMP) | Instruction(3+offsetJ)<<posA, "JMP      \t3"},
	}
	for _, test := range tests {
		if got := test.i.String(); got != test.want {
			t.Errorf("Instruction(%#08x).String() = %q; want %q", uint32(test.i), got, test.want)
		}
	}
}

func TestList(t *testing.T) {
	f := &Function{
		Source:       "@test.lua",
		IsVararg:     true,
		MaxStackSize: 2,
		Code: []Instruction{
			abc(OpVarargPrep, 0, 0, 0),
			abx(OpLoadK, 0, 0),
			abc(OpReturn, 0, 1, 1),
		},
		Constants: []Constant{{Kind: ConstantFloat, Float: 2}},
		Upvalues:  []Upvalue{{Name: "_ENV", InStack: true}},
		LineInfo:  []int8{1, 0, 1},
	}
	sb := new(strings.Builder)
	if err := List(sb, f, &ListOptions{Full: true}); err != nil {
		t.Fatal(err)
	}
	got := sb.String()
	for _, want := range []string{
		"\nmain <test.lua:0,0> (3 instructions for main)\n",
		"0+ params, 2 slots, 1 upvalue, 0 locals, 1 constant, 0 functions\n",
		"\t2\t[1]\tLOADK    \t0 0\t; 2.0\n",
		"\t3\t[2]\tRETURN   \t0 1 1\n",
		"constants (1) for main:\n\t0\tF\t2.0\n",
		"upvalues (1) for main:\n\t0\t_ENV\t1\t0\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("listing does not contain %q. Listing:\n%s", want, got)
		}
	}
}

func abc(op OpCode, a, b, c uint8) Instruction {
	return Instruction(op) | Instruction(a)<<posA | Instruction(b)<<posB | Instruction(c)<<posC
}

func abx(op OpCode, a uint8, bx int32) Instruction {
	return Instruction(op) | Instruction(a)<<posA | Instruction(bx)<<posBx
}

func asbx(op OpCode, a uint8, sbx int32) Instruction {
	return Instruction(op) | Instruction(a)<<posA | Instruction(sbx+offsetBx)<<posBx
}

// encodeChunk produces a little-endian chunk in the format of lua_dump.
func encodeChunk(f *Function) []byte {
	b := []byte(Signature)
	b = append(b, luacVersion, luacFormat)
	b = append(b, luacData...)
	b = append(b, 4, 8, 8)
	b = binary.LittleEndian.AppendUint64(b, luacInt)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(luacNum))
	b = append(b, byte(len(f.Upvalues)))
	return appendFunction(b, f, "")
}

func appendFunction(b []byte, f *Function, parentSource string) []byte {
	if f.Source == parentSource {
		b = appendVarint(b, 0)
	} else {
		b = appendString(b, f.Source)
	}
	b = appendVarint(b, f.LineDefined)
	b = appendVarint(b, f.LastLineDefined)
	vararg := byte(0)
	if f.IsVararg {
		vararg = 1
	}
	b = append(b, f.NumParams, vararg, f.MaxStackSize)
	b = appendVarint(b, len(f.Code))
	for _, i := range f.Code {
		b = binary.LittleEndian.AppendUint32(b, uint32(i))
	}
	b = appendVarint(b, len(f.Constants))
	for _, k := range f.Constants {
		b = append(b, byte(k.Kind))
		switch k.Kind {
		case ConstantInteger:
			b = binary.LittleEndian.AppendUint64(b, uint64(k.Integer))
		case ConstantFloat:
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(k.Float))
		case ConstantShortString, ConstantLongString:
			b = appendString(b, k.Str)
		}
	}
	b = appendVarint(b, len(f.Upvalues))
	for _, uv := range f.Upvalues {
		inStack := byte(0)
		if uv.InStack {
			inStack = 1
		}
		b = append(b, inStack, uv.Index, uv.Kind)
	}
	b = appendVarint(b, len(f.Functions))
	for _, fi := range f.Functions {
		b = appendFunction(b, fi, f.Source)
	}
	b = appendVarint(b, len(f.LineInfo))
	for _, delta := range f.LineInfo {
		b = append(b, byte(delta))
	}
	b = appendVarint(b, len(f.AbsLineInfo))
	for _, abs := range f.AbsLineInfo {
		b = appendVarint(b, abs.PC)
		b = appendVarint(b, abs.Line)
	}
	b = appendVarint(b, len(f.LocalVariables))
	for _, v := range f.LocalVariables {
		b = appendString(b, v.Name)
		b = appendVarint(b, v.StartPC)
		b = appendVarint(b, v.EndPC)
	}
	b = appendVarint(b, len(f.Upvalues))
	for _, uv := range f.Upvalues {
		b = appendString(b, uv.Name)
	}
	return b
}

func appendVarint(b []byte, x int) []byte {
	var buf [10]byte
	n := len(buf) - 1
	buf[n] = byte(x&0x7f) | 0x80
	for x >>= 7; x != 0; x >>= 7 {
		n--
		buf[n] = byte(x & 0x7f)
	}
	return append(b, buf[n:]...)
}

func appendString(b []byte, s string) []byte {
	b = appendVarint(b, len(s)+1)
	return append(b, s...)
}
