// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Signature is the prefix of every binary chunk.
const Signature = "\x1bLua"

const (
	luacVersion byte    = 5*16 + 4
	luacFormat  byte    = 0
	luacData            = "\x19\x93\r\n\x1a\n"
	luacInt             = 0x5678
	luacNum     float64 = 370.5
)

// ErrVersionMismatch is returned by [Decode]
// for a chunk produced by a different version of Lua.
var ErrVersionMismatch = errors.New("version mismatch")

// Function is a decoded function prototype.
type Function struct {
	// Source is the chunk name the function was compiled with,
	// like "@main.lua".
	Source          string
	LineDefined     int
	LastLineDefined int
	NumParams       uint8
	IsVararg        bool
	// MaxStackSize is the number of registers the function uses.
	MaxStackSize uint8

	Code      []Instruction
	Constants []Constant
	Upvalues  []Upvalue
	Functions []*Function

	// LineInfo holds the line delta of each instruction from its predecessor.
	// Entries equal to [AbsLineMarker] have an entry in AbsLineInfo instead.
	LineInfo       []int8
	AbsLineInfo    []AbsLineInfo
	LocalVariables []LocalVariable
}

// AbsLineMarker is the [Function.LineInfo] entry
// for instructions whose line is stored in [Function.AbsLineInfo].
const AbsLineMarker int8 = -0x80

// AbsLineInfo is an absolute line number for an instruction.
type AbsLineInfo struct {
	PC   int
	Line int
}

// Upvalue describes an upvalue of a [Function].
type Upvalue struct {
	Name string
	// InStack is true if the upvalue refers to a register of the enclosing function
	// and false if it refers to one of the enclosing function's upvalues.
	InStack bool
	Index   uint8
	Kind    uint8
}

// LocalVariable describes a local variable's name and scope.
type LocalVariable struct {
	Name    string
	StartPC int
	EndPC   int
}

// IsMainChunk reports whether f is the function for a whole chunk.
func (f *Function) IsMainChunk() bool {
	return f.LineDefined == 0
}

// Line returns the source line of the instruction at pc
// or -1 if the chunk carries no line information.
func (f *Function) Line(pc int) int {
	if pc < 0 || pc >= len(f.LineInfo) {
		return -1
	}
	basePC, line := -1, f.LineDefined
	if i := sort.Search(len(f.AbsLineInfo), func(i int) bool { return f.AbsLineInfo[i].PC > pc }) - 1; i >= 0 {
		basePC, line = f.AbsLineInfo[i].PC, f.AbsLineInfo[i].Line
	}
	for basePC < pc {
		basePC++
		line += int(f.LineInfo[basePC])
	}
	return line
}

// SourceName returns the source name as luac prints it.
func (f *Function) SourceName() string {
	switch {
	case strings.HasPrefix(f.Source, "@") || strings.HasPrefix(f.Source, "="):
		return f.Source[1:]
	case strings.HasPrefix(f.Source, Signature[:1]):
		return "(bstring)"
	default:
		return "(string)"
	}
}

// ConstantKind is the type of a [Constant].
type ConstantKind byte

// Constant kinds, using their tags in the binary format.
const (
	ConstantNil         ConstantKind = 0x00
	ConstantFalse       ConstantKind = 0x01
	ConstantTrue        ConstantKind = 0x11
	ConstantInteger     ConstantKind = 0x03
	ConstantFloat       ConstantKind = 0x13
	ConstantShortString ConstantKind = 0x04
	ConstantLongString  ConstantKind = 0x14
)

// Constant is an entry in a function's constant table.
type Constant struct {
	Kind    ConstantKind
	Integer int64
	Float   float64
	Str     string
}

// Tag returns the one-letter type code luac uses in full listings.
func (k Constant) Tag() string {
	switch k.Kind {
	case ConstantNil:
		return "N"
	case ConstantFalse, ConstantTrue:
		return "B"
	case ConstantInteger:
		return "I"
	case ConstantFloat:
		return "F"
	case ConstantShortString, ConstantLongString:
		return "S"
	default:
		return "?"
	}
}

func (k Constant) String() string {
	switch k.Kind {
	case ConstantNil:
		return "nil"
	case ConstantFalse:
		return "false"
	case ConstantTrue:
		return "true"
	case ConstantInteger:
		return strconv.FormatInt(k.Integer, 10)
	case ConstantFloat:
		s := strconv.FormatFloat(k.Float, 'g', 14, 64)
		if !math.IsInf(k.Float, 0) && !math.IsNaN(k.Float) && !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case ConstantShortString, ConstantLongString:
		return strconv.Quote(k.Str)
	default:
		return "?"
	}
}

// Decode decodes a binary chunk produced by Lua 5.4's string.dump or luac
// on any architecture.
func Decode(data []byte) (*Function, error) {
	r, err := newChunkReader(data)
	if err != nil {
		return nil, fmt.Errorf("decode lua chunk: %w", err)
	}
	mainUpvalueCount, ok := r.readByte()
	if !ok {
		return nil, fmt.Errorf("decode lua chunk: %v", io.ErrUnexpectedEOF)
	}
	f := new(Function)
	if err := decodeFunction(f, r, "=?", 0); err != nil {
		return nil, fmt.Errorf("decode lua chunk: %v", err)
	}
	if len(r.s) > 0 {
		return nil, errors.New("decode lua chunk: trailing data")
	}
	if int(mainUpvalueCount) != len(f.Upvalues) {
		return nil, fmt.Errorf("decode lua chunk: header upvalue count (%d) != function upvalue count (%d)", mainUpvalueCount, len(f.Upvalues))
	}
	return f, nil
}

// maxDepth bounds the nesting of functions in a chunk.
const maxDepth = 200

func decodeFunction(f *Function, r *chunkReader, parentSource string, depth int) error {
	if depth > maxDepth {
		return errors.New("functions nested too deeply")
	}
	source, hasSource, err := r.readString()
	if err != nil {
		return fmt.Errorf("source: %v", err)
	}
	if !hasSource {
		source = parentSource
	}
	f.Source = source

	if f.LineDefined, err = r.readVarint(); err != nil {
		return fmt.Errorf("line defined: %v", err)
	}
	if f.LastLineDefined, err = r.readVarint(); err != nil {
		return fmt.Errorf("last line defined: %v", err)
	}
	var ok bool
	if f.NumParams, ok = r.readByte(); !ok {
		return fmt.Errorf("number of parameters: %v", io.ErrUnexpectedEOF)
	}
	if f.IsVararg, ok = r.readBool(); !ok {
		return fmt.Errorf("is vararg: %v", io.ErrUnexpectedEOF)
	}
	if f.MaxStackSize, ok = r.readByte(); !ok {
		return fmt.Errorf("max stack size: %v", io.ErrUnexpectedEOF)
	}

	n, err := r.readCount(4)
	if err != nil {
		return fmt.Errorf("instruction length: %v", err)
	}
	f.Code = make([]Instruction, n)
	for i := range f.Code {
		if f.Code[i], ok = r.readInstruction(); !ok {
			return fmt.Errorf("instructions: %v", io.ErrUnexpectedEOF)
		}
	}

	if n, err = r.readCount(1); err != nil {
		return fmt.Errorf("constant table size: %v", err)
	}
	f.Constants = make([]Constant, n)
	for i := range f.Constants {
		if err := r.readConstant(&f.Constants[i]); err != nil {
			return fmt.Errorf("constant table [%d]: %v", i, err)
		}
	}

	if n, err = r.readCount(3); err != nil {
		return fmt.Errorf("upvalues: %v", err)
	}
	f.Upvalues = make([]Upvalue, n)
	for i := range f.Upvalues {
		uv := &f.Upvalues[i]
		inStack, ok1 := r.readBool()
		index, ok2 := r.readByte()
		kind, ok3 := r.readByte()
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("upvalues: %v", io.ErrUnexpectedEOF)
		}
		uv.InStack, uv.Index, uv.Kind = inStack, index, kind
	}

	if n, err = r.readCount(1); err != nil {
		return fmt.Errorf("functions: %v", err)
	}
	f.Functions = make([]*Function, n)
	for i := range f.Functions {
		fi := new(Function)
		if err := decodeFunction(fi, r, f.Source, depth+1); err != nil {
			return fmt.Errorf("function [%d]: %v", i, err)
		}
		f.Functions[i] = fi
	}

	return decodeDebug(f, r)
}

func decodeDebug(f *Function, r *chunkReader) error {
	n, err := r.readCount(1)
	if err != nil {
		return fmt.Errorf("line info: %v", err)
	}
	f.LineInfo = make([]int8, n)
	for i := range f.LineInfo {
		b, ok := r.readByte()
		if !ok {
			return fmt.Errorf("line info: %v", io.ErrUnexpectedEOF)
		}
		f.LineInfo[i] = int8(b)
	}
	if n, err = r.readCount(2); err != nil {
		return fmt.Errorf("absolute line info: %v", err)
	}
	f.AbsLineInfo = make([]AbsLineInfo, n)
	for i := range f.AbsLineInfo {
		if f.AbsLineInfo[i].PC, err = r.readVarint(); err != nil {
			return fmt.Errorf("absolute line info: %v", err)
		}
		if i > 0 && f.AbsLineInfo[i].PC <= f.AbsLineInfo[i-1].PC {
			return errors.New("absolute line info: PCs not increasing")
		}
		if f.AbsLineInfo[i].Line, err = r.readVarint(); err != nil {
			return fmt.Errorf("absolute line info: %v", err)
		}
	}

	if n, err = r.readCount(3); err != nil {
		return fmt.Errorf("local variables: %v", err)
	}
	f.LocalVariables = make([]LocalVariable, n)
	for i := range f.LocalVariables {
		v := &f.LocalVariables[i]
		if v.Name, _, err = r.readString(); err != nil {
			return fmt.Errorf("local variables [%d]: name: %v", i, err)
		}
		if v.StartPC, err = r.readVarint(); err != nil {
			return fmt.Errorf("local variables [%d]: start pc: %v", i, err)
		}
		if v.EndPC, err = r.readVarint(); err != nil {
			return fmt.Errorf("local variables [%d]: end pc: %v", i, err)
		}
	}

	if n, err = r.readCount(1); err != nil {
		return fmt.Errorf("upvalue names: %v", err)
	}
	if n != 0 && n != len(f.Upvalues) {
		return fmt.Errorf("upvalue names: length (%d) does not match table (%d)", n, len(f.Upvalues))
	}
	for i := range n {
		if f.Upvalues[i].Name, _, err = r.readString(); err != nil {
			return fmt.Errorf("upvalue names [%d]: %v", i, err)
		}
	}
	return nil
}
