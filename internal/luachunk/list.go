// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"bufio"
	"fmt"
	"io"
)

// ListOptions is the set of parameters for [List].
type ListOptions struct {
	// Full includes the constant, local variable, and upvalue tables.
	Full bool
	// RawPC prints program counters starting at 0 instead of 1.
	RawPC bool
}

// List writes a listing of f and its nested functions to w
// in the format of luac -l.
// A nil opts is the same as the zero value.
func List(w io.Writer, f *Function, opts *ListOptions) error {
	if opts == nil {
		opts = new(ListOptions)
	}
	l := &lister{
		w:     bufio.NewWriter(w),
		names: make(map[*Function]string),
		full:  opts.Full,
	}
	if !opts.RawPC {
		l.pcBase = 1
	}
	nameFunctions(l.names, f)
	l.function(f)
	return l.w.Flush()
}

type lister struct {
	w      *bufio.Writer
	names  map[*Function]string
	pcBase int
	full   bool
}

func (l *lister) function(f *Function) {
	kind := "function"
	if f.IsMainChunk() {
		kind = "main"
	}
	name := l.names[f]
	fmt.Fprintf(l.w, "\n%s <%s:%d,%d> (%s for %s)\n",
		kind, f.SourceName(), f.LineDefined, f.LastLineDefined,
		plural(len(f.Code), "instruction", "instructions"), name)
	vararg := ""
	if f.IsVararg {
		vararg = "+"
	}
	params := "params"
	if f.NumParams == 1 {
		params = "param"
	}
	fmt.Fprintf(l.w, "%d%s %s, %s, %s, %s, %s, %s\n",
		f.NumParams, vararg, params,
		plural(int(f.MaxStackSize), "slot", "slots"),
		plural(len(f.Upvalues), "upvalue", "upvalues"),
		plural(len(f.LocalVariables), "local", "locals"),
		plural(len(f.Constants), "constant", "constants"),
		plural(len(f.Functions), "function", "functions"))

	for pc, i := range f.Code {
		fmt.Fprintf(l.w, "\t%d\t", l.pcBase+pc)
		if line := f.Line(pc); line >= 0 {
			fmt.Fprintf(l.w, "[%d]\t", line)
		} else {
			l.w.WriteString("[-]\t")
		}
		l.w.WriteString(i.String())
		l.comment(f, pc, i)
		l.w.WriteByte('\n')
	}

	if l.full {
		fmt.Fprintf(l.w, "constants (%d) for %s:\n", len(f.Constants), name)
		for i, k := range f.Constants {
			fmt.Fprintf(l.w, "\t%d\t%s\t%v\n", i, k.Tag(), k)
		}
		fmt.Fprintf(l.w, "locals (%d) for %s:\n", len(f.LocalVariables), name)
		for i, v := range f.LocalVariables {
			fmt.Fprintf(l.w, "\t%d\t%s\t%d\t%d\n", i, v.Name, l.pcBase+v.StartPC, l.pcBase+v.EndPC)
		}
		fmt.Fprintf(l.w, "upvalues (%d) for %s:\n", len(f.Upvalues), name)
		for i, uv := range f.Upvalues {
			inStack := 0
			if uv.InStack {
				inStack = 1
			}
			fmt.Fprintf(l.w, "\t%d\t%s\t%d\t%d\n", i, uv.Name, inStack, uv.Index)
		}
	}

	for _, fi := range f.Functions {
		l.function(fi)
	}
}

// comment writes the annotation luac adds after some instructions.
func (l *lister) comment(f *Function, pc int, i Instruction) {
	constant := func(idx int) (Constant, bool) {
		if idx < 0 || idx >= len(f.Constants) {
			return Constant{}, false
		}
		return f.Constants[idx], true
	}
	upvalue := func(idx uint8) string {
		if int(idx) < len(f.Upvalues) && f.Upvalues[idx].Name != "" {
			return f.Upvalues[idx].Name
		}
		return "-"
	}
	switch i.OpCode() {
	case OpLoadK:
		if k, ok := constant(int(i.ArgBx())); ok {
			fmt.Fprintf(l.w, "\t; %v", k)
		}
	case OpGetUpval, OpSetUpval:
		fmt.Fprintf(l.w, "\t; %s", upvalue(i.ArgB()))
	case OpGetTabUp:
		if k, ok := constant(int(i.ArgC())); ok {
			fmt.Fprintf(l.w, "\t; %s %v", upvalue(i.ArgB()), k)
		}
	case OpSetTabUp:
		if k, ok := constant(int(i.ArgB())); ok {
			fmt.Fprintf(l.w, "\t; %s %v", upvalue(i.ArgA()), k)
			if c, ok := constant(int(i.ArgC())); ok && i.K() {
				fmt.Fprintf(l.w, " %v", c)
			}
		}
	case OpGetField:
		if k, ok := constant(int(i.ArgC())); ok {
			fmt.Fprintf(l.w, "\t; %v", k)
		}
	case OpSetField, OpEQK:
		if k, ok := constant(int(i.ArgB())); ok {
			fmt.Fprintf(l.w, "\t; %v", k)
			if c, ok := constant(int(i.ArgC())); ok && i.K() && i.OpCode() == OpSetField {
				fmt.Fprintf(l.w, " %v", c)
			}
		}
	case OpClosure:
		if bx := int(i.ArgBx()); bx < len(f.Functions) {
			fmt.Fprintf(l.w, "\t; %s", l.names[f.Functions[bx]])
		}
	case OpJMP:
		fmt.Fprintf(l.w, "\t; to %d", l.pcBase+pc+1+int(i.J()))
	case OpForLoop, OpTForLoop:
		fmt.Fprintf(l.w, "\t; to %d", l.pcBase+pc+1-int(i.ArgBx()))
	case OpForPrep:
		fmt.Fprintf(l.w, "\t; exit to %d", l.pcBase+pc+2+int(i.ArgBx()))
	case OpTForPrep:
		fmt.Fprintf(l.w, "\t; to %d", l.pcBase+pc+1+int(i.ArgBx()))
	case OpAddI, OpSHRI, OpSHLI:
		fmt.Fprintf(l.w, "\t; %d", SignedArg(i.ArgC()))
	}
}

func plural(n int, unit string, unitPlural string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %s", n, unitPlural)
}

// nameFunctions assigns the names luac uses for nested functions:
// the top function is "main" and its children are "F[0]", "F[1]", and so on.
func nameFunctions(names map[*Function]string, f *Function) {
	base := names[f]
	isTop := base == ""
	if isTop {
		base = "top"
		if f.IsMainChunk() {
			base = "main"
		}
		names[f] = base
	}
	for i, fi := range f.Functions {
		if isTop {
			names[fi] = fmt.Sprintf("F[%d]", i)
		} else {
			names[fi] = fmt.Sprintf("%s[%d]", base, i)
		}
		nameFunctions(names, fi)
	}
}
