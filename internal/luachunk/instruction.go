// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luachunk

import "fmt"

// Instruction is a single virtual machine instruction.
type Instruction uint32

const (
	sizeOpCode = 7
	sizeA      = 8
	sizeK      = 1
	sizeB      = 8
	sizeBx     = 17
	sizeAx     = 25

	posA  = sizeOpCode
	posK  = posA + sizeA
	posB  = posK + sizeK
	posC  = posB + sizeB
	posBx = posA + sizeA

	maxArgBx = 1<<sizeBx - 1
	offsetBx = maxArgBx >> 1
	maxArgJ  = 1<<sizeAx - 1
	offsetJ  = maxArgJ >> 1
	offsetC  = (1<<8 - 1) >> 1
)

// OpCode returns the instruction's type.
func (i Instruction) OpCode() OpCode {
	return OpCode(i & (1<<sizeOpCode - 1))
}

// ArgA returns the A argument of an instruction that has one.
func (i Instruction) ArgA() uint8 {
	switch i.OpCode().OpMode() {
	case OpModeABC, OpModeABx, OpModeAsBx:
		return uint8(i >> posA)
	default:
		return 0
	}
}

// ArgB returns the B argument of an [OpModeABC] instruction.
func (i Instruction) ArgB() uint8 {
	if i.OpCode().OpMode() != OpModeABC {
		return 0
	}
	return uint8(i >> posB)
}

// ArgC returns the C argument of an [OpModeABC] instruction.
func (i Instruction) ArgC() uint8 {
	if i.OpCode().OpMode() != OpModeABC {
		return 0
	}
	return uint8(i >> posC)
}

// K returns the k flag of an [OpModeABC] instruction.
func (i Instruction) K() bool {
	return i.OpCode().OpMode() == OpModeABC && i&(1<<posK) != 0
}

// ArgBx returns the Bx argument of an [OpModeABx] instruction
// or the signed sBx argument of an [OpModeAsBx] instruction.
func (i Instruction) ArgBx() int32 {
	switch i.OpCode().OpMode() {
	case OpModeABx:
		return int32(i >> posBx)
	case OpModeAsBx:
		return int32(i>>posBx) - offsetBx
	default:
		return 0
	}
}

// ArgAx returns the argument of an [OpExtraArg] instruction.
func (i Instruction) ArgAx() uint32 {
	if i.OpCode().OpMode() != OpModeAx {
		return 0
	}
	return uint32(i >> posA)
}

// J returns the jump offset of an [OpModeJ] instruction
// relative to the following instruction.
func (i Instruction) J() int32 {
	if i.OpCode().OpMode() != OpModeJ {
		return 0
	}
	return int32(i>>posA) - offsetJ
}

// SignedArg converts a B or C argument holding a signed value to an integer.
func SignedArg(arg uint8) int16 {
	return int16(arg) - offsetC
}

// String formats the instruction's opcode and arguments like luac -l.
func (i Instruction) String() string {
	op := i.OpCode()
	switch op.OpMode() {
	case OpModeABC:
		s := fmt.Sprintf("%-9s\t%d %d %d", op, i.ArgA(), i.ArgB(), i.ArgC())
		if i.K() {
			s += "k"
		}
		return s
	case OpModeABx, OpModeAsBx:
		return fmt.Sprintf("%-9s\t%d %d", op, i.ArgA(), i.ArgBx())
	case OpModeAx:
		return fmt.Sprintf("%-9s\t%d", op, i.ArgAx())
	case OpModeJ:
		return fmt.Sprintf("%-9s\t%d", op, i.J())
	default:
		return fmt.Sprintf("Instruction(%#08x)", uint32(i))
	}
}

// OpCode is an enumeration of [Instruction] types.
type OpCode uint8

// Lua 5.4 opcodes.
const (
	OpMove OpCode = iota
	OpLoadI
	OpLoadF
	OpLoadK
	OpLoadKX
	OpLoadFalse
	OpLFalseSkip
	OpLoadTrue
	OpLoadNil
	OpGetUpval
	OpSetUpval
	OpGetTabUp
	OpGetTable
	OpGetI
	OpGetField
	OpSetTabUp
	OpSetTable
	OpSetI
	OpSetField
	OpNewTable
	OpSelf
	OpAddI
	OpAddK
	OpSubK
	OpMulK
	OpModK
	OpPowK
	OpDivK
	OpIDivK
	OpBAndK
	OpBOrK
	OpBXORK
	OpSHRI
	OpSHLI
	OpAdd
	OpSub
	OpMul
	OpMod
	OpPow
	OpDiv
	OpIDiv
	OpBAnd
	OpBOr
	OpBXOR
	OpSHL
	OpSHR
	OpMMBin
	OpMMBinI
	OpMMBinK
	OpUNM
	OpBNot
	OpNot
	OpLen
	OpConcat
	OpClose
	OpTBC
	OpJMP
	OpEQ
	OpLT
	OpLE
	OpEQK
	OpEQI
	OpLTI
	OpLEI
	OpGTI
	OpGEI
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpReturn0
	OpReturn1
	OpForLoop
	OpForPrep
	OpTForPrep
	OpTForCall
	OpTForLoop
	OpSetList
	OpClosure
	OpVararg
	OpVarargPrep
	OpExtraArg

	maxOpCode = OpExtraArg
)

var opNames = [...]string{
	"MOVE", "LOADI", "LOADF", "LOADK", "LOADKX", "LOADFALSE", "LFALSESKIP",
	"LOADTRUE", "LOADNIL", "GETUPVAL", "SETUPVAL", "GETTABUP", "GETTABLE",
	"GETI", "GETFIELD", "SETTABUP", "SETTABLE", "SETI", "SETFIELD",
	"NEWTABLE", "SELF", "ADDI", "ADDK", "SUBK", "MULK", "MODK", "POWK",
	"DIVK", "IDIVK", "BANDK", "BORK", "BXORK", "SHRI", "SHLI", "ADD", "SUB",
	"MUL", "MOD", "POW", "DIV", "IDIV", "BAND", "BOR", "BXOR", "SHL", "SHR",
	"MMBIN", "MMBINI", "MMBINK", "UNM", "BNOT", "NOT", "LEN", "CONCAT",
	"CLOSE", "TBC", "JMP", "EQ", "LT", "LE", "EQK", "EQI", "LTI", "LEI",
	"GTI", "GEI", "TEST", "TESTSET", "CALL", "TAILCALL", "RETURN",
	"RETURN0", "RETURN1", "FORLOOP", "FORPREP", "TFORPREP", "TFORCALL",
	"TFORLOOP", "SETLIST", "CLOSURE", "VARARG", "VARARGPREP", "EXTRAARG",
}

var _ = opNames[maxOpCode]

// IsValid reports whether the opcode is one of the known instructions.
func (op OpCode) IsValid() bool {
	return op <= maxOpCode
}

func (op OpCode) String() string {
	if !op.IsValid() {
		return fmt.Sprintf("OpCode(%d)", uint8(op))
	}
	return opNames[op]
}

// OpMode returns the format of an [Instruction] that uses the opcode.
func (op OpCode) OpMode() OpMode {
	switch op {
	case OpLoadK, OpLoadKX, OpForLoop, OpForPrep, OpTForPrep, OpTForLoop, OpClosure:
		return OpModeABx
	case OpLoadI, OpLoadF:
		return OpModeAsBx
	case OpJMP:
		return OpModeJ
	case OpExtraArg:
		return OpModeAx
	default:
		if !op.IsValid() {
			return 0
		}
		return OpModeABC
	}
}

// OpMode is an enumeration of [Instruction] formats.
type OpMode uint8

// Instruction formats.
const (
	OpModeABC OpMode = 1 + iota
	OpModeABx
	OpModeAsBx
	OpModeAx
	OpModeJ
)
