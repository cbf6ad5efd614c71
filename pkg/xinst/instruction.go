// Package xinst models one trace line: the decoded instruction, its
// operands, and the byte-granular Parameter atoms the parameter builder
// and backward slicer key dependencies on.
package xinst

import (
	"fmt"

	"github.com/vmhunt/symx/pkg/regs"
)

// ParamKind tags a Parameter's payload. The declared order fixes the
// total order IMM < REG < MEM used when Parameters are sorted or used
// as map keys needing deterministic iteration.
type ParamKind int

const (
	ParamIMM ParamKind = iota
	ParamREG
	ParamMEM
)

// Parameter is the byte-granular dependency atom the parameter builder
// produces and the backward slicer tracks in its working set. A single
// register or memory operand wider than one byte expands into one
// Parameter per byte (original_source/core.cpp's getRegParameter: a
// 64-bit register access yields byte indices 0..7, a 32-bit access
// yields 0..3, and so on).
type Parameter struct {
	Kind ParamKind

	// REG
	Reg       regs.Parent
	ByteIndex int // offset of this byte within Reg, 0 = least significant

	// MEM
	Addr uint64 // address of this byte

	// IMM
	Imm uint64
}

// Less implements the total order from original_source/core.cpp's
// Parameter::operator<: IMM < REG < MEM, then lexicographic on payload.
func (p Parameter) Less(o Parameter) bool {
	if p.Kind != o.Kind {
		return p.Kind < o.Kind
	}
	switch p.Kind {
	case ParamREG:
		if p.Reg != o.Reg {
			return p.Reg < o.Reg
		}
		return p.ByteIndex < o.ByteIndex
	case ParamMEM:
		return p.Addr < o.Addr
	default: // ParamIMM
		return p.Imm < o.Imm
	}
}

func (p Parameter) String() string {
	switch p.Kind {
	case ParamREG:
		return fmt.Sprintf("REG(%d,%d)", p.Reg, p.ByteIndex)
	case ParamMEM:
		return fmt.Sprintf("MEM(0x%x)", p.Addr)
	default:
		return fmt.Sprintf("IMM(0x%x)", p.Imm)
	}
}

// RegParameters expands a register access into one byte-granular
// Parameter per byte it covers, using the register alias table in pkg/regs.
func RegParameters(r regs.Register) []Parameter {
	info := regs.Lookup(r)
	if info.Parent == regs.ParentNone {
		return nil
	}
	params := make([]Parameter, info.ByteWidth)
	for i := 0; i < info.ByteWidth; i++ {
		params[i] = Parameter{Kind: ParamREG, Reg: info.Parent, ByteIndex: info.ByteOffset + i}
	}
	return params
}

// MemParameters expands a memory access at addr spanning width bytes
// into one byte-granular Parameter per address.
func MemParameters(addr uint64, width int) []Parameter {
	params := make([]Parameter, width)
	for i := 0; i < width; i++ {
		params[i] = Parameter{Kind: ParamMEM, Addr: addr + uint64(i)}
	}
	return params
}

// OperandKind tags how an Operand addresses its value.
type OperandKind int

const (
	OperandImm OperandKind = iota
	OperandReg
	OperandMem
)

// Operand is one decoded operand of an instruction.
type Operand struct {
	Kind OperandKind

	Reg   regs.Register // OperandReg
	Imm   uint64        // OperandImm
	Width int           // width in bytes (1,2,4,8)

	// MemExpr is the original address-expression text inside the
	// brackets (e.g. "rax+rbx*4-0x8" for "qword ptr [rax+rbx*4-0x8]"),
	// kept for diagnostics and the
	// human-readable slice dump. The concrete address for a given
	// execution of this instruction comes from Instruction.RAddr/WAddr,
	// not from re-evaluating this expression.
	MemExpr string
}

// Instruction is one decoded, fully-contextualized trace line.
type Instruction struct {
	Addr     uint64
	Mnemonic string
	Operands []Operand

	// CtxRegs is the 16 general-purpose registers' concrete values as
	// they stood immediately before this instruction executed, indexed
	// by regs.Parent-1 (PRAX=1 maps to CtxRegs[0], ... PR15=16 maps to
	// CtxRegs[15]).
	CtxRegs [16]uint64

	HasRAddr bool
	RAddr    uint64
	HasWAddr bool
	WAddr    uint64

	// Src/Dst are the byte-granular dependency Parameters the parameter
	// builder derives from this instruction's semantics (spec.md §4.2).
	// Src2/Dst2 hold the second independent (dst,src) pair xchg needs;
	// every other instruction leaves them nil.
	Src, Dst   []Parameter
	Src2, Dst2 []Parameter
}

// CtxReg returns the concrete pre-instruction value of parent register p.
func (in *Instruction) CtxReg(p regs.Parent) uint64 {
	if p == regs.ParentNone {
		return 0
	}
	return in.CtxRegs[p-1]
}

// Src and Dst (and Src2/Dst2) are filled in by the parameter builder
// from the instruction's semantics (spec.md §4.2): which operands are
// read versus written is not always "first operand is dst" (e.g. push
// only reads its operand; cmp and test get no Parameters at all).
