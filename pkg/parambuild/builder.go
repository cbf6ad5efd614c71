// Package parambuild derives the byte-granular read/write Parameter
// sets a single instruction implies, for the backward slicer to consume.
// Grounded in original_source/slicer.cpp's buildParameter.
package parambuild

import (
	"fmt"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/xinst"
)

// skip is the set of mnemonics that never produce a dependency, mirroring
// slicer.cpp's skipinst: every conditional/unconditional jump, ret, call,
// cmp and test. These are inert for liveness purposes even though the
// symbolic executor still evaluates cmp/test's throwaway result.
var skip = map[string]bool{
	"test": true, "jmp": true, "jz": true, "jbe": true, "jo": true, "jno": true,
	"js": true, "jns": true, "je": true, "jne": true, "jnz": true, "jb": true,
	"jnae": true, "jc": true, "jnb": true, "jae": true, "jnc": true, "jna": true,
	"ja": true, "jnbe": true, "jl": true, "jnge": true, "jge": true, "jnl": true,
	"jle": true, "jng": true, "jg": true, "jnle": true, "jp": true, "jpe": true,
	"jnp": true, "jpo": true, "jcxz": true, "jecxz": true, "ret": true, "cmp": true,
	"call": true,
}

func operandParams(op xinst.Operand, addr uint64, hasAddr bool) []xinst.Parameter {
	switch op.Kind {
	case xinst.OperandReg:
		return xinst.RegParameters(op.Reg)
	case xinst.OperandMem:
		if !hasAddr {
			return nil
		}
		return xinst.MemParameters(addr, op.Width)
	default: // OperandImm: immediates have no prior writer, so no dependency
		return nil
	}
}

// Build fills in.Src/in.Dst (and, for xchg, in.Src2/in.Dst2) from in's
// mnemonic and operands. It is idempotent: calling it twice on the same
// instruction overwrites the previous result.
func Build(in *xinst.Instruction) error {
	in.Src, in.Dst, in.Src2, in.Dst2 = nil, nil, nil, nil

	if skip[in.Mnemonic] {
		return nil
	}

	switch in.Mnemonic {
	case "push":
		if len(in.Operands) != 1 {
			return fmt.Errorf("parambuild: push wants 1 operand, got %d", len(in.Operands))
		}
		in.Src = operandParams(in.Operands[0], in.RAddr, in.HasRAddr)
		in.Dst = xinst.MemParameters(in.WAddr, operandWidth(in.Operands[0]))
		return nil

	case "pop":
		if len(in.Operands) != 1 {
			return fmt.Errorf("parambuild: pop wants 1 operand, got %d", len(in.Operands))
		}
		in.Src = xinst.MemParameters(in.RAddr, operandWidth(in.Operands[0]))
		in.Dst = operandParams(in.Operands[0], in.WAddr, in.HasWAddr)
		return nil

	case "xchg":
		if len(in.Operands) != 2 {
			return fmt.Errorf("parambuild: xchg wants 2 operands, got %d", len(in.Operands))
		}
		// xchg a, b is two independent effects: a gets b's old value,
		// and b gets a's old value. original_source/slicer.cpp never
		// actually lowers this (see DESIGN.md); this is new behavior.
		in.Src = operandParams(in.Operands[1], in.RAddr, in.HasRAddr)
		in.Dst = operandParams(in.Operands[0], in.WAddr, in.HasWAddr)
		in.Src2 = operandParams(in.Operands[0], in.RAddr, in.HasRAddr)
		in.Dst2 = operandParams(in.Operands[1], in.WAddr, in.HasWAddr)
		return nil

	case "mov", "movzx", "movsx":
		if len(in.Operands) != 2 {
			return fmt.Errorf("parambuild: %s wants 2 operands, got %d", in.Mnemonic, len(in.Operands))
		}
		in.Src = operandParams(in.Operands[1], in.RAddr, in.HasRAddr)
		in.Dst = operandParams(in.Operands[0], in.WAddr, in.HasWAddr)
		return nil

	case "imul":
		switch len(in.Operands) {
		case 1:
			// imul src: reads rax and src, writes rax(:rdx). Modeled as
			// read-modify-write on the accumulator plus a read of src.
			in.Src = append(xinst.RegParameters(regs.RAX), operandParams(in.Operands[0], in.RAddr, in.HasRAddr)...)
			in.Dst = xinst.RegParameters(regs.RAX)
			return nil
		case 2:
			in.Src = append(operandParams(in.Operands[0], in.RAddr, in.HasRAddr), operandParams(in.Operands[1], in.RAddr, in.HasRAddr)...)
			in.Dst = operandParams(in.Operands[0], in.WAddr, in.HasWAddr)
			return nil
		case 3:
			// imul dst, reg1, imm: reads reg1 (+ imm, no dependency),
			// writes dst.
			in.Src = operandParams(in.Operands[1], in.RAddr, in.HasRAddr)
			in.Dst = operandParams(in.Operands[0], in.WAddr, in.HasWAddr)
			return nil
		default:
			return fmt.Errorf("parambuild: imul wants 1-3 operands, got %d", len(in.Operands))
		}

	case "div", "idiv":
		if len(in.Operands) != 1 {
			return fmt.Errorf("parambuild: %s wants 1 operand, got %d", in.Mnemonic, len(in.Operands))
		}
		// div/idiv src: reads rax (dividend) and src (divisor), writes
		// the quotient to rax and the remainder to rdx. rdx's own
		// incoming value would extend the dividend to 128 bits on real
		// hardware, but that high half isn't modeled (see
		// State.execDivMod), so rdx is a write-only destination here.
		in.Src = append(xinst.RegParameters(regs.RAX), operandParams(in.Operands[0], in.RAddr, in.HasRAddr)...)
		in.Dst = append(xinst.RegParameters(regs.RAX), xinst.RegParameters(regs.RDX)...)
		return nil

	case "neg", "not", "inc", "dec", "bswap":
		if len(in.Operands) != 1 {
			return fmt.Errorf("parambuild: %s wants 1 operand, got %d", in.Mnemonic, len(in.Operands))
		}
		src := operandParams(in.Operands[0], in.RAddr, in.HasRAddr)
		dst := operandParams(in.Operands[0], in.WAddr, in.HasWAddr)
		in.Src, in.Dst = src, dst
		return nil

	default:
		// Generic 2-operand read-modify-write form (add, sub, and, or,
		// xor, shl, shr, sar, ...): dst is both read and written, src
		// is only read.
		if len(in.Operands) == 2 {
			dstRead := operandParams(in.Operands[0], in.RAddr, in.HasRAddr)
			src := operandParams(in.Operands[1], in.RAddr, in.HasRAddr)
			in.Src = append(dstRead, src...)
			in.Dst = operandParams(in.Operands[0], in.WAddr, in.HasWAddr)
			return nil
		}
		// Unrecognised shape: no effect modeled, matching
		// original_source/slicer.cpp's fallthrough-without-effect for
		// opcodes it doesn't special-case within a given operand arity.
		return nil
	}
}

func operandWidth(op xinst.Operand) int {
	if op.Width == 0 {
		return 8
	}
	return op.Width
}
