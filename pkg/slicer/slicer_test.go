package slicer

import (
	"testing"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/xinst"
)

func regP(p regs.Parent, n int) []xinst.Parameter {
	out := make([]xinst.Parameter, n)
	for i := 0; i < n; i++ {
		out[i] = xinst.Parameter{Kind: xinst.ParamREG, Reg: p, ByteIndex: i}
	}
	return out
}

func TestSliceDropsUnrelatedInstruction(t *testing.T) {
	// mov rcx, rdx   (unrelated to the criterion)
	// mov rax, rbx   (criterion reads rbx)
	unrelated := &xinst.Instruction{Mnemonic: "mov", Src: regP(regs.PRDX, 8), Dst: regP(regs.PRCX, 8)}
	criterion := &xinst.Instruction{Mnemonic: "mov", Src: regP(regs.PRBX, 8), Dst: regP(regs.PRAX, 8)}

	got := Slice([]*xinst.Instruction{unrelated, criterion})
	if len(got) != 1 || got[0] != criterion {
		t.Fatalf("Slice = %v, want [criterion] only", got)
	}
}

func TestSliceFollowsChain(t *testing.T) {
	// mov rbx, rcx   (defines rbx)
	// mov rax, rbx   (criterion reads rbx, depends on instr 0)
	def := &xinst.Instruction{Mnemonic: "mov", Src: regP(regs.PRCX, 8), Dst: regP(regs.PRBX, 8)}
	criterion := &xinst.Instruction{Mnemonic: "mov", Src: regP(regs.PRBX, 8), Dst: regP(regs.PRAX, 8)}

	got := Slice([]*xinst.Instruction{def, criterion})
	if len(got) != 2 || got[0] != def || got[1] != criterion {
		t.Fatalf("Slice = %v, want [def, criterion]", got)
	}
}

func TestSliceXchgPairsIndependent(t *testing.T) {
	// mov rax, rcx        (defines rax from rcx)
	// xchg rax, rbx       (criterion reads rax via its second pair: rax->rbx)
	def := &xinst.Instruction{Mnemonic: "mov", Src: regP(regs.PRCX, 8), Dst: regP(regs.PRAX, 8)}
	xchg := &xinst.Instruction{
		Mnemonic: "xchg",
		Src:      regP(regs.PRBX, 8), Dst: regP(regs.PRAX, 8),
		Src2: regP(regs.PRAX, 8), Dst2: regP(regs.PRBX, 8),
	}
	got := SliceCriterion([]*xinst.Instruction{def, xchg}, 1)
	if len(got) != 2 {
		t.Fatalf("Slice = %v, want [def, xchg] since xchg's second pair reads rax", got)
	}
}
