package parambuild

import (
	"testing"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/xinst"
)

func TestBuildMovRegReg(t *testing.T) {
	in := &xinst.Instruction{
		Mnemonic: "mov",
		Operands: []xinst.Operand{
			{Kind: xinst.OperandReg, Reg: regs.RAX, Width: 8},
			{Kind: xinst.OperandReg, Reg: regs.RBX, Width: 8},
		},
	}
	if err := Build(in); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(in.Src) != 8 || in.Src[0].Reg != regs.PRBX {
		t.Errorf("Src = %+v, want 8 rbx byte params", in.Src)
	}
	if len(in.Dst) != 8 || in.Dst[0].Reg != regs.PRAX {
		t.Errorf("Dst = %+v, want 8 rax byte params", in.Dst)
	}
}

func TestBuildSkipsJumps(t *testing.T) {
	in := &xinst.Instruction{Mnemonic: "jne", Operands: []xinst.Operand{{Kind: xinst.OperandImm, Imm: 0x10}}}
	if err := Build(in); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if in.Src != nil || in.Dst != nil {
		t.Errorf("jne should produce no dependency, got Src=%v Dst=%v", in.Src, in.Dst)
	}
}

func TestBuildXchgTwoPairs(t *testing.T) {
	in := &xinst.Instruction{
		Mnemonic: "xchg",
		Operands: []xinst.Operand{
			{Kind: xinst.OperandReg, Reg: regs.RAX, Width: 8},
			{Kind: xinst.OperandReg, Reg: regs.RBX, Width: 8},
		},
	}
	if err := Build(in); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(in.Src) != 8 || in.Src[0].Reg != regs.PRBX {
		t.Errorf("Src (rax<-rbx) = %+v", in.Src)
	}
	if len(in.Dst) != 8 || in.Dst[0].Reg != regs.PRAX {
		t.Errorf("Dst (rax<-rbx) = %+v", in.Dst)
	}
	if len(in.Src2) != 8 || in.Src2[0].Reg != regs.PRAX {
		t.Errorf("Src2 (rbx<-rax) = %+v", in.Src2)
	}
	if len(in.Dst2) != 8 || in.Dst2[0].Reg != regs.PRBX {
		t.Errorf("Dst2 (rbx<-rax) = %+v", in.Dst2)
	}
}

func TestBuildDivReadsRaxWritesRaxAndRdx(t *testing.T) {
	in := &xinst.Instruction{
		Mnemonic: "div",
		Operands: []xinst.Operand{{Kind: xinst.OperandReg, Reg: regs.RCX, Width: 8}},
	}
	if err := Build(in); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(in.Src) != 16 {
		t.Fatalf("Src = %+v, want 16 byte params (rax + rcx)", in.Src)
	}
	if in.Src[0].Reg != regs.PRAX || in.Src[8].Reg != regs.PRCX {
		t.Errorf("Src regs = [%v, ..., %v], want [rax, ..., rcx]", in.Src[0].Reg, in.Src[8].Reg)
	}
	if len(in.Dst) != 16 || in.Dst[0].Reg != regs.PRAX || in.Dst[8].Reg != regs.PRDX {
		t.Errorf("Dst = %+v, want 8 rax byte params followed by 8 rdx byte params", in.Dst)
	}
}

func TestBuildPushPop(t *testing.T) {
	push := &xinst.Instruction{
		Mnemonic: "push",
		Operands: []xinst.Operand{{Kind: xinst.OperandReg, Reg: regs.RDI, Width: 8}},
		HasWAddr: true, WAddr: 0x7ffe0000,
	}
	if err := Build(push); err != nil {
		t.Fatalf("Build(push): %v", err)
	}
	if len(push.Dst) != 8 || push.Dst[0].Addr != 0x7ffe0000 {
		t.Errorf("push.Dst = %+v", push.Dst)
	}

	pop := &xinst.Instruction{
		Mnemonic: "pop",
		Operands: []xinst.Operand{{Kind: xinst.OperandReg, Reg: regs.RDI, Width: 8}},
		HasRAddr: true, RAddr: 0x7ffe0000,
	}
	if err := Build(pop); err != nil {
		t.Fatalf("Build(pop): %v", err)
	}
	if len(pop.Src) != 8 || pop.Src[0].Addr != 0x7ffe0000 {
		t.Errorf("pop.Src = %+v", pop.Src)
	}
	if len(pop.Dst) != 8 || pop.Dst[0].Reg != regs.PRDI {
		t.Errorf("pop.Dst = %+v", pop.Dst)
	}
}
