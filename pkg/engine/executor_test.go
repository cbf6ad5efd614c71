package engine

import (
	"testing"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/value"
	"github.com/vmhunt/symx/pkg/xinst"
)

func TestExecMovIsDirectReplacement(t *testing.T) {
	s := NewState()
	in := &xinst.Instruction{
		Mnemonic: "mov",
		Operands: []xinst.Operand{
			{Kind: xinst.OperandReg, Reg: regs.RAX, Width: 8},
			{Kind: xinst.OperandReg, Reg: regs.RBX, Width: 8},
		},
	}
	rbxBefore, _ := s.Regs.Read(regs.RBX)
	if err := s.Exec(in); err != nil {
		t.Fatalf("Exec(mov): %v", err)
	}
	raxAfter, _ := s.Regs.Read(regs.RAX)
	if raxAfter != rbxBefore {
		t.Errorf("rax after mov = %v, want exactly rbx's prior Value %v (no Operation wrapper)", raxAfter, rbxBefore)
	}
}

func TestExecAddBuildsSymbolicOperationNode(t *testing.T) {
	s := NewState()
	in := &xinst.Instruction{
		Mnemonic: "add",
		Operands: []xinst.Operand{
			{Kind: xinst.OperandReg, Reg: regs.RAX, Width: 8},
			{Kind: xinst.OperandReg, Reg: regs.RBX, Width: 8},
		},
	}
	if err := s.Exec(in); err != nil {
		t.Fatalf("Exec(add): %v", err)
	}
	id, _ := s.Regs.Read(regs.RAX)
	v := s.Arena.Get(id)
	if v.Kind != value.Symbol || v.Op != value.Add {
		t.Errorf("rax after add = %+v, want Symbol-kind Add node (both operands are unresolved inputs)", v)
	}
}

func TestExecDivWritesQuotientAndRemainder(t *testing.T) {
	s := NewState()
	in := &xinst.Instruction{
		Mnemonic: "div",
		Operands: []xinst.Operand{{Kind: xinst.OperandReg, Reg: regs.RCX, Width: 8}},
	}
	if err := s.Exec(in); err != nil {
		t.Fatalf("Exec(div): %v", err)
	}
	raxID, _ := s.Regs.Read(regs.RAX)
	rdxID, _ := s.Regs.Read(regs.RDX)
	quotient := s.Arena.Get(raxID)
	remainder := s.Arena.Get(rdxID)
	if quotient.Op != value.Div {
		t.Errorf("rax after div = %+v, want a Div node", quotient)
	}
	if remainder.Op != value.Mod {
		t.Errorf("rdx after div = %+v, want a Mod node", remainder)
	}
}

func TestExecPushPopRoundTrip(t *testing.T) {
	s := NewState()
	rdiBefore, _ := s.Regs.Read(regs.RDI)

	push := &xinst.Instruction{
		Mnemonic: "push",
		Operands: []xinst.Operand{{Kind: xinst.OperandReg, Reg: regs.RDI, Width: 8}},
		HasWAddr: true, WAddr: 0x7ffe0ff8,
	}
	if err := s.Exec(push); err != nil {
		t.Fatalf("Exec(push): %v", err)
	}
	pop := &xinst.Instruction{
		Mnemonic: "pop",
		Operands: []xinst.Operand{{Kind: xinst.OperandReg, Reg: regs.RCX, Width: 8}},
		HasRAddr: true, RAddr: 0x7ffe0ff8,
	}
	if err := s.Exec(pop); err != nil {
		t.Fatalf("Exec(pop): %v", err)
	}
	rcxAfter, _ := s.Regs.Read(regs.RCX)
	if rcxAfter != rdiBefore {
		t.Errorf("rcx after push-rdi/pop-rcx = %v, want rdi's original Value %v", rcxAfter, rdiBefore)
	}
}

func TestExecXchgSwaps(t *testing.T) {
	s := NewState()
	raxBefore, _ := s.Regs.Read(regs.RAX)
	rbxBefore, _ := s.Regs.Read(regs.RBX)

	in := &xinst.Instruction{
		Mnemonic: "xchg",
		Operands: []xinst.Operand{
			{Kind: xinst.OperandReg, Reg: regs.RAX, Width: 8},
			{Kind: xinst.OperandReg, Reg: regs.RBX, Width: 8},
		},
	}
	if err := s.Exec(in); err != nil {
		t.Fatalf("Exec(xchg): %v", err)
	}
	raxAfter, _ := s.Regs.Read(regs.RAX)
	rbxAfter, _ := s.Regs.Read(regs.RBX)
	if raxAfter != rbxBefore || rbxAfter != raxBefore {
		t.Errorf("xchg did not swap: rax=%v (want %v), rbx=%v (want %v)", raxAfter, rbxBefore, rbxAfter, raxBefore)
	}
}

func TestExecCompareIsSideEffectFree(t *testing.T) {
	s := NewState()
	raxBefore, _ := s.Regs.Read(regs.RAX)
	in := &xinst.Instruction{
		Mnemonic: "cmp",
		Operands: []xinst.Operand{
			{Kind: xinst.OperandReg, Reg: regs.RAX, Width: 8},
			{Kind: xinst.OperandReg, Reg: regs.RBX, Width: 8},
		},
	}
	if err := s.Exec(in); err != nil {
		t.Fatalf("Exec(cmp): %v", err)
	}
	raxAfter, _ := s.Regs.Read(regs.RAX)
	if raxAfter != raxBefore {
		t.Errorf("cmp must not mutate operands: rax changed from %v to %v", raxBefore, raxAfter)
	}
}
