package engine

import (
	"fmt"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/value"
	"github.com/vmhunt/symx/pkg/xinst"
)

// State is one symbolic machine: a register file, a memory store, and
// the arena backing both. A State is not safe for concurrent use —
// spec.md §5 requires the executor itself stay single-threaded; only
// independent State instances (e.g. one per trace file in a batch run)
// may run on separate goroutines.
type State struct {
	Arena *value.Arena
	Regs  *RegisterFile
	Mem   *MemoryStore
}

// NewState builds a fresh symbolic machine with every register and
// memory location seeded as an unresolved input.
func NewState() *State {
	a := value.NewArena()
	return &State{Arena: a, Regs: NewRegisterFile(a), Mem: NewMemoryStore(a)}
}

// jumps, ret and call never touch register/memory state in this model
// (the trace already linearizes control flow); cmp/test compute a
// throwaway comparison result. Mirrors the parameter builder's skip set.
var noEffect = map[string]bool{
	"jmp": true, "jz": true, "jbe": true, "jo": true, "jno": true, "js": true,
	"jns": true, "je": true, "jne": true, "jnz": true, "jb": true, "jnae": true,
	"jc": true, "jnb": true, "jae": true, "jnc": true, "jna": true, "ja": true,
	"jnbe": true, "jl": true, "jnge": true, "jge": true, "jnl": true, "jle": true,
	"jng": true, "jg": true, "jnle": true, "jp": true, "jpe": true, "jnp": true,
	"jpo": true, "jcxz": true, "jecxz": true, "ret": true, "call": true,
}

// Exec symbolically executes one instruction against s, mutating its
// register file and memory store. Mirrors
// original_source/mg-symengine.cpp's SEEngine::symexec dispatch.
func (s *State) Exec(in *xinst.Instruction) error {
	if noEffect[in.Mnemonic] {
		return nil
	}

	switch in.Mnemonic {
	case "cmp", "test":
		return s.execCompare(in)
	case "mov":
		return s.execMov(in)
	case "movzx":
		return s.execMovzx(in)
	case "movsx":
		return s.execMovsx(in)
	case "push":
		return s.execPush(in)
	case "pop":
		return s.execPop(in)
	case "xchg":
		return s.execXchg(in)
	case "neg", "not", "inc", "dec", "bswap":
		return s.execUnary(in)
	case "imul":
		return s.execImul(in)
	case "div", "idiv":
		return s.execDivMod(in)
	default:
		return s.execBinaryALU(in)
	}
}

// readOperand resolves an operand's current Value. addr is the
// instruction's RAddr (used when the operand is a memory source).
func (s *State) readOperand(op xinst.Operand, addr uint64, hasAddr bool) (value.ID, error) {
	switch op.Kind {
	case xinst.OperandReg:
		return s.Regs.Read(op.Reg)
	case xinst.OperandImm:
		return s.Arena.Concrete(op.Imm, bits(op.Width)), nil
	case xinst.OperandMem:
		if !hasAddr {
			return 0, fmt.Errorf("engine: memory operand %q has no resolved address in this trace line", op.MemExpr)
		}
		return s.Mem.Read(addr, width(op.Width)), nil
	default:
		return 0, fmt.Errorf("engine: unrecognised operand kind %v", op.Kind)
	}
}

// writeOperand stores v into an operand's destination. addr is the
// instruction's WAddr for a memory destination.
func (s *State) writeOperand(op xinst.Operand, addr uint64, hasAddr bool, v value.ID) error {
	switch op.Kind {
	case xinst.OperandReg:
		_, err := s.Regs.Write(op.Reg, v)
		return err
	case xinst.OperandMem:
		if !hasAddr {
			return fmt.Errorf("engine: memory operand %q has no resolved address in this trace line", op.MemExpr)
		}
		return s.Mem.Write(addr, width(op.Width), v)
	default:
		return fmt.Errorf("engine: cannot write to an immediate operand")
	}
}

func width(w int) int {
	if w == 0 {
		return 8
	}
	return w
}
func bits(w int) int { return width(w) * 8 }

func (s *State) execCompare(in *xinst.Instruction) error {
	if len(in.Operands) != 2 {
		return fmt.Errorf("engine: %s wants 2 operands, got %d", in.Mnemonic, len(in.Operands))
	}
	a, err := s.readOperand(in.Operands[0], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	b, err := s.readOperand(in.Operands[1], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	op := value.Sub
	if in.Mnemonic == "test" {
		op = value.And
	}
	s.Arena.BuildOp2(op, a, b) // throwaway: flags are not modeled
	return nil
}

// mov is a direct value replacement: no Operation node wraps the
// assignment (spec.md §9 Open Question 1, resolved against
// original_source/mg-symengine.cpp's symexec, whose "mov" case calls
// readReg/writeReg directly rather than buildop1/2).
func (s *State) execMov(in *xinst.Instruction) error {
	if len(in.Operands) != 2 {
		return fmt.Errorf("engine: mov wants 2 operands, got %d", len(in.Operands))
	}
	v, err := s.readOperand(in.Operands[1], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	return s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, v)
}

func (s *State) execMovzx(in *xinst.Instruction) error {
	if len(in.Operands) != 2 {
		return fmt.Errorf("engine: movzx wants 2 operands, got %d", len(in.Operands))
	}
	v, err := s.readOperand(in.Operands[1], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	// v is already masked to the source operand's own width by
	// readOperand/Regs.Read, so writing it into a wider destination
	// zero-extends for free.
	return s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, v)
}

func (s *State) execMovsx(in *xinst.Instruction) error {
	if len(in.Operands) != 2 {
		return fmt.Errorf("engine: movsx wants 2 operands, got %d", len(in.Operands))
	}
	src := in.Operands[1]
	v, err := s.readOperand(src, in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	srcBits := bits(src.Width)
	if srcBits < 64 {
		// Classic branch-free sign extension: (x ^ m) - m where
		// m = 1 << (srcBits-1). Expressible with only Xor/Sub, both
		// already in the Operation set — no ite node needed.
		m := s.Arena.Concrete(uint64(1)<<(uint(srcBits)-1), 64)
		xored := s.Arena.BuildOp2(value.Xor, v, m)
		v = s.Arena.BuildOp2(value.Sub, xored, m)
	}
	return s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, v)
}

func (s *State) execPush(in *xinst.Instruction) error {
	if len(in.Operands) != 1 {
		return fmt.Errorf("engine: push wants 1 operand, got %d", len(in.Operands))
	}
	v, err := s.readOperand(in.Operands[0], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	if !in.HasWAddr {
		return fmt.Errorf("engine: push has no resolved stack address")
	}
	return s.Mem.Write(in.WAddr, width(in.Operands[0].Width), v)
}

func (s *State) execPop(in *xinst.Instruction) error {
	if len(in.Operands) != 1 {
		return fmt.Errorf("engine: pop wants 1 operand, got %d", len(in.Operands))
	}
	if !in.HasRAddr {
		return fmt.Errorf("engine: pop has no resolved stack address")
	}
	v := s.Mem.Read(in.RAddr, width(in.Operands[0].Width))
	return s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, v)
}

func (s *State) execXchg(in *xinst.Instruction) error {
	if len(in.Operands) != 2 {
		return fmt.Errorf("engine: xchg wants 2 operands, got %d", len(in.Operands))
	}
	a, err := s.readOperand(in.Operands[0], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	b, err := s.readOperand(in.Operands[1], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	if err := s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, b); err != nil {
		return err
	}
	return s.writeOperand(in.Operands[1], in.WAddr, in.HasWAddr, a)
}

func (s *State) execUnary(in *xinst.Instruction) error {
	if len(in.Operands) != 1 {
		return fmt.Errorf("engine: %s wants 1 operand, got %d", in.Mnemonic, len(in.Operands))
	}
	op := in.Operands[0]
	v, err := s.readOperand(op, in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	var result value.ID
	switch in.Mnemonic {
	case "neg":
		result = s.Arena.BuildOp1(value.Neg, v)
	case "not":
		result = s.Arena.BuildOp1(value.Not, v)
	case "inc":
		result = s.Arena.BuildOp2(value.Add, v, s.Arena.Concrete(1, bits(op.Width)))
	case "dec":
		result = s.Arena.BuildOp2(value.Sub, v, s.Arena.Concrete(1, bits(op.Width)))
	case "bswap":
		result = s.Arena.BuildOp1(value.Bswap, v)
	}
	return s.writeOperand(op, in.WAddr, in.HasWAddr, result)
}

func (s *State) execImul(in *xinst.Instruction) error {
	switch len(in.Operands) {
	case 1:
		rax, err := s.Regs.Read(regs.RAX)
		if err != nil {
			return err
		}
		src, err := s.readOperand(in.Operands[0], in.RAddr, in.HasRAddr)
		if err != nil {
			return err
		}
		result := s.Arena.BuildOp2(value.Imul, rax, src)
		_, err = s.Regs.Write(regs.RAX, result)
		return err
	case 2:
		dst, err := s.readOperand(in.Operands[0], in.RAddr, in.HasRAddr)
		if err != nil {
			return err
		}
		src, err := s.readOperand(in.Operands[1], in.RAddr, in.HasRAddr)
		if err != nil {
			return err
		}
		result := s.Arena.BuildOp2(value.Imul, dst, src)
		return s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, result)
	case 3:
		reg1, err := s.readOperand(in.Operands[1], in.RAddr, in.HasRAddr)
		if err != nil {
			return err
		}
		imm, err := s.readOperand(in.Operands[2], in.RAddr, in.HasRAddr)
		if err != nil {
			return err
		}
		result := s.Arena.BuildOp2(value.Imul, reg1, imm)
		return s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, result)
	default:
		return fmt.Errorf("engine: imul wants 1-3 operands, got %d", len(in.Operands))
	}
}

// execDivMod handles the one-operand div/idiv form: the dividend is
// read from RAX, the divisor from the single operand, and the quotient
// and remainder are written back to RAX and RDX respectively. RDX's
// high-half contribution to a genuine 128-bit dividend is not modeled
// (spec.md §1 Non-goals exclude flags/wider-than-64-bit arithmetic);
// only RAX feeds the dividend. Mirrors execImul's 1-operand pattern.
func (s *State) execDivMod(in *xinst.Instruction) error {
	if len(in.Operands) != 1 {
		return fmt.Errorf("engine: %s wants 1 operand, got %d", in.Mnemonic, len(in.Operands))
	}
	dividend, err := s.Regs.Read(regs.RAX)
	if err != nil {
		return err
	}
	divisor, err := s.readOperand(in.Operands[0], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	quotient := s.Arena.BuildOp2(value.Div, dividend, divisor)
	remainder := s.Arena.BuildOp2(value.Mod, dividend, divisor)
	if _, err := s.Regs.Write(regs.RAX, quotient); err != nil {
		return err
	}
	_, err = s.Regs.Write(regs.RDX, remainder)
	return err
}

var binaryOps = map[string]value.Operation{
	"add": value.Add, "sub": value.Sub, "and": value.And, "or": value.Or,
	"xor": value.Xor, "shl": value.Shl, "sal": value.Shl, "shr": value.Shr, "sar": value.Sar,
}

func (s *State) execBinaryALU(in *xinst.Instruction) error {
	op, ok := binaryOps[in.Mnemonic]
	if !ok {
		return fmt.Errorf("engine: unrecognised mnemonic %q", in.Mnemonic)
	}
	if len(in.Operands) != 2 {
		return fmt.Errorf("engine: %s wants 2 operands, got %d", in.Mnemonic, len(in.Operands))
	}
	dst, err := s.readOperand(in.Operands[0], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	src, err := s.readOperand(in.Operands[1], in.RAddr, in.HasRAddr)
	if err != nil {
		return err
	}
	result := s.Arena.BuildOp2(op, dst, src)
	return s.writeOperand(in.Operands[0], in.WAddr, in.HasWAddr, result)
}
