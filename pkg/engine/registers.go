// Package engine holds the symbolic machine state: the byte-aliased
// register file, the byte-range memory store, and the symbolic
// executor that dispatches trace instructions against them. Grounded
// in original_source/mg-symengine.cpp's SEEngine (readReg/writeReg/
// readMem/writeMem/symexec).
package engine

import (
	"fmt"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/value"
)

// RegisterFile holds the sixteen 64-bit parent registers' current
// symbolic Values. Narrower aliases (eax, ax, al, ah, ...) are
// synthesized from a parent's Value on read and folded back into it on
// write — the byte-range/shift arithmetic original_source/core.cpp
// special-cased per register name, driven here by pkg/regs' lookup
// table (spec.md §9 redesign flag).
type RegisterFile struct {
	arena   *value.Arena
	parents [17]value.ID // index 0 (regs.ParentNone) unused
}

// NewRegisterFile seeds every parent register with a fresh symbolic
// input Value, named e.g. "rax@init".
func NewRegisterFile(a *value.Arena) *RegisterFile {
	rf := &RegisterFile{arena: a}
	for p := regs.PRAX; p < 17; p++ {
		rf.parents[p] = a.Symbol(parentName(p)+"@init", 64)
	}
	return rf
}

func parentName(p regs.Parent) string {
	names := [...]string{"", "rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rsp", "rbp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	if int(p) < len(names) {
		return names[p]
	}
	return "?"
}

// Read returns the Value a register alias currently holds.
func (rf *RegisterFile) Read(r regs.Register) (value.ID, error) {
	info := regs.Lookup(r)
	if info.Parent == regs.ParentNone {
		return 0, fmt.Errorf("engine: register %v has no byte mapping (unknown or segment register)", r)
	}
	parentVal := rf.parents[info.Parent]
	if info.ByteWidth == 8 {
		return parentVal, nil
	}
	if info.HighByte {
		shifted := rf.arena.BuildOp2(value.Shr, parentVal, rf.arena.Concrete(8, 64))
		return rf.arena.BuildOp2(value.And, shifted, rf.arena.Concrete(0xFF, 64)), nil
	}
	mask := widthMask(info.ByteWidth)
	return rf.arena.BuildOp2(value.And, parentVal, rf.arena.Concrete(mask, 64)), nil
}

// Write updates a register alias with v, folding the narrower write
// back into its parent's full 64-bit Value, and returns the parent's
// new Value.
func (rf *RegisterFile) Write(r regs.Register, v value.ID) (value.ID, error) {
	info := regs.Lookup(r)
	if info.Parent == regs.ParentNone {
		return 0, fmt.Errorf("engine: register %v has no byte mapping (unknown or segment register)", r)
	}
	old := rf.parents[info.Parent]

	if info.ByteWidth == 8 {
		rf.parents[info.Parent] = v
		return v, nil
	}
	if info.HighByte {
		cleared := rf.arena.BuildOp2(value.And, old, rf.arena.Concrete(0xFFFFFFFFFFFF00FF, 64))
		lowByte := rf.arena.BuildOp2(value.And, v, rf.arena.Concrete(0xFF, 64))
		shifted := rf.arena.BuildOp2(value.Shl, lowByte, rf.arena.Concrete(8, 64))
		result := rf.arena.BuildOp2(value.Or, cleared, shifted)
		rf.parents[info.Parent] = result
		return result, nil
	}
	if info.ByteWidth == 4 {
		// Real x86-64 semantics: writing a 32-bit alias zero-extends
		// into the full 64-bit parent, discarding its old upper half.
		result := rf.arena.BuildOp2(value.And, v, rf.arena.Concrete(0xFFFFFFFF, 64))
		rf.parents[info.Parent] = result
		return result, nil
	}
	mask := widthMask(info.ByteWidth)
	cleared := rf.arena.BuildOp2(value.And, old, rf.arena.Concrete(^mask, 64))
	inserted := rf.arena.BuildOp2(value.And, v, rf.arena.Concrete(mask, 64))
	result := rf.arena.BuildOp2(value.Or, cleared, inserted)
	rf.parents[info.Parent] = result
	return result, nil
}

// Parent returns a parent register's raw current Value, bypassing any
// alias view. Used by the formula exporter to dump the full register file.
func (rf *RegisterFile) Parent(p regs.Parent) value.ID { return rf.parents[p] }

func widthMask(widthBytes int) uint64 {
	if widthBytes >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (uint(widthBytes) * 8)) - 1
}
