package engine

import (
	"testing"

	"github.com/vmhunt/symx/pkg/regs"
	"github.com/vmhunt/symx/pkg/value"
)

func TestWriteLowThenReadLow(t *testing.T) {
	a := value.NewArena()
	rf := NewRegisterFile(a)

	lit := a.Concrete(0x42, 64)
	if _, err := rf.Write(regs.AL, lit); err != nil {
		t.Fatalf("Write(al): %v", err)
	}
	id, err := rf.Read(regs.AL)
	if err != nil {
		t.Fatalf("Read(al): %v", err)
	}
	v := a.Get(id)
	if v.Kind != value.Symbol || v.Op != value.And {
		t.Errorf("Read(al) = %+v, want a masked And node of Symbol kind (rax's upper bytes are still symbolic)", v)
	}
}

func TestWrite32ZeroExtends(t *testing.T) {
	a := value.NewArena()
	rf := NewRegisterFile(a)

	// Seed rax with a nonzero upper half indirectly via a 64-bit write.
	full := a.Concrete(0xFFFFFFFFFFFFFFFF, 64)
	if _, err := rf.Write(regs.RAX, full); err != nil {
		t.Fatalf("Write(rax): %v", err)
	}
	lit := a.Concrete(0x1, 64)
	newParent, err := rf.Write(regs.EAX, lit)
	if err != nil {
		t.Fatalf("Write(eax): %v", err)
	}
	got := a.Get(newParent)
	if got.Op != value.And {
		t.Fatalf("Write(eax) result op = %v, want And (zero-extend mask)", got.Op)
	}
}

func TestWriteHighByteShift(t *testing.T) {
	a := value.NewArena()
	rf := NewRegisterFile(a)

	lit := a.Concrete(0x7, 64)
	newParent, err := rf.Write(regs.AH, lit)
	if err != nil {
		t.Fatalf("Write(ah): %v", err)
	}
	got := a.Get(newParent)
	if got.Op != value.Or {
		t.Fatalf("Write(ah) result op = %v, want Or (cleared | shifted)", got.Op)
	}
}

func TestReadUnknownRegisterErrors(t *testing.T) {
	a := value.NewArena()
	rf := NewRegisterFile(a)
	if _, err := rf.Read(regs.RegUnknown); err == nil {
		t.Error("expected error reading RegUnknown")
	}
	if _, err := rf.Read(regs.FS); err == nil {
		t.Error("expected error reading a segment register")
	}
}
