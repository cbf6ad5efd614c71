package engine

import (
	"testing"

	"github.com/vmhunt/symx/pkg/value"
)

func TestExactWriteThenRead(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	v := a.Concrete(0x1234, 64)
	if err := m.Write(0x1000, 8, v); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.Read(0x1000, 8); got != v {
		t.Errorf("Read = %v, want %v (exact match returned directly)", got, v)
	}
}

func TestSubsetReadExtracts(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	v := a.Concrete(0x1122334455667788, 64)
	if err := m.Write(0x2000, 8, v); err != nil {
		t.Fatalf("Write: %v", err)
	}
	id := m.Read(0x2000, 4)
	got := a.Get(id)
	if got.Kind != value.Concrete || got.Op != value.And {
		t.Errorf("Read(subset) = %+v, want masked Concrete And node", got)
	}
}

func TestSubsetWriteSplitsFlanks(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	wide := a.Concrete(0xAABBCCDD, 64)
	if err := m.Write(0x3000, 4, wide); err != nil {
		t.Fatalf("Write wide: %v", err)
	}
	narrow := a.Concrete(0x99, 64)
	if err := m.Write(0x3001, 1, narrow); err != nil {
		t.Fatalf("Write narrow subset: %v", err)
	}
	if len(m.ranges) != 3 {
		t.Fatalf("len(ranges) = %d, want 3 (before/new/after split)", len(m.ranges))
	}
	if m.ranges[1].addr != 0x3001 || m.ranges[1].val != narrow {
		t.Errorf("middle range = %+v, want addr 0x3001 holding the new write", m.ranges[1])
	}
}

func TestSupersetWriteReplacesContainedRanges(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	lo := a.Concrete(0x1, 64)
	hi := a.Concrete(0x2, 64)
	if err := m.Write(0x4000, 4, lo); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(0x4004, 4, hi); err != nil {
		t.Fatal(err)
	}
	full := a.Concrete(0xDEADBEEFCAFEBABE, 64)
	if err := m.Write(0x4000, 8, full); err != nil {
		t.Fatalf("superset write: %v", err)
	}
	if len(m.ranges) != 1 || m.ranges[0].val != full {
		t.Errorf("ranges = %+v, want single range holding the superset write", m.ranges)
	}
}

func TestPartialOverlapIsFatal(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	if err := m.Write(0x5000, 4, a.Concrete(1, 64)); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(0x5002, 4, a.Concrete(2, 64)); err == nil {
		t.Error("expected a fatal error for a partially-overlapping write")
	}
}

func TestUnreadByteIsCachedSymbol(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	first := m.Read(0x6000, 1)
	second := m.Read(0x6000, 1)
	if first != second {
		t.Errorf("repeated reads of an untouched byte returned different Values: %v vs %v", first, second)
	}
	v := a.Get(first)
	if v.Kind != value.Symbol || v.Op != value.And {
		t.Errorf("Read(1) of a virgin byte = %+v, want a masked extraction from the span symbol", v)
	}
}

func TestVirginSpanIsSharedAcrossOneEightByteWindow(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	lo := m.byteAt(0x7000)
	hi := m.byteAt(0x7007)
	loSpan := a.Get(lo).Args[0] // byteAt(..., 0) masks the span directly: And(span, mask)
	hiShr := a.Get(a.Get(hi).Args[0])
	hiSpan := hiShr.Args[0] // byteAt(..., 7) shifts first: And(Shr(span, 56), mask)
	if loSpan != hiSpan {
		t.Errorf("byteAt(0x7000) and byteAt(0x7007) were extracted from different span symbols, want one shared 8-byte virgin span")
	}
	span := a.Get(loSpan)
	if span.Kind != value.Symbol || span.WidthBit != 64 {
		t.Errorf("virgin span = %+v, want a 64-bit Symbol", span)
	}

	if len(m.ranges) != 1 || m.ranges[0].addr != 0x7000 || m.ranges[0].len != 8 {
		t.Errorf("ranges = %+v, want a single 8-byte range inserted at 0x7000", m.ranges)
	}
}

func TestVirginSpanClipsBeforeExistingRange(t *testing.T) {
	a := value.NewArena()
	m := NewMemoryStore(a)
	if err := m.Write(0x8004, 4, a.Concrete(0xAA, 64)); err != nil {
		t.Fatal(err)
	}
	m.byteAt(0x8000)
	if len(m.ranges) != 2 {
		t.Fatalf("ranges = %+v, want the virgin span clipped to stop before the existing write", m.ranges)
	}
	if m.ranges[0].addr != 0x8000 || m.ranges[0].len != 4 {
		t.Errorf("virgin span range = %+v, want addr 0x8000 len 4 (clipped at 0x8004)", m.ranges[0])
	}
}
