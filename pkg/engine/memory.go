package engine

import (
	"fmt"
	"sort"

	"github.com/vmhunt/symx/pkg/value"
)

// memRange is one explicitly-written byte span and the Value currently
// covering it. Ranges never overlap once written (Write enforces this).
type memRange struct {
	addr uint64
	len  int
	val  value.ID
}

func (r memRange) end() uint64 { return r.addr + uint64(r.len) }

// MemoryStore is a byte-range-addressed memory model: each write
// records the exact span it covers, and reads classify against the
// stored spans as exact / subset / superset / disjoint, exactly per
// spec.md §4.5. A write whose span partially overlaps — but is neither
// contained in nor a superset of — an existing span is a fatal
// diagnostic (spec.md §4.9), unlike original_source/mg-symengine.cpp's
// readMem/writeMem, which silently always operated on a fixed 8-byte
// span regardless of the instruction's actual operand width.
type MemoryStore struct {
	arena  *value.Arena
	ranges []memRange // sorted by addr, pairwise disjoint
}

func NewMemoryStore(a *value.Arena) *MemoryStore {
	return &MemoryStore{arena: a}
}

// overlapping returns the indices of every stored range intersecting
// [addr, addr+length).
func (m *MemoryStore) overlapping(addr uint64, length int) []int {
	end := addr + uint64(length)
	var idxs []int
	for i, r := range m.ranges {
		if r.addr < end && addr < r.end() {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

type overlapKind int

const (
	kindDisjoint overlapKind = iota
	kindExact
	kindSubset
	kindSuperset
	kindPartial
)

func (m *MemoryStore) classify(addr uint64, length int, idxs []int) overlapKind {
	end := addr + uint64(length)
	switch len(idxs) {
	case 0:
		return kindDisjoint
	case 1:
		r := m.ranges[idxs[0]]
		switch {
		case r.addr == addr && r.len == length:
			return kindExact
		case addr >= r.addr && end <= r.end():
			return kindSubset
		case r.addr >= addr && r.end() <= end:
			return kindSuperset
		default:
			return kindPartial
		}
	default:
		for _, i := range idxs {
			r := m.ranges[i]
			if !(r.addr >= addr && r.end() <= end) {
				return kindPartial
			}
		}
		return kindSuperset
	}
}

func (m *MemoryStore) insert(r memRange) {
	i := sort.Search(len(m.ranges), func(i int) bool { return m.ranges[i].addr >= r.addr })
	m.ranges = append(m.ranges, memRange{})
	copy(m.ranges[i+1:], m.ranges[i:])
	m.ranges[i] = r
}

func (m *MemoryStore) removeIndices(idxs []int) {
	drop := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		drop[i] = true
	}
	out := m.ranges[:0]
	for i, r := range m.ranges {
		if !drop[i] {
			out = append(out, r)
		}
	}
	m.ranges = out
}

// extractSub pulls an inner byte span [off, off+sublen) out of a value
// representing a rangeLen-byte span, via (v >> off*8) & mask(sublen*8).
func (m *MemoryStore) extractSub(v value.ID, off, sublen int) value.ID {
	if off == 0 && sublen*8 == m.arena.Get(v).WidthBit {
		return v
	}
	shifted := v
	if off > 0 {
		shifted = m.arena.BuildOp2(value.Shr, v, m.arena.Concrete(uint64(off*8), 64))
	}
	mask := widthMask(sublen)
	return m.arena.BuildOp2(value.And, shifted, m.arena.Concrete(mask, 64))
}

// Write stores v as the value of the length-byte span starting at addr.
func (m *MemoryStore) Write(addr uint64, length int, v value.ID) error {
	idxs := m.overlapping(addr, length)
	switch m.classify(addr, length, idxs) {
	case kindDisjoint:
		m.insert(memRange{addr, length, v})
	case kindExact:
		m.ranges[idxs[0]].val = v
	case kindSuperset:
		m.removeIndices(idxs)
		m.insert(memRange{addr, length, v})
	case kindSubset:
		r := m.ranges[idxs[0]]
		m.removeIndices(idxs)
		if r.addr < addr {
			beforeLen := int(addr - r.addr)
			m.insert(memRange{r.addr, beforeLen, m.extractSub(r.val, 0, beforeLen)})
		}
		m.insert(memRange{addr, length, v})
		if r.end() > addr+uint64(length) {
			afterOff := int(addr + uint64(length) - r.addr)
			afterLen := r.len - afterOff
			m.insert(memRange{addr + uint64(length), afterLen, m.extractSub(r.val, afterOff, afterLen)})
		}
	case kindPartial:
		return fmt.Errorf("engine: write [0x%x,0x%x) partially overlaps an existing memory range without containing or being contained by it", addr, addr+uint64(length))
	}
	return nil
}

// Read returns the Value covering the length-byte span starting at
// addr. An exact match to a stored span is returned directly; anything
// else (subset, superset, disjoint, or a mix) is synthesized byte by
// byte. A never-written byte is taken from a fresh 8-byte Symbol span
// (see virginSpan) that is stored as a normal range, so repeated reads
// of the same untouched address extract from the same Symbol; each
// read still builds its own extraction node.
func (m *MemoryStore) Read(addr uint64, length int) value.ID {
	idxs := m.overlapping(addr, length)
	if len(idxs) == 1 {
		r := m.ranges[idxs[0]]
		if r.addr == addr && r.len == length {
			return r.val
		}
		if addr >= r.addr && addr+uint64(length) <= r.end() {
			return m.extractSub(r.val, int(addr-r.addr), length)
		}
	}

	var acc value.ID
	have := false
	for off := 0; off < length; off++ {
		a := addr + uint64(off)
		byteVal := m.byteAt(a)
		positioned := byteVal
		if off > 0 {
			positioned = m.arena.BuildOp2(value.Shl, byteVal, m.arena.Concrete(uint64(off*8), 64))
		}
		if !have {
			acc, have = positioned, true
		} else {
			acc = m.arena.BuildOp2(value.Or, acc, positioned)
		}
	}
	return acc
}

// byteAt returns the single-byte Value stored at address a, extracting
// it from whichever range (if any) covers it, or synthesizing (and
// inserting as a normal range, so later touches of neighbouring bytes
// share it) a fresh virgin span if nothing has ever been written there.
func (m *MemoryStore) byteAt(a uint64) value.ID {
	for _, r := range m.ranges {
		if a >= r.addr && a < r.end() {
			return m.extractSub(r.val, int(a-r.addr), 1)
		}
	}
	r := m.virginSpan(a)
	return m.extractSub(r.val, int(a-r.addr), 1)
}

// virginSpan allocates one fresh Symbol for the up-to-8-byte span
// starting at a, clipped so it never overlaps the next already-stored
// range, inserts it into m.ranges, and returns it. Mirrors
// original_source/mg-symengine.cpp's readMem, which always allocates a
// single new SYMBOL Value sized to the whole ar=[addr,addr+7] span on
// first touch rather than one Symbol per byte.
func (m *MemoryStore) virginSpan(a uint64) memRange {
	spanLen := 8
	if next := m.nextRangeStart(a); next >= 0 && uint64(next) < a+uint64(spanLen) {
		spanLen = int(uint64(next) - a)
	}
	id := m.arena.Symbol(fmt.Sprintf("mem[0x%x]@init", a), spanLen*8)
	r := memRange{addr: a, len: spanLen, val: id}
	m.insert(r)
	return r
}

// nextRangeStart returns the address of the first stored range starting
// after a, or -1 if none.
func (m *MemoryStore) nextRangeStart(a uint64) int64 {
	for _, r := range m.ranges {
		if r.addr > a {
			return int64(r.addr)
		}
	}
	return -1
}
